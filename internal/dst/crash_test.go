package dst

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCrashSimulatorLifecycle(t *testing.T) {
	sim := NewCrashSimulator(NewRNG(1))
	require.Equal(t, NodeUp, sim.Status("n1"))
	require.True(t, sim.IsUp("n1"))

	sim.Crash("n1")
	require.Equal(t, NodeCrashed, sim.Status("n1"))
	require.False(t, sim.IsUp("n1"))

	sim.BeginRecovery("n1")
	require.Equal(t, NodeRecovering, sim.Status("n1"))
	require.False(t, sim.IsUp("n1"))

	sim.Recovered("n1")
	require.Equal(t, NodeUp, sim.Status("n1"))
	require.True(t, sim.IsUp("n1"))
}

func TestCrashSimulatorRecoveryDurationWithinBounds(t *testing.T) {
	sim := NewCrashSimulator(NewRNG(2))
	for i := 0; i < 100; i++ {
		d := sim.RecoveryDurationMs(100, 500)
		require.GreaterOrEqual(t, d, int64(100))
		require.LessOrEqual(t, d, int64(500))
	}
	require.Equal(t, int64(100), sim.RecoveryDurationMs(100, 100))
	require.Equal(t, int64(100), sim.RecoveryDurationMs(100, 50))
}

func TestCrashSimulatorLoseDeltaRespectsProbability(t *testing.T) {
	sim := NewCrashSimulator(NewRNG(3))
	require.False(t, sim.LoseDelta(0))
	require.True(t, sim.LoseDelta(1))
}
