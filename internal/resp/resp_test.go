package resp

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeFrameKinds(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want string
	}{
		{"simple", Simple("OK"), "+OK\r\n"},
		{"error", Err("ERR bad"), "-ERR bad\r\n"},
		{"integer", Int(42), ":42\r\n"},
		{"integer-negative", Int(-7), ":-7\r\n"},
		{"bulk", BulkStr("hello"), "$5\r\nhello\r\n"},
		{"bulk-empty", BulkStr(""), "$0\r\n\r\n"},
		{"nil-bulk", NilBulk(), "$-1\r\n"},
		{"nil-array", NilArr(), "*-1\r\n"},
		{"array", Arr(Int(1), Int(2), BulkStr("x")), "*3\r\n:1\r\n:2\r\n$1\r\nx\r\n"},
		{"empty-array", Arr(), "*0\r\n"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, string(Encode(c.v)))
		})
	}
}

func TestIsNil(t *testing.T) {
	assert.True(t, NilBulk().IsNil())
	assert.True(t, NilArr().IsNil())
	assert.False(t, BulkStr("").IsNil())
	assert.False(t, Arr().IsNil())
}

func TestReadCommandPipelined(t *testing.T) {
	raw := "*1\r\n$4\r\nPING\r\n*2\r\n$3\r\nGET\r\n$3\r\nfoo\r\n"
	r := NewReader(strings.NewReader(raw))

	cmd1, err := r.ReadCommand()
	require.NoError(t, err)
	assert.Equal(t, []string{"PING"}, cmd1)

	cmd2, err := r.ReadCommand()
	require.NoError(t, err)
	assert.Equal(t, []string{"GET", "foo"}, cmd2)

	_, err = r.ReadCommand()
	assert.Error(t, err)
}

func TestReadCommandBinarySafeBulk(t *testing.T) {
	// A bulk payload may contain raw CRLF bytes; only the declared
	// length governs how many payload bytes are consumed.
	raw := "*2\r\n$3\r\nSET\r\n$4\r\na\r\nb\r\n"
	r := NewReader(strings.NewReader(raw))
	args, err := r.ReadCommand()
	require.NoError(t, err)
	assert.Equal(t, []string{"SET", "a\r\nb"}, args)
}

func TestReadCommandMalformed(t *testing.T) {
	r := NewReader(strings.NewReader("not-resp\r\n"))
	_, err := r.ReadCommand()
	require.Error(t, err)
	var protoErr *ErrProtocol
	assert.ErrorAs(t, err, &protoErr)
}

func TestReadCommandMissingCRLF(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("*1\r\n$4\r\nPING") // truncated, no trailing CRLF
	r := NewReader(&buf)
	_, err := r.ReadCommand()
	assert.Error(t, err)
}
