package command

import (
	"bytes"
	"encoding/gob"
)

// encodedValue is the exported, gob-friendly shape a Value is flattened
// into before replication: List and ZSet keep their ordering state behind
// unexported fields (internal/command/value.go), so encoding reaches for
// each type's own accessors rather than reflecting over private state the
// encoding/gob package could never see.
type encodedValue struct {
	Kind Kind
	Str  []byte
	List [][]byte
	Set  []string
	Hash map[string][]byte
	ZSet []ZMember
}

// EncodeValue flattens v into a byte slice suitable for storing as an
// internal/replica LWW register payload, so every Value kind rides the
// same replication path uniformly rather than needing five separate CRDT
// cell mappings.
func EncodeValue(v Value) ([]byte, error) {
	ev := encodedValue{Kind: v.Kind, Str: v.Str}
	switch v.Kind {
	case KindList:
		if v.List != nil {
			ev.List = v.List.Range(0, -1)
		}
	case KindSet:
		for m := range v.Set {
			ev.Set = append(ev.Set, m)
		}
	case KindHash:
		ev.Hash = v.Hash
	case KindZSet:
		if v.ZSet != nil {
			ev.ZSet = v.ZSet.All()
		}
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(ev); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeValue reverses EncodeValue, rebuilding a live List/ZSet/Set from
// the flattened representation.
func DecodeValue(b []byte) (Value, error) {
	var ev encodedValue
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&ev); err != nil {
		return Value{}, err
	}
	v := Value{Kind: ev.Kind, Str: ev.Str}
	switch ev.Kind {
	case KindList:
		l := NewList()
		l.RPush(ev.List...)
		v.List = l
	case KindSet:
		s := make(Set, len(ev.Set))
		for _, m := range ev.Set {
			s[m] = struct{}{}
		}
		v.Set = s
	case KindHash:
		v.Hash = ev.Hash
	case KindZSet:
		z := NewZSet()
		for _, m := range ev.ZSet {
			z.Upsert(m.Member, m.Score)
		}
		v.ZSet = z
	}
	return v, nil
}
