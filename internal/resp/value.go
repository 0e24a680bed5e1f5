// Package resp implements a minimal RESP2 codec: just enough framing to
// decode pipelined client commands and encode replies. Full wire-protocol
// concerns (zero-copy parsing, inline commands, RESP3) are explicitly out
// of scope for this repository — see SPEC_FULL.md's note on §6.
package resp

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind tags the five RESP2 frame shapes.
type Kind int

const (
	SimpleString Kind = iota
	Error
	Integer
	BulkString
	Array
)

// Value is a decoded or to-be-encoded RESP frame.
//
// Only one of Str/Int/Bulk/Items is meaningful, selected by Kind. Nil is
// represented as BulkString with Bulk == nil, or Array with Items == nil.
type Value struct {
	Str   string
	Items []Value
	Int   int64
	Bulk  []byte
	Kind  Kind
}

func OK() Value                   { return Value{Kind: SimpleString, Str: "OK"} }
func Simple(s string) Value       { return Value{Kind: SimpleString, Str: s} }
func Err(s string) Value          { return Value{Kind: Error, Str: s} }
func Errf(f string, a ...any) Value { return Value{Kind: Error, Str: fmt.Sprintf(f, a...)} }
func Int(n int64) Value           { return Value{Kind: Integer, Int: n} }
func Bulk(b []byte) Value         { return Value{Kind: BulkString, Bulk: b} }
func BulkStr(s string) Value      { return Value{Kind: BulkString, Bulk: []byte(s)} }
func NilBulk() Value              { return Value{Kind: BulkString, Bulk: nil} }
func Arr(items ...Value) Value    { return Value{Kind: Array, Items: items} }
func NilArr() Value               { return Value{Kind: Array, Items: nil} }

// IsNil reports whether v is a nil bulk string or nil array.
func (v Value) IsNil() bool {
	return (v.Kind == BulkString && v.Bulk == nil) || (v.Kind == Array && v.Items == nil)
}

// Encode renders v in RESP2 wire format.
func Encode(v Value) []byte {
	var b strings.Builder
	encodeInto(&b, v)
	return []byte(b.String())
}

func encodeInto(b *strings.Builder, v Value) {
	switch v.Kind {
	case SimpleString:
		b.WriteByte('+')
		b.WriteString(v.Str)
		b.WriteString("\r\n")
	case Error:
		b.WriteByte('-')
		b.WriteString(v.Str)
		b.WriteString("\r\n")
	case Integer:
		b.WriteByte(':')
		b.WriteString(strconv.FormatInt(v.Int, 10))
		b.WriteString("\r\n")
	case BulkString:
		if v.Bulk == nil {
			b.WriteString("$-1\r\n")
			return
		}
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(len(v.Bulk)))
		b.WriteString("\r\n")
		b.Write(v.Bulk)
		b.WriteString("\r\n")
	case Array:
		if v.Items == nil {
			b.WriteString("*-1\r\n")
			return
		}
		b.WriteByte('*')
		b.WriteString(strconv.Itoa(len(v.Items)))
		b.WriteString("\r\n")
		for _, it := range v.Items {
			encodeInto(b, it)
		}
	}
}
