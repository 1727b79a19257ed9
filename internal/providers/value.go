package providers

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind discriminates the shapes a capability provider may return.
type Kind int

const (
	KindText Kind = iota
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is the tagged union for provider responses: a scalar string, a
// sequence of records, or a nested map. Callers never branch on the raw
// response shape; Normalize collapses every shape into one canonical text
// form.
type Value struct {
	kind Kind
	text string
	list []Value
	mp   map[string]Value
}

// Text wraps a scalar string.
func Text(s string) Value {
	return Value{kind: KindText, text: s}
}

// List wraps a sequence of values.
func List(vs ...Value) Value {
	return Value{kind: KindList, list: vs}
}

// Map wraps a keyed record.
func Map(m map[string]Value) Value {
	return Value{kind: KindMap, mp: m}
}

// FromAny converts a decoded JSON value (string, number, bool, []any,
// map[string]any) into a Value. Unknown types are stringified.
func FromAny(v any) Value {
	switch t := v.(type) {
	case nil:
		return Text("")
	case string:
		return Text(t)
	case bool:
		return Text(strconv.FormatBool(t))
	case float64:
		return Text(formatFloat(t))
	case int:
		return Text(strconv.Itoa(t))
	case int64:
		return Text(strconv.FormatInt(t, 10))
	case []any:
		items := make([]Value, 0, len(t))
		for _, e := range t {
			items = append(items, FromAny(e))
		}
		return Value{kind: KindList, list: items}
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			m[k] = FromAny(e)
		}
		return Value{kind: KindMap, mp: m}
	default:
		return Text(fmt.Sprintf("%v", t))
	}
}

func (v Value) Kind() Kind { return v.kind }

// IsEmpty reports whether the value carries no payload at all.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindText:
		return v.text == ""
	case KindList:
		return len(v.list) == 0
	case KindMap:
		return len(v.mp) == 0
	}
	return true
}

// Normalize collapses the value into one canonical text form:
//   - scalar: returned as-is
//   - list: the first element carries the payload; a map element yields its
//     "text" or "content" field, otherwise its serialization
//   - map: "text", "content", "message" or "result" field in that priority
//     order, otherwise the deterministic serialization of the whole map
//
// An empty list normalizes to "No result returned".
func (v Value) Normalize() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindList:
		if len(v.list) == 0 {
			return "No result returned"
		}
		first := v.list[0]
		if first.kind == KindMap {
			if s, ok := first.field("text"); ok {
				return s
			}
			if s, ok := first.field("content"); ok {
				return s
			}
		}
		if first.kind == KindText {
			return first.text
		}
		return first.serialize()
	case KindMap:
		for _, key := range []string{"text", "content", "message", "result"} {
			if s, ok := v.field(key); ok {
				return s
			}
		}
		return v.serialize()
	}
	return ""
}

func (v Value) field(key string) (string, bool) {
	e, ok := v.mp[key]
	if !ok {
		return "", false
	}
	if e.kind == KindText {
		return e.text, true
	}
	return e.Normalize(), true
}

// serialize produces a deterministic structural rendering: map keys are
// emitted in sorted order so the same value always serializes identically.
func (v Value) serialize() string {
	var b strings.Builder
	v.writeTo(&b)
	return b.String()
}

func (v Value) writeTo(b *strings.Builder) {
	switch v.kind {
	case KindText:
		b.WriteString(strconv.Quote(v.text))
	case KindList:
		b.WriteByte('[')
		for i, e := range v.list {
			if i > 0 {
				b.WriteString(", ")
			}
			e.writeTo(b)
		}
		b.WriteByte(']')
	case KindMap:
		keys := make([]string, 0, len(v.mp))
		for k := range v.mp {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(strconv.Quote(k))
			b.WriteString(": ")
			v.mp[k].writeTo(b)
		}
		b.WriteByte('}')
	}
}

func formatFloat(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
