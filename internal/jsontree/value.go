// Package jsontree decodes JSON documents into an explicit tagged value tree
// that keeps object keys in document order. Source config files nest
// categories to arbitrary depth and mix objects with arrays at any level, so
// loaders walk them with a switch on Kind rather than type assertions on
// map[string]any.
package jsontree

import (
	"strconv"
	"strings"
)

type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return "null"
	}
}

type Member struct {
	Key   string
	Value *Value
}

type Value struct {
	kind    Kind
	text    string // string contents or number literal
	boolean bool
	items   []*Value
	members []Member
}

// EmptyObject is what loaders fall back to when a config document is
// missing or unreadable.
func EmptyObject() *Value { return &Value{kind: Object} }

func NewString(s string) *Value { return &Value{kind: String, text: s} }

func (v *Value) Kind() Kind {
	if v == nil {
		return Null
	}
	return v.kind
}

func (v *Value) IsObject() bool { return v.Kind() == Object }
func (v *Value) IsArray() bool  { return v.Kind() == Array }

// Members returns object members in document order; nil for other kinds.
func (v *Value) Members() []Member {
	if v.Kind() != Object {
		return nil
	}
	return v.members
}

func (v *Value) Items() []*Value {
	if v.Kind() != Array {
		return nil
	}
	return v.items
}

func (v *Value) Get(key string) (*Value, bool) {
	for _, m := range v.Members() {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

func (v *Value) Has(key string) bool {
	_, ok := v.Get(key)
	return ok
}

// Str returns the contents of a string value.
func (v *Value) Str() (string, bool) {
	if v.Kind() != String {
		return "", false
	}
	return v.text, true
}

// Text renders scalars as text: strings verbatim, numbers as written in the
// document, booleans as true/false. Arrays, objects and null yield "".
func (v *Value) Text() string {
	switch v.Kind() {
	case String, Number:
		return v.text
	case Bool:
		return strconv.FormatBool(v.boolean)
	default:
		return ""
	}
}

// Field returns the trimmed text of an object member, or "" when absent.
func (v *Value) Field(key string) string {
	child, ok := v.Get(key)
	if !ok {
		return ""
	}
	return strings.TrimSpace(child.Text())
}

// Strings flattens a member into a string list: an array contributes its
// scalar items, a single scalar contributes itself. Empty strings are dropped.
func (v *Value) Strings(key string) []string {
	child, ok := v.Get(key)
	if !ok {
		return nil
	}
	var out []string
	switch child.Kind() {
	case Array:
		for _, item := range child.items {
			if s := strings.TrimSpace(item.Text()); s != "" {
				out = append(out, s)
			}
		}
	default:
		if s := strings.TrimSpace(child.Text()); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (v *Value) Bool() (bool, bool) {
	if v.Kind() != Bool {
		return false, false
	}
	return v.boolean, true
}

func (v *Value) Int() (int, bool) {
	if v.Kind() != Number {
		return 0, false
	}
	n, err := strconv.Atoi(v.text)
	if err != nil {
		f, ferr := strconv.ParseFloat(v.text, 64)
		if ferr != nil {
			return 0, false
		}
		return int(f), true
	}
	return n, true
}

// Len is the number of members or items, 0 for scalars.
func (v *Value) Len() int {
	switch v.Kind() {
	case Object:
		return len(v.members)
	case Array:
		return len(v.items)
	default:
		return 0
	}
}
