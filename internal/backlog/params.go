package backlog

import (
	"net/url"
	"strconv"
)

type valueKind uint8

const (
	kindAbsent valueKind = iota
	kindScalar
	kindList
)

// Value is a single request parameter: absent, a scalar, or a list.
type Value struct {
	kind   valueKind
	scalar string
	list   []string
}

// String returns a scalar string value.
func String(s string) Value { return Value{kind: kindScalar, scalar: s} }

// Int returns a scalar integer value.
func Int(n int) Value { return Value{kind: kindScalar, scalar: strconv.Itoa(n)} }

// Float returns a scalar number value using the shortest representation.
func Float(f float64) Value {
	return Value{kind: kindScalar, scalar: strconv.FormatFloat(f, 'f', -1, 64)}
}

// Bool returns a scalar boolean value.
func Bool(b bool) Value { return Value{kind: kindScalar, scalar: strconv.FormatBool(b)} }

// Ints returns a list value. An empty list is absent.
func Ints(ns []int) Value {
	if len(ns) == 0 {
		return Value{}
	}
	list := make([]string, 0, len(ns))
	for _, n := range ns {
		list = append(list, strconv.Itoa(n))
	}
	return Value{kind: kindList, list: list}
}

// Strings returns a list value. An empty list is absent.
func Strings(ss []string) Value {
	if len(ss) == 0 {
		return Value{}
	}
	return Value{kind: kindList, list: append([]string(nil), ss...)}
}

// OptString is String for a non-nil pointer and absent otherwise.
func OptString(s *string) Value {
	if s == nil {
		return Value{}
	}
	return String(*s)
}

// OptInt is Int for a non-nil pointer and absent otherwise.
func OptInt(n *int) Value {
	if n == nil {
		return Value{}
	}
	return Int(*n)
}

// OptFloat is Float for a non-nil pointer and absent otherwise.
func OptFloat(f *float64) Value {
	if f == nil {
		return Value{}
	}
	return Float(*f)
}

// OptBool is Bool for a non-nil pointer and absent otherwise.
func OptBool(b *bool) Value {
	if b == nil {
		return Value{}
	}
	return Bool(*b)
}

// IsAbsent reports whether v carries nothing to send.
func (v Value) IsAbsent() bool { return v.kind == kindAbsent }

// Params is a set of named request parameters.
type Params map[string]Value

// Set stores v under key; absent values remove the key.
func (p Params) Set(key string, v Value) Params {
	if v.IsAbsent() {
		delete(p, key)
		return p
	}
	p[key] = v
	return p
}

// query encodes p for a URL query string. Lists expand as key[0], key[1], ...
func (p Params) query() url.Values {
	values := url.Values{}
	for key, v := range p {
		switch v.kind {
		case kindScalar:
			values.Set(key, v.scalar)
		case kindList:
			for i, item := range v.list {
				values.Set(key+"["+strconv.Itoa(i)+"]", item)
			}
		}
	}
	return values
}

// form encodes p for a form body. Lists expand as repeated key[] entries.
func (p Params) form() url.Values {
	values := url.Values{}
	for key, v := range p {
		switch v.kind {
		case kindScalar:
			values.Set(key, v.scalar)
		case kindList:
			for _, item := range v.list {
				values.Add(key+"[]", item)
			}
		}
	}
	return values
}

// Ptr returns a pointer to v, for filling optional fields.
func Ptr[T any](v T) *T {
	return &v
}
