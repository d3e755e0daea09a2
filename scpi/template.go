package scpi

import (
	"fmt"
	"strconv"
	"strings"
)

// Value renders one argument from a parameter set.
type Value func(p Params) (string, error)

// Predicate decides whether a Field is included for a parameter set.
type Predicate func(p Params) bool

// Field is one declared element of a Template. In Pairs style Key is the
// field mnemonic; in Chained style Key is the clause header. A nil Value
// emits the bare key, a nil When always includes the field.
//
// When Keys is set the mnemonic selected by the integer parameter Select is
// appended to Key, so one field can address one of several headers.
type Field struct {
	Key   string
	Value Value
	When  Predicate

	Select string
	Keys   Enum
}

func (f Field) key(p Params) (string, error) {
	if f.Keys.Len() == 0 {
		return f.Key, nil
	}
	if err := p.require(f.Select); err != nil {
		return "", err
	}
	m, err := f.Keys.Mnemonic(p.Int(f.Select))
	if err != nil {
		return "", err
	}
	return f.Key + m, nil
}

// Style selects how a Template lays out its fields.
type Style int

const (
	// Pairs emits one clause: HEADER KEY,VALUE,KEY,VALUE.
	Pairs Style = iota
	// Chained emits one clause per field joined with Separator.
	Chained
)

// Template is a declarative command: a header and ordered fields with
// per-field inclusion predicates. Headers and keys may contain {name}
// placeholders expanded from integer parameters, e.g. "C{channel}:BSWV".
type Template struct {
	Header string
	Style  Style
	Fields []Field
}

// Build renders the template. Fields keep their declaration order.
func (t Template) Build(p Params) (Message, error) {
	switch t.Style {
	case Pairs:
		header, err := expand(t.Header, p)
		if err != nil {
			return nil, err
		}
		c := Clause{Header: header}
		for _, f := range t.Fields {
			if f.When != nil && !f.When(p) {
				continue
			}
			fk, err := f.key(p)
			if err != nil {
				return nil, err
			}
			key, err := expand(fk, p)
			if err != nil {
				return nil, err
			}
			c.Args = append(c.Args, key)
			if f.Value == nil {
				continue
			}
			v, err := f.Value(p)
			if err != nil {
				return nil, err
			}
			c.Args = append(c.Args, v)
		}
		return Message{c}, nil

	case Chained:
		var m Message
		for _, f := range t.Fields {
			if f.When != nil && !f.When(p) {
				continue
			}
			fk, err := f.key(p)
			if err != nil {
				return nil, err
			}
			key, err := expand(t.Header+fk, p)
			if err != nil {
				return nil, err
			}
			c := Clause{Header: key}
			if f.Value != nil {
				v, err := f.Value(p)
				if err != nil {
					return nil, err
				}
				c.Args = []string{v}
			}
			m = append(m, c)
		}
		return m, nil
	}
	return nil, fmt.Errorf("scpi: unknown template style %d", t.Style)
}

// expand replaces {name} placeholders with integer parameter values.
func expand(s string, p Params) (string, error) {
	if !strings.Contains(s, "{") {
		return s, nil
	}
	var b strings.Builder
	for {
		open := strings.IndexByte(s, '{')
		if open < 0 {
			b.WriteString(s)
			return b.String(), nil
		}
		end := strings.IndexByte(s[open:], '}')
		if end < 0 {
			return "", fmt.Errorf("scpi: unterminated placeholder in %q", s)
		}
		name := s[open+1 : open+end]
		if err := p.require(name); err != nil {
			return "", err
		}
		b.WriteString(s[:open])
		b.WriteString(strconv.Itoa(p.Int(name)))
		s = s[open+end+1:]
	}
}

// Number renders a float parameter with FormatFloat.
func Number(name string) Value {
	return Precision(name, Digits)
}

// Precision renders a float parameter with the given significant digits.
func Precision(name string, digits int) Value {
	return func(p Params) (string, error) {
		if err := p.require(name); err != nil {
			return "", err
		}
		v := p.Float(name)
		if err := checkFinite(name, v); err != nil {
			return "", err
		}
		return FormatPrecision(v, digits), nil
	}
}

// Fixed renders a float parameter with a fixed number of decimals.
func Fixed(name string, decimals int) Value {
	return func(p Params) (string, error) {
		if err := p.require(name); err != nil {
			return "", err
		}
		v := p.Float(name)
		if err := checkFinite(name, v); err != nil {
			return "", err
		}
		return FormatFixed(v, decimals), nil
	}
}

// Plain renders a float parameter in its shortest form.
func Plain(name string) Value {
	return func(p Params) (string, error) {
		if err := p.require(name); err != nil {
			return "", err
		}
		v := p.Float(name)
		if err := checkFinite(name, v); err != nil {
			return "", err
		}
		return FormatPlain(v), nil
	}
}

// Integer renders a parameter as a decimal integer.
func Integer(name string) Value {
	return func(p Params) (string, error) {
		if err := p.require(name); err != nil {
			return "", err
		}
		return strconv.Itoa(p.Int(name)), nil
	}
}

// Text renders a string parameter verbatim.
func Text(name string) Value {
	return func(p Params) (string, error) {
		if err := p.require(name); err != nil {
			return "", err
		}
		return p.String(name), nil
	}
}

// Choice renders an integer selector through e.
func Choice(name string, e Enum) Value {
	return func(p Params) (string, error) {
		if err := p.require(name); err != nil {
			return "", err
		}
		return e.Mnemonic(p.Int(name))
	}
}

// Switch renders a boolean parameter as off or on.
func Switch(name, off, on string) Value {
	return func(p Params) (string, error) {
		if err := p.require(name); err != nil {
			return "", err
		}
		if p.Bool(name) {
			return on, nil
		}
		return off, nil
	}
}

// Literal renders a constant.
func Literal(s string) Value {
	return func(Params) (string, error) { return s, nil }
}

// Present is true when name is set.
func Present(name string) Predicate {
	return func(p Params) bool { return p.Has(name) }
}

// Absent is true when name is not set.
func Absent(name string) Predicate {
	return func(p Params) bool { return !p.Has(name) }
}

// True is true when name is set and true.
func True(name string) Predicate {
	return func(p Params) bool { return p.Bool(name) }
}

// False is true when name is unset or false.
func False(name string) Predicate {
	return func(p Params) bool { return !p.Bool(name) }
}

// Is is true when the integer parameter name equals v.
func Is(name string, v int) Predicate {
	return func(p Params) bool { return p.Has(name) && p.Int(name) == v }
}

// IsNot is true when the integer parameter name is set and differs from v.
func IsNot(name string, v int) Predicate {
	return func(p Params) bool { return p.Has(name) && p.Int(name) != v }
}

// Within is true when lo <= name < hi.
func Within(name string, lo, hi float64) Predicate {
	return func(p Params) bool {
		v := p.Float(name)
		return p.Has(name) && v >= lo && v < hi
	}
}

// All is true when every predicate is true.
func All(preds ...Predicate) Predicate {
	return func(p Params) bool {
		for _, pred := range preds {
			if !pred(p) {
				return false
			}
		}
		return true
	}
}

// Any is true when at least one predicate is true.
func Any(preds ...Predicate) Predicate {
	return func(p Params) bool {
		for _, pred := range preds {
			if pred(p) {
				return true
			}
		}
		return false
	}
}
