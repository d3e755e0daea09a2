package cnc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/TheAlpha16/awg-cnc/scpi"
)

// Kind is the type of a command parameter.
type Kind int

const (
	KindFloat Kind = iota
	KindInt
	KindBool
	KindString
	KindSamples
	KindChoice
)

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindSamples:
		return "samples"
	case KindChoice:
		return "choice"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParamSpec declares one command parameter.
type ParamSpec struct {
	Name     string
	Kind     Kind
	Required bool
	Fallback any

	Bounded  bool
	Min, Max float64

	// Allowed, when set, lists the only accepted values of a numeric
	// parameter.
	Allowed []float64

	// Enum lists the accepted mnemonics of a KindChoice parameter.
	Enum scpi.Enum
}

// Float declares a required floating point parameter.
func Float(name string) ParamSpec { return ParamSpec{Name: name, Kind: KindFloat, Required: true} }

// Int declares a required integer parameter.
func Int(name string) ParamSpec { return ParamSpec{Name: name, Kind: KindInt, Required: true} }

// Bool declares a required boolean parameter. Numbers and on/off strings
// are accepted.
func Bool(name string) ParamSpec { return ParamSpec{Name: name, Kind: KindBool, Required: true} }

// String declares a required string parameter.
func String(name string) ParamSpec { return ParamSpec{Name: name, Kind: KindString, Required: true} }

// Samples declares a required waveform sample array.
func Samples(name string) ParamSpec { return ParamSpec{Name: name, Kind: KindSamples, Required: true} }

// Choice declares a required enumerated selector. Both the integer index
// and the mnemonic are accepted.
func Choice(name string, e scpi.Enum) ParamSpec {
	return ParamSpec{Name: name, Kind: KindChoice, Required: true, Enum: e}
}

// Channel declares the output channel selector used by most commands.
func Channel() ParamSpec { return Int("channel").Range(1, 2) }

// Optional makes the parameter optional with no default.
func (s ParamSpec) Optional() ParamSpec {
	s.Required = false
	return s
}

// WithDefault makes the parameter optional with a default value.
func (s ParamSpec) WithDefault(v any) ParamSpec {
	s.Required = false
	s.Fallback = v
	return s
}

// OneOf restricts an integer parameter to the given values.
func (s ParamSpec) OneOf(values ...int) ParamSpec {
	s.Allowed = make([]float64, len(values))
	for i, v := range values {
		s.Allowed[i] = float64(v)
	}
	return s
}

// Range bounds a numeric parameter to [min, max].
func (s ParamSpec) Range(min, max float64) ParamSpec {
	s.Bounded = true
	s.Min, s.Max = min, max
	return s
}

func (s ParamSpec) String() string {
	var b strings.Builder
	b.WriteString(s.Name)
	b.WriteString(":")
	b.WriteString(s.Kind.String())
	if s.Kind == KindChoice {
		b.WriteString("(" + strings.Join(s.Enum.Mnemonics, "|") + ")")
	}
	if len(s.Allowed) > 0 {
		vals := make([]string, len(s.Allowed))
		for i, v := range s.Allowed {
			vals[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		b.WriteString("(" + strings.Join(vals, "|") + ")")
	}
	if !s.Required {
		b.WriteString("?")
	}
	return b.String()
}

// Validate checks raw request parameters against the schema and returns
// them converted to their declared types. Unknown keys are rejected.
func (d *Descriptor) Validate(raw map[string]any) (scpi.Params, error) {
	known := make(map[string]bool, len(d.Params))
	for _, s := range d.Params {
		known[s.Name] = true
	}

	var unknown []string
	for k := range raw {
		if !known[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w: %s does not take %s", ErrMalformedParameters, d.Name, strings.Join(unknown, ", "))
	}

	params := make(scpi.Params, len(d.Params))
	for _, s := range d.Params {
		v, ok := raw[s.Name]
		if !ok || v == nil {
			if s.Fallback != nil {
				params[s.Name] = s.Fallback
			} else if s.Required {
				return nil, fmt.Errorf("%w: %s requires %s", ErrMalformedParameters, d.Name, s.Name)
			}
			continue
		}
		cv, err := s.coerce(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedParameters, s.Name, err)
		}
		params[s.Name] = cv
	}
	return params, nil
}

// Usage lists the parameter schema, e.g. "channel:int freq:float".
func (d *Descriptor) Usage() string {
	parts := make([]string, len(d.Params))
	for i, s := range d.Params {
		parts[i] = s.String()
	}
	return strings.Join(parts, " ")
}

func (s ParamSpec) coerce(v any) (any, error) {
	switch s.Kind {
	case KindFloat:
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		return f, s.checkRange(f)

	case KindInt:
		i, err := toInt(v)
		if err != nil {
			return nil, err
		}
		return i, s.checkRange(float64(i))

	case KindBool:
		return toBool(v)

	case KindString:
		switch x := v.(type) {
		case string:
			return x, nil
		case json.Number:
			return x.String(), nil
		}
		return nil, fmt.Errorf("expected string, got %T", v)

	case KindSamples:
		return toSamples(v)

	case KindChoice:
		if str, ok := v.(string); ok {
			if i, found := s.Enum.Index(str); found {
				return i, nil
			}
			if _, err := strconv.Atoi(str); err != nil {
				return nil, fmt.Errorf("%q is not one of %s", str, strings.Join(s.Enum.Mnemonics, ", "))
			}
		}
		return toInt(v)
	}
	return nil, fmt.Errorf("unsupported kind %s", s.Kind)
}

func (s ParamSpec) checkRange(f float64) error {
	if s.Bounded && (f < s.Min || f > s.Max) {
		return fmt.Errorf("%v outside [%v, %v]", f, s.Min, s.Max)
	}
	if len(s.Allowed) > 0 && !slices.Contains(s.Allowed, f) {
		return fmt.Errorf("%v is not one of %v", f, s.Allowed)
	}
	return nil
}

func toFloat(v any) (float64, error) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		var err error
		if f, err = x.Float64(); err != nil {
			return 0, err
		}
	case string:
		var err error
		if f, err = strconv.ParseFloat(strings.TrimSpace(x), 64); err != nil {
			return 0, fmt.Errorf("%q is not a number", x)
		}
	case bool:
		if x {
			f = 1
		}
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%v is not finite", f)
	}
	return f, nil
}

func toInt(v any) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return int(i), nil
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(x)); err == nil {
			return i, nil
		}
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%v is not an integer", f)
	}
	return int(f), nil
}

func toBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "on":
			return true, nil
		case "off":
			return false, nil
		}
		if b, err := strconv.ParseBool(strings.TrimSpace(x)); err == nil {
			return b, nil
		}
	}
	f, err := toFloat(v)
	if err != nil {
		return false, fmt.Errorf("expected bool, got %v", v)
	}
	return f != 0, nil
}

func toSamples(v any) ([]float32, error) {
	switch x := v.(type) {
	case []float32:
		if len(x) == 0 {
			return nil, errors.New("no samples")
		}
		return x, nil
	case []float64:
		if len(x) == 0 {
			return nil, errors.New("no samples")
		}
		out := make([]float32, len(x))
		for i, f := range x {
			out[i] = float32(f)
		}
		return out, nil
	case []any:
		if len(x) == 0 {
			return nil, errors.New("no samples")
		}
		out := make([]float32, len(x))
		for i, e := range x {
			f, err := toFloat(e)
			if err != nil {
				return nil, fmt.Errorf("sample %d: %v", i, err)
			}
			out[i] = float32(f)
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected sample array, got %T", v)
}
