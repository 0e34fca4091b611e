// Package config implements the typed, hierarchical configuration tree a
// component exposes: scalar leaf kinds (Bool, Int, Float, Str, Path, Enum,
// IntEnum) grouped under Parent nodes, themselves grouped under one
// GrandParent per graph.
package config

import (
	"fmt"
	"os"
)

// Node is any member of a configuration tree: a scalar leaf or a container.
// Clone returns an independent deep copy; Validate checks the node's current
// value against its own constraints (range, choice set, path existence).
type Node interface {
	Clone() Node
	Validate() error
}

// valuer exposes a leaf's value in its natural Go type, for AuditString and
// for the CLI projection in cli.go.
type valuer interface {
	rawValue() any
}

// dynamicer exposes a leaf's Dynamic flag: whether it is safe to apply a
// changed value without the owning component re-deriving cached state.
type dynamicer interface {
	isDynamic() bool
}

// IsDynamic reports whether node is a leaf tagged Dynamic. Container nodes
// and unrecognised node kinds report false.
func IsDynamic(node Node) bool {
	d, ok := node.(dynamicer)
	return ok && d.isDynamic()
}

// ValueChanged reports whether two leaves of the same kind hold different
// values. It is used to decide whether a SetConfig call actually altered
// anything a component needs to react to.
func ValueChanged(a, b Node) bool {
	av, aok := a.(valuer)
	bv, bok := b.(valuer)
	if !aok || !bok {
		return false
	}
	return av.rawValue() != bv.rawValue()
}

// SetRawValue assigns value onto node's underlying field, converting from
// value's dynamic Go type (bool, int64, float64, string) to whatever the
// leaf kind expects. It is used by a Compound's config_map broadcast,
// where one high-level assignment fans out to several leaves that are not
// necessarily all the same kind. It does not validate; callers validate via
// the node's own Validate (typically inside the owning component's
// SetConfig) after every target has been assigned.
func SetRawValue(node Node, value any) error {
	switch n := node.(type) {
	case *Bool:
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("%w: expected bool, got %T", ErrInvalid, value)
		}
		n.Value = v
	case *Int:
		v, ok := toInt64(value)
		if !ok {
			return fmt.Errorf("%w: expected int, got %T", ErrInvalid, value)
		}
		n.Value = v
	case *IntEnum:
		v, ok := toInt64(value)
		if !ok {
			return fmt.Errorf("%w: expected int, got %T", ErrInvalid, value)
		}
		n.Value = v
	case *Float:
		v, ok := toFloat64(value)
		if !ok {
			return fmt.Errorf("%w: expected float, got %T", ErrInvalid, value)
		}
		n.Value = v
	case *Str:
		v, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: expected string, got %T", ErrInvalid, value)
		}
		n.Value = v
	case *Path:
		v, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: expected string, got %T", ErrInvalid, value)
		}
		n.Value = v
	case *Enum:
		v, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: expected string, got %T", ErrInvalid, value)
		}
		n.Value = v
	default:
		return fmt.Errorf("%w: unsupported leaf kind %T", ErrInvalid, node)
	}
	return nil
}

func toInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		// encoding/json decodes every number into a float64; a config file's
		// integer leaf values arrive this way rather than as int64.
		return int64(v), true
	}
	return 0, false
}

func toFloat64(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	}
	return 0, false
}

// ErrInvalid is the sentinel a node's Validate wraps when a value is
// rejected. Component.SetConfig surfaces this as a ConfigInvalid error.
var ErrInvalid = fmt.Errorf("config: value rejected by validator")

// Bool holds a boolean leaf. It never rejects a value.
type Bool struct {
	Value   bool
	Dynamic bool
}

func (b *Bool) Clone() Node        { c := *b; return &c }
func (b *Bool) Validate() error    { return nil }
func (b *Bool) rawValue() any      { return b.Value }
func (b *Bool) isDynamic() bool    { return b.Dynamic }
func NewBool(v bool) *Bool         { return &Bool{Value: v} }

// Int holds an integer leaf constrained to [Min, Max].
type Int struct {
	Value      int64
	Min, Max   int64
	Dynamic    bool
}

func NewInt(v, min, max int64) *Int { return &Int{Value: v, Min: min, Max: max} }

func (n *Int) Clone() Node   { c := *n; return &c }
func (n *Int) rawValue() any { return n.Value }
func (n *Int) isDynamic() bool { return n.Dynamic }
func (n *Int) Validate() error {
	if n.Value < n.Min || n.Value > n.Max {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalid, n.Value, n.Min, n.Max)
	}
	return nil
}

// Float holds a real-valued leaf constrained to [Min, Max]. Decimals holds
// a display precision (3 from NewFloat); AuditString and the CLI flag help
// format the value with %v and %g and do not read it.
type Float struct {
	Value      float64
	Min, Max   float64
	Decimals   int
	Dynamic    bool
}

func NewFloat(v, min, max float64) *Float { return &Float{Value: v, Min: min, Max: max, Decimals: 3} }

func (n *Float) Clone() Node   { c := *n; return &c }
func (n *Float) rawValue() any { return n.Value }
func (n *Float) isDynamic() bool { return n.Dynamic }
func (n *Float) Validate() error {
	if n.Value < n.Min || n.Value > n.Max {
		return fmt.Errorf("%w: %g not in [%g, %g]", ErrInvalid, n.Value, n.Min, n.Max)
	}
	return nil
}

// Str holds free text with no validation.
type Str struct {
	Value   string
	Dynamic bool
}

func NewStr(v string) *Str   { return &Str{Value: v} }
func (s *Str) Clone() Node   { c := *s; return &c }
func (s *Str) Validate() error { return nil }
func (s *Str) rawValue() any { return s.Value }
func (s *Str) isDynamic() bool { return s.Dynamic }

// Path holds a filesystem path, optionally required to exist at validation
// time.
type Path struct {
	Value      string
	MustExist  bool
	Dynamic    bool
}

func NewPath(v string, mustExist bool) *Path { return &Path{Value: v, MustExist: mustExist} }

func (p *Path) Clone() Node   { c := *p; return &c }
func (p *Path) rawValue() any { return p.Value }
func (p *Path) isDynamic() bool { return p.Dynamic }
func (p *Path) Validate() error {
	if !p.MustExist || p.Value == "" {
		return nil
	}
	if _, err := os.Stat(p.Value); err != nil {
		return fmt.Errorf("%w: path %q: %v", ErrInvalid, p.Value, err)
	}
	return nil
}

// Enum holds a string leaf restricted to one of Choices.
type Enum struct {
	Value    string
	Choices  []string
	Dynamic  bool
}

func NewEnum(v string, choices ...string) *Enum { return &Enum{Value: v, Choices: choices} }

func (e *Enum) Clone() Node {
	c := *e
	c.Choices = append([]string(nil), e.Choices...)
	return &c
}
func (e *Enum) rawValue() any { return e.Value }
func (e *Enum) isDynamic() bool { return e.Dynamic }
func (e *Enum) Validate() error {
	for _, choice := range e.Choices {
		if choice == e.Value {
			return nil
		}
	}
	return fmt.Errorf("%w: %q not in %v", ErrInvalid, e.Value, e.Choices)
}

// IntEnum holds an integer leaf restricted to one of Choices.
type IntEnum struct {
	Value    int64
	Choices  []int64
	Dynamic  bool
}

func NewIntEnum(v int64, choices ...int64) *IntEnum { return &IntEnum{Value: v, Choices: choices} }

func (e *IntEnum) Clone() Node {
	c := *e
	c.Choices = append([]int64(nil), e.Choices...)
	return &c
}
func (e *IntEnum) rawValue() any { return e.Value }
func (e *IntEnum) isDynamic() bool { return e.Dynamic }
func (e *IntEnum) Validate() error {
	for _, choice := range e.Choices {
		if choice == e.Value {
			return nil
		}
	}
	return fmt.Errorf("%w: %d not in %v", ErrInvalid, e.Value, e.Choices)
}
