// Package predicate implements the `when` clause AST (§4.4): literals,
// fact references, comparisons, boolean connectives, and `in`.
//
// This is a small hand-written tree rather than a general expression
// library (cel-go, etc.): the grammar is tiny and fixed by the spec, so
// pulling in a full expression engine would add a dependency surface with
// no corresponding feature need. See DESIGN.md for the tradeoff.
package predicate

import "fmt"

// Value is the dynamic value type predicates compare: nil, bool, float64,
// or string. An `in` right-hand side is a list of Exprs, not a Value.
type Value any

// Facts is the opaque per-host context a Predicate is evaluated against.
// The core never computes facts itself; this is the shape the external
// facts provider returns.
type Facts map[string]Value

// Predicate is a node in the `when` AST.
type Predicate interface {
	Eval(facts Facts) bool
}

// Literal wraps a constant value.
type Literal struct{ Value Value }

func (l Literal) Eval(Facts) bool { return truthy(l.Value) }

// FactRef resolves a named fact; missing facts evaluate to nil.
type FactRef struct{ Name string }

func (f FactRef) value(facts Facts) Value {
	v, ok := facts[f.Name]
	if !ok {
		return nil
	}
	return v
}

func (f FactRef) Eval(facts Facts) bool { return truthy(f.value(facts)) }

// And, Or, Not are boolean connectives.
type And struct{ Left, Right Predicate }

func (a And) Eval(facts Facts) bool { return a.Left.Eval(facts) && a.Right.Eval(facts) }

type Or struct{ Left, Right Predicate }

func (o Or) Eval(facts Facts) bool { return o.Left.Eval(facts) || o.Right.Eval(facts) }

type Not struct{ Inner Predicate }

// Eval: "not of nil is true" per spec — a bare FactRef wrapped in Not
// follows normal boolean negation of its truthiness, and since a missing
// fact is falsy, Not{FactRef} over a missing fact is true, matching spec.
func (n Not) Eval(facts Facts) bool { return !n.Inner.Eval(facts) }

// CompareOp is one of == != < <= > >=.
type CompareOp string

const (
	OpEq CompareOp = "=="
	OpNe CompareOp = "!="
	OpLt CompareOp = "<"
	OpLe CompareOp = "<="
	OpGt CompareOp = ">"
	OpGe CompareOp = ">="
)

// Compare evaluates `Left op Right` where Left/Right are expressions
// (FactRef or Literal) whose resolved values are compared. Comparisons
// involving a nil operand are always false, per spec.
type Compare struct {
	Op          CompareOp
	Left, Right Expr
}

// Expr resolves to a Value given a Facts context (FactRef or Literal).
type Expr interface {
	Resolve(facts Facts) Value
}

func (l Literal) Resolve(Facts) Value       { return l.Value }
func (f FactRef) Resolve(facts Facts) Value { return f.value(facts) }

func (c Compare) Eval(facts Facts) bool {
	l := c.Left.Resolve(facts)
	r := c.Right.Resolve(facts)
	if l == nil || r == nil {
		return false
	}
	switch c.Op {
	case OpEq:
		return equalValues(l, r)
	case OpNe:
		return !equalValues(l, r)
	case OpLt, OpLe, OpGt, OpGe:
		lf, lok := toFloat(l)
		rf, rok := toFloat(r)
		if !lok || !rok {
			return false
		}
		switch c.Op {
		case OpLt:
			return lf < rf
		case OpLe:
			return lf <= rf
		case OpGt:
			return lf > rf
		case OpGe:
			return lf >= rf
		}
	}
	return false
}

// In evaluates `Left in Set`; nil operands are always false.
type In struct {
	Left Expr
	Set  []Expr
}

func (i In) Eval(facts Facts) bool {
	l := i.Left.Resolve(facts)
	if l == nil {
		return false
	}
	for _, e := range i.Set {
		if equalValues(l, e.Resolve(facts)) {
			return true
		}
	}
	return false
}

func truthy(v Value) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	default:
		return true
	}
}

func equalValues(a, b Value) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func toFloat(v Value) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}

// Always is the default `when: true` predicate.
var Always Predicate = Literal{Value: true}
