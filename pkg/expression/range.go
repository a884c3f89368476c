package expression

import (
	"github.com/shopspring/decimal"
)

// Interval is a closed numeric range. A nil bound is unbounded on that side.
type Interval struct {
	Lo *decimal.Decimal
	Hi *decimal.Decimal
}

func Unbounded() Interval {
	return Interval{}
}

func Point(d decimal.Decimal) Interval {
	return Interval{Lo: &d, Hi: &d}
}

func Between(lo, hi *decimal.Decimal) Interval {
	return Interval{Lo: lo, Hi: hi}
}

// AlwaysNegative reports whether every value in the interval is below zero.
func (i Interval) AlwaysNegative() bool {
	return i.Hi != nil && i.Hi.IsNegative()
}

// IsZero reports whether the interval is exactly {0}.
func (i Interval) IsZero() bool {
	return i.Lo != nil && i.Hi != nil && i.Lo.IsZero() && i.Hi.IsZero()
}

func (i Interval) nonNegative() bool {
	return i.Lo != nil && !i.Lo.IsNegative()
}

// RangeScope supplies the statically known range of a reference.
type RangeScope interface {
	RefRange(ref Ref) Interval
}

// Range bounds the numeric result of e without evaluating it. Non-numeric and unknown results are
// unbounded, so the analysis never claims more than it can prove.
func Range(e *Expr, scope RangeScope) Interval {
	if e == nil {
		return Unbounded()
	}

	switch e.Op {
	case OpLiteral:
		v, err := FromAny(e.Value)
		if err != nil {
			return Unbounded()
		}
		if n, ok := v.AsNumber(); ok {
			return Point(n)
		}
		return Unbounded()
	case OpRef:
		if e.Ref == nil || scope == nil {
			return Unbounded()
		}
		return scope.RefRange(*e.Ref)
	case OpIf:
		if len(e.Args) != 3 {
			return Unbounded()
		}
		return hull(Range(e.Args[1], scope), Range(e.Args[2], scope))
	}

	args := make([]Interval, len(e.Args))
	for i, arg := range e.Args {
		args[i] = Range(arg, scope)
	}
	if len(args) == 0 {
		return Unbounded()
	}

	switch e.Op {
	case OpAdd:
		out := args[0]
		for _, a := range args[1:] {
			out = Interval{Lo: addBound(out.Lo, a.Lo), Hi: addBound(out.Hi, a.Hi)}
		}
		return out
	case OpSub:
		if len(args) != 2 {
			return Unbounded()
		}
		neg := negate(args[1])
		return Interval{Lo: addBound(args[0].Lo, neg.Lo), Hi: addBound(args[0].Hi, neg.Hi)}
	case OpNeg:
		return negate(args[0])
	case OpMul:
		out := args[0]
		for _, a := range args[1:] {
			out = mulInterval(out, a)
		}
		return out
	case OpDiv:
		if len(args) != 2 {
			return Unbounded()
		}
		return divInterval(args[0], args[1])
	case OpMin:
		out := args[0]
		for _, a := range args[1:] {
			out = Interval{Lo: minBound(out.Lo, a.Lo, true), Hi: minBound(out.Hi, a.Hi, false)}
		}
		return out
	case OpMax:
		out := args[0]
		for _, a := range args[1:] {
			out = Interval{Lo: maxBound(out.Lo, a.Lo, false), Hi: maxBound(out.Hi, a.Hi, true)}
		}
		return out
	case OpCeil:
		return mapBounds(args[0], decimal.Decimal.Ceil)
	case OpFloor:
		return mapBounds(args[0], decimal.Decimal.Floor)
	case OpRound:
		return mapBounds(args[0], func(d decimal.Decimal) decimal.Decimal { return d.Round(0) })
	default:
		return Unbounded()
	}
}

func negate(i Interval) Interval {
	out := Interval{}
	if i.Hi != nil {
		lo := i.Hi.Neg()
		out.Lo = &lo
	}
	if i.Lo != nil {
		hi := i.Lo.Neg()
		out.Hi = &hi
	}
	return out
}

func addBound(a, b *decimal.Decimal) *decimal.Decimal {
	if a == nil || b == nil {
		return nil
	}
	s := a.Add(*b)
	return &s
}

// minBound picks the smaller bound. For lower bounds a nil is minus infinity and wins; for upper
// bounds a nil is plus infinity and loses.
func minBound(a, b *decimal.Decimal, nilWins bool) *decimal.Decimal {
	if a == nil || b == nil {
		if nilWins {
			return nil
		}
		if a == nil {
			return b
		}
		return a
	}
	m := decimal.Min(*a, *b)
	return &m
}

func maxBound(a, b *decimal.Decimal, nilWins bool) *decimal.Decimal {
	if a == nil || b == nil {
		if nilWins {
			return nil
		}
		if a == nil {
			return b
		}
		return a
	}
	m := decimal.Max(*a, *b)
	return &m
}

func hull(a, b Interval) Interval {
	return Interval{Lo: minBound(a.Lo, b.Lo, true), Hi: maxBound(a.Hi, b.Hi, true)}
}

func mulInterval(a, b Interval) Interval {
	if a.Lo != nil && a.Hi != nil && b.Lo != nil && b.Hi != nil {
		products := []decimal.Decimal{
			a.Lo.Mul(*b.Lo), a.Lo.Mul(*b.Hi), a.Hi.Mul(*b.Lo), a.Hi.Mul(*b.Hi),
		}
		lo := decimal.Min(products[0], products[1:]...)
		hi := decimal.Max(products[0], products[1:]...)
		return Interval{Lo: &lo, Hi: &hi}
	}
	if a.nonNegative() && b.nonNegative() {
		lo := a.Lo.Mul(*b.Lo)
		out := Interval{Lo: &lo}
		if a.Hi != nil && b.Hi != nil {
			hi := a.Hi.Mul(*b.Hi)
			out.Hi = &hi
		}
		return out
	}
	// a point on one side and a half-bounded range on the other keeps its sign
	if p, ok := point(a); ok {
		return scale(b, p)
	}
	if p, ok := point(b); ok {
		return scale(a, p)
	}
	return Unbounded()
}

func divInterval(a, b Interval) Interval {
	p, ok := point(b)
	if !ok || p.IsZero() {
		return Unbounded()
	}
	return scale(a, decimal.NewFromInt(1).Div(p))
}

func point(i Interval) (decimal.Decimal, bool) {
	if i.Lo != nil && i.Hi != nil && i.Lo.Equal(*i.Hi) {
		return *i.Lo, true
	}
	return decimal.Zero, false
}

func scale(i Interval, k decimal.Decimal) Interval {
	switch {
	case k.IsZero():
		return Point(decimal.Zero)
	case k.IsPositive():
		return mapBounds(i, func(d decimal.Decimal) decimal.Decimal { return d.Mul(k) })
	default:
		return mapBounds(negate(i), func(d decimal.Decimal) decimal.Decimal { return d.Mul(k.Neg()) })
	}
}

func mapBounds(i Interval, fn func(decimal.Decimal) decimal.Decimal) Interval {
	out := Interval{}
	if i.Lo != nil {
		lo := fn(*i.Lo)
		out.Lo = &lo
	}
	if i.Hi != nil {
		hi := fn(*i.Hi)
		out.Hi = &hi
	}
	return out
}
