package validation

import (
	"sort"
	"strconv"
	"strings"

	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/expression"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/models"
	"github.com/shopspring/decimal"
)

// maxConjuncts caps a condition's disjunctive normal form. A condition that grows past it is
// treated as always satisfiable.
const maxConjuncts = 256

type atomOp int

const (
	atomEq atomOp = iota
	atomNeq
	atomGt
	atomGte
	atomLt
	atomLte
)

// atom constrains one selection key against a literal.
type atom struct {
	key   string
	op    atomOp
	value expression.Value
}

func (a atom) String() string {
	return a.key + "#" + strconv.Itoa(int(a.op)) + "#" + a.value.Kind().String() + ":" + a.value.String()
}

func (a atom) negate() atom {
	switch a.op {
	case atomEq:
		a.op = atomNeq
	case atomNeq:
		a.op = atomEq
	case atomGt:
		a.op = atomLte
	case atomGte:
		a.op = atomLt
	case atomLt:
		a.op = atomGte
	case atomLte:
		a.op = atomGt
	}
	return a
}

// conjunction is an AND of atoms. An empty conjunction is true.
type conjunction []atom

func (c conjunction) key() string {
	parts := make([]string, len(c))
	for i, a := range c {
		parts[i] = a.String()
	}
	sort.Strings(parts)
	return strings.Join(parts, "&")
}

// dnf is an OR of conjunctions. An empty dnf is false. Atoms the analysis cannot interpret are
// dropped, which widens the condition, so an unsatisfiable dnf really is unsatisfiable.
type dnf []conjunction

func dnfTrue() dnf {
	return dnf{conjunction{}}
}

func dnfFalse() dnf {
	return dnf{}
}

func dnfAtom(a atom) dnf {
	return dnf{conjunction{a}}
}

func or(a, b dnf) dnf {
	out := make(dnf, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return dedupe(out)
}

func and(a, b dnf) dnf {
	if len(a)*len(b) > maxConjuncts {
		return dnfTrue()
	}
	out := make(dnf, 0, len(a)*len(b))
	for _, x := range a {
		for _, y := range b {
			c := make(conjunction, 0, len(x)+len(y))
			c = append(c, x...)
			c = append(c, y...)
			out = append(out, c)
		}
	}
	return dedupe(out)
}

func dedupe(d dnf) dnf {
	seen := map[string]bool{}
	out := make(dnf, 0, len(d))
	for _, c := range d {
		k := c.key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, c)
	}
	if len(out) > maxConjuncts {
		return dnfTrue()
	}
	return out
}

// toDNF normalizes a condition. Negation is pushed down to the atoms.
func toDNF(e *expression.Expr, negated bool) dnf {
	if e == nil {
		return dnfTrue()
	}

	switch e.Op {
	case expression.OpLiteral:
		v, err := expression.FromAny(e.Value)
		if err != nil {
			return dnfTrue()
		}
		b, ok := v.AsBool()
		if v.IsNull() {
			b, ok = false, true
		}
		if !ok {
			return dnfTrue()
		}
		if b != negated {
			return dnfTrue()
		}
		return dnfFalse()
	case expression.OpRef:
		if e.Ref == nil || e.Ref.Kind != expression.SelectionRef {
			return dnfTrue()
		}
		a := atom{key: e.Ref.SelectionKey, op: atomEq, value: expression.Bool(true)}
		if negated {
			a = a.negate()
		}
		return dnfAtom(a)
	case expression.OpNot:
		if len(e.Args) != 1 {
			return dnfTrue()
		}
		return toDNF(e.Args[0], !negated)
	case expression.OpAnd, expression.OpOr:
		combine, start := and, dnfTrue()
		if (e.Op == expression.OpOr) != negated {
			combine, start = or, dnfFalse()
		}
		out := start
		for _, arg := range e.Args {
			out = combine(out, toDNF(arg, negated))
		}
		return out
	case expression.OpEq, expression.OpNeq, expression.OpGt, expression.OpGte, expression.OpLt, expression.OpLte:
		a, ok := comparisonAtom(e)
		if !ok {
			return dnfTrue()
		}
		if !negated {
			return dnfAtom(a)
		}
		if a.op == atomEq || a.op == atomNeq {
			return dnfAtom(a.negate())
		}
		// an ordering against an unselected key is false, so its negation also holds for null
		return or(dnfAtom(a.negate()), dnfAtom(atom{key: a.key, op: atomEq, value: expression.Null()}))
	}
	return dnfTrue()
}

var flipped = map[atomOp]atomOp{atomEq: atomEq, atomNeq: atomNeq, atomGt: atomLt, atomGte: atomLte, atomLt: atomGt, atomLte: atomGte}

func comparisonAtom(e *expression.Expr) (atom, bool) {
	if len(e.Args) != 2 {
		return atom{}, false
	}
	ops := map[expression.Op]atomOp{
		expression.OpEq: atomEq, expression.OpNeq: atomNeq,
		expression.OpGt: atomGt, expression.OpGte: atomGte,
		expression.OpLt: atomLt, expression.OpLte: atomLte,
	}
	op := ops[e.Op]

	key, lit, swapped, ok := refAndLiteral(e.Args[0], e.Args[1])
	if !ok {
		return atom{}, false
	}
	if swapped {
		op = flipped[op]
	}
	if op != atomEq && op != atomNeq && lit.Kind() != expression.KindNumber {
		return atom{}, false
	}
	return atom{key: key, op: op, value: lit}, true
}

func refAndLiteral(a, b *expression.Expr) (string, expression.Value, bool, bool) {
	if key, ok := selectionKey(a); ok {
		if v, ok := literal(b); ok {
			return key, v, false, true
		}
	}
	if key, ok := selectionKey(b); ok {
		if v, ok := literal(a); ok {
			return key, v, true, true
		}
	}
	return "", expression.Value{}, false, false
}

func selectionKey(e *expression.Expr) (string, bool) {
	if e == nil || e.Op != expression.OpRef || e.Ref == nil || e.Ref.Kind != expression.SelectionRef {
		return "", false
	}
	return e.Ref.SelectionKey, true
}

func literal(e *expression.Expr) (expression.Value, bool) {
	if e == nil || e.Op != expression.OpLiteral {
		return expression.Value{}, false
	}
	v, err := expression.FromAny(e.Value)
	return v, err == nil
}

// solver decides satisfiability against the tree's declared inputs.
type solver struct {
	ix *models.TreeIndex
}

func (s solver) satisfiable(d dnf) bool {
	for _, c := range d {
		if s.conjunctionSatisfiable(c) {
			return true
		}
	}
	return false
}

func (s solver) conjunctionSatisfiable(c conjunction) bool {
	byKey := map[string][]atom{}
	for _, a := range c {
		byKey[a.key] = append(byKey[a.key], a)
	}
	for key, atoms := range byKey {
		var input *models.InputSpec
		if node, ok := s.ix.InputBySelectionKey(key); ok {
			input = node.Input
		}
		if !keySatisfiable(input, atoms) {
			return false
		}
	}
	return true
}

func keySatisfiable(input *models.InputSpec, atoms []atom) bool {
	var eq *expression.Value
	neq := []expression.Value{}
	b := numericBound{}
	numeric := false

	if input != nil && input.ValueType == models.ValueTypeNumber {
		if input.Constraints.Min != nil {
			b.raise(*input.Constraints.Min, false)
		}
		if input.Constraints.Max != nil {
			b.lower(*input.Constraints.Max, false)
		}
	}

	for _, a := range atoms {
		switch a.op {
		case atomEq:
			if eq != nil && !eq.Equal(a.value) {
				return false
			}
			v := a.value
			eq = &v
		case atomNeq:
			neq = append(neq, a.value)
		default:
			numeric = true
			n, _ := a.value.AsNumber()
			switch a.op {
			case atomGt:
				b.raise(n, true)
			case atomGte:
				b.raise(n, false)
			case atomLt:
				b.lower(n, true)
			case atomLte:
				b.lower(n, false)
			}
		}
	}

	integer := input != nil && input.Constraints.Integer
	if numeric && b.empty(integer) {
		return false
	}

	if eq != nil {
		for _, v := range neq {
			if eq.Equal(v) {
				return false
			}
		}
		if eq.IsNull() {
			return !numeric
		}
		if input != nil && !admits(input, *eq) {
			return false
		}
		if n, ok := eq.AsNumber(); ok {
			return b.contains(n)
		}
		return !numeric
	}

	// with no equality the key can still be unselected, which satisfies every neq
	return true
}

// admits reports whether the input could ever hold v.
func admits(input *models.InputSpec, v expression.Value) bool {
	want, ok := input.ValueType.Kind()
	if !ok {
		return true
	}
	if v.Kind() != want {
		return false
	}
	if input.ValueType == models.ValueTypeEnum && len(input.Constraints.Options) > 0 {
		s, _ := v.AsText()
		return input.Constraints.HasOption(s)
	}
	if input.ValueType == models.ValueTypeNumber && input.Constraints.Integer {
		n, _ := v.AsNumber()
		return n.IsInteger()
	}
	return true
}

// numericBound is an interval with open or closed ends. A nil end is unbounded.
type numericBound struct {
	lo, hi         *decimal.Decimal
	loOpen, hiOpen bool
}

func (b *numericBound) raise(v decimal.Decimal, open bool) {
	if b.lo == nil || v.GreaterThan(*b.lo) || (v.Equal(*b.lo) && open) {
		b.lo, b.loOpen = &v, open
	}
}

func (b *numericBound) lower(v decimal.Decimal, open bool) {
	if b.hi == nil || v.LessThan(*b.hi) || (v.Equal(*b.hi) && open) {
		b.hi, b.hiOpen = &v, open
	}
}

func (b numericBound) empty(integer bool) bool {
	if integer {
		return b.integerEmpty()
	}
	if b.lo == nil || b.hi == nil {
		return false
	}
	if b.lo.GreaterThan(*b.hi) {
		return true
	}
	return b.lo.Equal(*b.hi) && (b.loOpen || b.hiOpen)
}

func (b numericBound) integerEmpty() bool {
	if b.lo == nil || b.hi == nil {
		return false
	}
	lo := b.lo.Ceil()
	if b.loOpen && lo.Equal(*b.lo) {
		lo = lo.Add(decimal.NewFromInt(1))
	}
	hi := b.hi.Floor()
	if b.hiOpen && hi.Equal(*b.hi) {
		hi = hi.Sub(decimal.NewFromInt(1))
	}
	return lo.GreaterThan(hi)
}

func (b numericBound) contains(v decimal.Decimal) bool {
	if b.lo != nil && (v.LessThan(*b.lo) || (b.loOpen && v.Equal(*b.lo))) {
		return false
	}
	if b.hi != nil && (v.GreaterThan(*b.hi) || (b.hiOpen && v.Equal(*b.hi))) {
		return false
	}
	return true
}
