package expression

import (
	"strconv"
	"strings"

	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/errors"
	"github.com/shopspring/decimal"
)

// Scope resolves references. It returns a CodeExprRefUnresolved error for keys the tree does not
// declare and Null for declared keys that carry no value.
type Scope interface {
	Lookup(ref Ref) (Value, error)
}

// MapScope is a fixed lookup table. Missing keys are unresolved.
type MapScope struct {
	Selections map[string]Value
	Outputs    map[string]map[string]Value
	Line       map[string]Value
}

func (s MapScope) Lookup(ref Ref) (Value, error) {
	switch ref.Kind {
	case SelectionRef:
		if v, ok := s.Selections[ref.SelectionKey]; ok {
			return v, nil
		}
	case NodeOutputRef:
		if v, ok := s.Outputs[ref.NodeID][ref.OutputKey]; ok {
			return v, nil
		}
	case LineRef:
		if v, ok := s.Line[ref.Key]; ok {
			return v, nil
		}
	}
	return Value{}, UnresolvedError(ref)
}

func UnresolvedError(ref Ref) *errors.PBV2Error {
	return errors.Newf(errors.CodeExprRefUnresolved, "reference '%s' does not resolve", ref.String())
}

type Options struct {
	// DivByZeroStrict fails the evaluation on a zero divisor. Otherwise the quotient is 0 and a
	// notice is recorded.
	DivByZeroStrict bool
}

// Notice is a non-fatal event raised while evaluating, surfaced by callers as a WARNING finding.
type Notice struct {
	Code     errors.Code
	Message  string
	Path     string
	EntityID string
}

// Evaluator evaluates expressions. It keeps the notices raised since it was created, so one
// instance belongs to one evaluation and must not be shared between goroutines.
type Evaluator struct {
	opts    Options
	notices []Notice
}

func NewEvaluator(opts Options) *Evaluator {
	return &Evaluator{opts: opts}
}

func (e *Evaluator) Options() Options {
	return e.opts
}

// Notices returns the notices raised so far.
func (e *Evaluator) Notices() []Notice {
	out := make([]Notice, len(e.notices))
	copy(out, e.notices)
	return out
}

// Mark returns the current position in the notice list, for Qualify.
func (e *Evaluator) Mark() int {
	return len(e.notices)
}

// Qualify attributes the notices raised since mark to the element at path. Notices already
// attributed by a nested evaluation are left alone.
func (e *Evaluator) Qualify(mark int, path, entityID string) {
	for i := mark; i < len(e.notices); i++ {
		n := &e.notices[i]
		if n.EntityID != "" {
			continue
		}
		if n.Path == "" {
			n.Path = path
		} else {
			n.Path = joinPath(path, n.Path)
		}
		n.EntityID = entityID
	}
}

func (e *Evaluator) Evaluate(expr *Expr, scope Scope) (Value, error) {
	return e.eval(expr, scope, "")
}

// EvaluateBool evaluates a condition. A nil condition is true and a Null result is false.
func (e *Evaluator) EvaluateBool(expr *Expr, scope Scope) (bool, error) {
	if expr == nil {
		return true, nil
	}
	v, err := e.eval(expr, scope, "")
	if err != nil {
		return false, err
	}
	return truthy(v, "")
}

// EvaluateNumber evaluates expr and requires a number.
func (e *Evaluator) EvaluateNumber(expr *Expr, scope Scope) (decimal.Decimal, error) {
	v, err := e.eval(expr, scope, "")
	if err != nil {
		return decimal.Zero, err
	}
	n, ok := v.AsNumber()
	if !ok {
		return decimal.Zero, errors.Newf(errors.CodeExprTypeMismatch, "expected a number, got %s", v.Kind())
	}
	return n, nil
}

func (e *Evaluator) eval(expr *Expr, scope Scope, path string) (Value, error) {
	if expr == nil {
		return Value{}, errors.New(errors.CodeExprInvalid, "expression is empty").AddPath(path)
	}

	switch expr.Op {
	case OpLiteral:
		v, err := FromAny(expr.Value)
		if err != nil {
			return Value{}, errors.Newf(errors.CodeExprInvalid, "literal is not a scalar: %w", err).AddPath(path)
		}
		return v, nil
	case OpRef:
		if err := validateRef(expr.Ref, path); err != nil {
			return Value{}, err
		}
		v, err := scope.Lookup(*expr.Ref)
		if err != nil {
			pbErr := errors.Wrap(errors.CodeExprRefUnresolved, err)
			if pbErr.Node != "" {
				// raised while evaluating another compute node
				return Value{}, pbErr
			}
			return Value{}, pbErr.AddPath(path)
		}
		return v, nil
	case OpAnd, OpOr:
		return e.evalLogical(expr, scope, path)
	case OpIf:
		if len(expr.Args) != 3 {
			return Value{}, arityError(expr, path)
		}
		cond, err := e.eval(expr.Args[0], scope, argPath(path, 0))
		if err != nil {
			return Value{}, err
		}
		ok, err := truthy(cond, argPath(path, 0))
		if err != nil {
			return Value{}, err
		}
		if ok {
			return e.eval(expr.Args[1], scope, argPath(path, 1))
		}
		return e.eval(expr.Args[2], scope, argPath(path, 2))
	}

	ar, known := operatorArity[expr.Op]
	if !known {
		return Value{}, errors.Newf(errors.CodeExprInvalid, "unknown operator '%s'", expr.Op).AddPath(path)
	}
	if len(expr.Args) < ar.min || (ar.max >= 0 && len(expr.Args) > ar.max) {
		return Value{}, arityError(expr, path)
	}

	args := make([]Value, len(expr.Args))
	for i, arg := range expr.Args {
		v, err := e.eval(arg, scope, argPath(path, i))
		if err != nil {
			return Value{}, err
		}
		args[i] = v
	}

	switch expr.Op {
	case OpNot:
		b, err := truthy(args[0], argPath(path, 0))
		if err != nil {
			return Value{}, err
		}
		return Bool(!b), nil
	case OpEq:
		return Bool(args[0].Equal(args[1])), nil
	case OpNeq:
		return Bool(!args[0].Equal(args[1])), nil
	case OpGt, OpGte, OpLt, OpLte:
		return compare(expr.Op, args[0], args[1], path)
	}

	nums, err := numbers(args, path)
	if err != nil {
		return Value{}, err
	}

	switch expr.Op {
	case OpAdd:
		return Number(decimal.Sum(nums[0], nums[1:]...)), nil
	case OpSub:
		return Number(nums[0].Sub(nums[1])), nil
	case OpMul:
		out := nums[0]
		for _, n := range nums[1:] {
			out = out.Mul(n)
		}
		return Number(out), nil
	case OpDiv:
		if nums[1].IsZero() {
			if e.opts.DivByZeroStrict {
				return Value{}, errors.New(errors.CodeExprDivByZero, "division by zero").AddPath(path)
			}
			e.notices = append(e.notices, Notice{
				Code:    errors.CodeExprDivByZero,
				Message: "division by zero evaluated as 0",
				Path:    path,
			})
			return Int(0), nil
		}
		return Number(nums[0].Div(nums[1])), nil
	case OpNeg:
		return Number(nums[0].Neg()), nil
	case OpMin:
		return Number(decimal.Min(nums[0], nums[1:]...)), nil
	case OpMax:
		return Number(decimal.Max(nums[0], nums[1:]...)), nil
	case OpCeil:
		return Number(nums[0].Ceil()), nil
	case OpFloor:
		return Number(nums[0].Floor()), nil
	case OpRound:
		return Number(nums[0].Round(0)), nil
	default:
		return Value{}, errors.Newf(errors.CodeExprInvalid, "unknown operator '%s'", expr.Op).AddPath(path)
	}
}

func (e *Evaluator) evalLogical(expr *Expr, scope Scope, path string) (Value, error) {
	if len(expr.Args) == 0 {
		return Value{}, arityError(expr, path)
	}
	short := expr.Op == OpOr
	for i, arg := range expr.Args {
		v, err := e.eval(arg, scope, argPath(path, i))
		if err != nil {
			return Value{}, err
		}
		b, err := truthy(v, argPath(path, i))
		if err != nil {
			return Value{}, err
		}
		if b == short {
			return Bool(short), nil
		}
	}
	return Bool(!short), nil
}

func truthy(v Value, path string) (bool, error) {
	switch v.Kind() {
	case KindBool:
		b, _ := v.AsBool()
		return b, nil
	case KindNull:
		return false, nil
	default:
		return false, errors.Newf(errors.CodeExprTypeMismatch, "expected a boolean, got %s", v.Kind()).AddPath(path)
	}
}

// compare orders numbers or texts. Comparing against Null is false.
func compare(op Op, a, b Value, path string) (Value, error) {
	if a.IsNull() || b.IsNull() {
		return Bool(false), nil
	}

	var c int
	switch {
	case a.Kind() == KindNumber && b.Kind() == KindNumber:
		an, _ := a.AsNumber()
		bn, _ := b.AsNumber()
		c = an.Cmp(bn)
	case a.Kind() == KindText && b.Kind() == KindText:
		as, _ := a.AsText()
		bs, _ := b.AsText()
		c = strings.Compare(as, bs)
	default:
		return Value{}, errors.Newf(errors.CodeExprTypeMismatch, "cannot compare %s with %s", a.Kind(), b.Kind()).AddPath(path)
	}

	switch op {
	case OpGt:
		return Bool(c > 0), nil
	case OpGte:
		return Bool(c >= 0), nil
	case OpLt:
		return Bool(c < 0), nil
	default:
		return Bool(c <= 0), nil
	}
}

func numbers(args []Value, path string) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(args))
	for i, v := range args {
		n, ok := v.AsNumber()
		if !ok {
			return nil, errors.Newf(errors.CodeExprTypeMismatch, "argument %d must be a number, got %s", i, v.Kind()).AddPath(argPath(path, i))
		}
		out[i] = n
	}
	return out, nil
}

func arityError(expr *Expr, path string) error {
	return errors.Newf(errors.CodeExprInvalid, "operator '%s' has %d arguments", expr.Op, len(expr.Args)).AddPath(path)
}

func argPath(path string, i int) string {
	return joinPath(path, "args", strconv.Itoa(i))
}
