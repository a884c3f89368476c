package expression

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/errors"
)

type Op string

const (
	OpLiteral Op = "literal"
	OpRef     Op = "ref"

	OpAnd Op = "and"
	OpOr  Op = "or"
	OpNot Op = "not"

	OpEq  Op = "eq"
	OpNeq Op = "neq"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"

	OpAdd   Op = "add"
	OpSub   Op = "sub"
	OpMul   Op = "mul"
	OpDiv   Op = "div"
	OpNeg   Op = "neg"
	OpMin   Op = "min"
	OpMax   Op = "max"
	OpCeil  Op = "ceil"
	OpFloor Op = "floor"
	OpRound Op = "round"

	OpIf Op = "if"
)

type arity struct {
	min int
	max int // -1 is unbounded
}

var operatorArity = map[Op]arity{
	OpAnd:   {1, -1},
	OpOr:    {1, -1},
	OpNot:   {1, 1},
	OpEq:    {2, 2},
	OpNeq:   {2, 2},
	OpGt:    {2, 2},
	OpGte:   {2, 2},
	OpLt:    {2, 2},
	OpLte:   {2, 2},
	OpAdd:   {1, -1},
	OpSub:   {2, 2},
	OpMul:   {1, -1},
	OpDiv:   {2, 2},
	OpNeg:   {1, 1},
	OpMin:   {1, -1},
	OpMax:   {1, -1},
	OpCeil:  {1, 1},
	OpFloor: {1, 1},
	OpRound: {1, 1},
	OpIf:    {3, 3},
}

// IsOperator reports whether op is a known n-ary operator.
func IsOperator(op Op) bool {
	_, ok := operatorArity[op]
	return ok
}

type RefKind string

const (
	SelectionRef  RefKind = "selectionRef"
	NodeOutputRef RefKind = "nodeOutputRef"
	LineRef       RefKind = "lineRef"
)

// Line item keys readable through a lineRef.
const (
	LineWidthIn  = "widthIn"
	LineHeightIn = "heightIn"
	LineQuantity = "quantity"
	LineSqft     = "sqft"
)

var lineKeys = map[string]bool{
	LineWidthIn:  true,
	LineHeightIn: true,
	LineQuantity: true,
	LineSqft:     true,
}

func IsLineKey(key string) bool {
	return lineKeys[key]
}

type Ref struct {
	Kind         RefKind `json:"kind"`
	SelectionKey string  `json:"selectionKey,omitempty"`
	NodeID       string  `json:"nodeId,omitempty"`
	OutputKey    string  `json:"outputKey,omitempty"`
	Key          string  `json:"key,omitempty"`
}

func (r Ref) String() string {
	switch r.Kind {
	case SelectionRef:
		return "selection:" + r.SelectionKey
	case NodeOutputRef:
		return "output:" + r.NodeID + "." + r.OutputKey
	case LineRef:
		return "line:" + r.Key
	default:
		return string(r.Kind)
	}
}

// Expr is one node of the expression AST. Op selects the variant: literal uses Value, ref uses Ref
// and every operator uses Args.
type Expr struct {
	Op    Op      `json:"op"`
	Value any     `json:"value,omitempty"`
	Ref   *Ref    `json:"ref,omitempty"`
	Args  []*Expr `json:"args,omitempty"`
}

func NewLiteral(v any) *Expr {
	return &Expr{Op: OpLiteral, Value: v}
}

func NewSelectionRef(selectionKey string) *Expr {
	return &Expr{Op: OpRef, Ref: &Ref{Kind: SelectionRef, SelectionKey: selectionKey}}
}

func NewOutputRef(nodeID, outputKey string) *Expr {
	return &Expr{Op: OpRef, Ref: &Ref{Kind: NodeOutputRef, NodeID: nodeID, OutputKey: outputKey}}
}

func NewLineRef(key string) *Expr {
	return &Expr{Op: OpRef, Ref: &Ref{Kind: LineRef, Key: key}}
}

func NewOp(op Op, args ...*Expr) *Expr {
	return &Expr{Op: op, Args: args}
}

// Validate checks the AST shape: known operators, arity, scalar literals and well formed refs.
func (e *Expr) Validate() error {
	return e.validate("")
}

func (e *Expr) validate(path string) error {
	if e == nil {
		return errors.New(errors.CodeExprInvalid, "expression is empty").AddPath(path)
	}

	switch e.Op {
	case OpLiteral:
		if _, err := FromAny(e.Value); err != nil {
			return errors.Newf(errors.CodeExprInvalid, "literal is not a scalar: %w", err).AddPath(path)
		}
		return nil
	case OpRef:
		return validateRef(e.Ref, path)
	}

	ar, ok := operatorArity[e.Op]
	if !ok {
		return errors.Newf(errors.CodeExprInvalid, "unknown operator '%s'", e.Op).AddPath(path)
	}
	if len(e.Args) < ar.min || (ar.max >= 0 && len(e.Args) > ar.max) {
		return errors.Newf(errors.CodeExprInvalid, "operator '%s' takes %s arguments, got %d", e.Op, ar, len(e.Args)).AddPath(path)
	}
	for i, arg := range e.Args {
		if err := arg.validate(joinPath(path, "args", strconv.Itoa(i))); err != nil {
			return err
		}
	}
	return nil
}

func (a arity) String() string {
	switch {
	case a.max < 0:
		return fmt.Sprintf("at least %d", a.min)
	case a.min == a.max:
		return strconv.Itoa(a.min)
	default:
		return fmt.Sprintf("%d to %d", a.min, a.max)
	}
}

func validateRef(ref *Ref, path string) error {
	if ref == nil {
		return errors.New(errors.CodeExprInvalid, "ref expression has no ref").AddPath(path)
	}
	switch ref.Kind {
	case SelectionRef:
		if ref.SelectionKey == "" {
			return errors.New(errors.CodeExprInvalid, "selectionRef requires selectionKey").AddPath(path)
		}
	case NodeOutputRef:
		if ref.NodeID == "" || ref.OutputKey == "" {
			return errors.New(errors.CodeExprInvalid, "nodeOutputRef requires nodeId and outputKey").AddPath(path)
		}
	case LineRef:
		if !IsLineKey(ref.Key) {
			return errors.Newf(errors.CodeExprInvalid, "lineRef key '%s' is not one of widthIn, heightIn, quantity, sqft", ref.Key).AddPath(path)
		}
	default:
		return errors.Newf(errors.CodeExprInvalid, "unknown ref kind '%s'", ref.Kind).AddPath(path)
	}
	return nil
}

// Walk visits e and its arguments depth first. Returning false from fn skips the subtree.
func Walk(e *Expr, fn func(e *Expr, path string) bool) {
	walk(e, "", fn)
}

func walk(e *Expr, path string, fn func(e *Expr, path string) bool) {
	if e == nil || !fn(e, path) {
		return
	}
	for i, arg := range e.Args {
		walk(arg, joinPath(path, "args", strconv.Itoa(i)), fn)
	}
}

// RefAt is a reference together with its position inside the expression.
type RefAt struct {
	Ref  Ref
	Path string
}

// Refs lists every reference in e in depth-first order.
func Refs(e *Expr) []RefAt {
	refs := []RefAt{}
	Walk(e, func(node *Expr, path string) bool {
		if node.Op == OpRef && node.Ref != nil {
			refs = append(refs, RefAt{Ref: *node.Ref, Path: path})
		}
		return true
	})
	return refs
}

// Canonical renders e deterministically, so structurally identical expressions compare equal.
func Canonical(e *Expr) string {
	if e == nil {
		return ""
	}
	b, err := json.Marshal(canonicalForm(e))
	if err != nil {
		return fmt.Sprintf("%#v", e)
	}
	return string(b)
}

func canonicalForm(e *Expr) any {
	if e == nil {
		return nil
	}
	switch e.Op {
	case OpLiteral:
		v, err := FromAny(e.Value)
		if err != nil {
			return []any{string(e.Op), fmt.Sprintf("%v", e.Value)}
		}
		return []any{string(e.Op), v.Kind().String(), v.String()}
	case OpRef:
		if e.Ref == nil {
			return []any{string(e.Op)}
		}
		return []any{string(e.Op), e.Ref.String()}
	}
	args := make([]any, 0, len(e.Args)+1)
	args = append(args, string(e.Op))
	for _, arg := range e.Args {
		args = append(args, canonicalForm(arg))
	}
	return args
}

// Equal reports structural equality.
func Equal(a, b *Expr) bool {
	return Canonical(a) == Canonical(b)
}

func joinPath(base string, parts ...string) string {
	out := base
	for _, p := range parts {
		if out == "" {
			out = p
			continue
		}
		out += "." + p
	}
	return out
}
