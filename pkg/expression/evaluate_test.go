package expression

import (
	"encoding/json"
	"testing"

	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testScope() MapScope {
	return MapScope{
		Selections: map[string]Value{
			"size":     Text("large"),
			"copies":   Int(3),
			"laminate": Bool(true),
			"notes":    Null(),
		},
		Outputs: map[string]map[string]Value{
			"area": {"value": Number(decimal.RequireFromString("2.5"))},
		},
		Line: map[string]Value{
			LineQuantity: Int(10),
			LineSqft:     Number(decimal.RequireFromString("12.5")),
		},
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		expr     *Expr
		expected Value
	}{
		{"literal number", NewLiteral(4.25), Number(decimal.RequireFromString("4.25"))},
		{"literal text", NewLiteral("x"), Text("x")},
		{"selection ref", NewSelectionRef("size"), Text("large")},
		{"output ref", NewOutputRef("area", "value"), Number(decimal.RequireFromString("2.5"))},
		{"line ref", NewLineRef(LineQuantity), Int(10)},
		{"eq true", NewOp(OpEq, NewSelectionRef("size"), NewLiteral("large")), Bool(true)},
		{"eq numbers across scale", NewOp(OpEq, NewLiteral(3.0), NewSelectionRef("copies")), Bool(true)},
		{"neq", NewOp(OpNeq, NewSelectionRef("size"), NewLiteral("small")), Bool(true)},
		{"eq null", NewOp(OpEq, NewSelectionRef("notes"), NewLiteral(nil)), Bool(true)},
		{"and", NewOp(OpAnd, NewSelectionRef("laminate"), NewOp(OpGt, NewSelectionRef("copies"), NewLiteral(2))), Bool(true)},
		{"or short circuits", NewOp(OpOr, NewLiteral(true), NewSelectionRef("missing")), Bool(true)},
		{"and short circuits", NewOp(OpAnd, NewLiteral(false), NewSelectionRef("missing")), Bool(false)},
		{"not null is true", NewOp(OpNot, NewSelectionRef("notes")), Bool(true)},
		{"compare with null is false", NewOp(OpGt, NewSelectionRef("notes"), NewLiteral(1)), Bool(false)},
		{"text compare", NewOp(OpLt, NewLiteral("a"), NewLiteral("b")), Bool(true)},
		{"add", NewOp(OpAdd, NewLiteral(1), NewLiteral(2), NewSelectionRef("copies")), Int(6)},
		{"sub", NewOp(OpSub, NewLineRef(LineQuantity), NewLiteral(4)), Int(6)},
		{"mul", NewOp(OpMul, NewLineRef(LineSqft), NewLiteral(2)), Int(25)},
		{"div", NewOp(OpDiv, NewLiteral(7), NewLiteral(2)), Number(decimal.RequireFromString("3.5"))},
		{"neg", NewOp(OpNeg, NewLiteral(2)), Int(-2)},
		{"min", NewOp(OpMin, NewLiteral(5), NewLiteral(2), NewLiteral(9)), Int(2)},
		{"max", NewOp(OpMax, NewLiteral(5), NewLiteral(2), NewLiteral(9)), Int(9)},
		{"ceil", NewOp(OpCeil, NewLiteral(2.1)), Int(3)},
		{"floor", NewOp(OpFloor, NewLiteral(2.9)), Int(2)},
		{"round half away from zero", NewOp(OpRound, NewLiteral(2.5)), Int(3)},
		{"if", NewOp(OpIf, NewSelectionRef("laminate"), NewLiteral("yes"), NewSelectionRef("missing")), Text("yes")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := NewEvaluator(Options{DivByZeroStrict: true})
			got, err := ev.Evaluate(tt.expr, testScope())
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(got), "expected %s, got %s", tt.expected, got)
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	tests := []struct {
		name string
		expr *Expr
		code errors.Code
		path string
	}{
		{"unresolved selection", NewSelectionRef("missing"), errors.CodeExprRefUnresolved, ""},
		{"unresolved output", NewOp(OpAdd, NewLiteral(1), NewOutputRef("area", "other")), errors.CodeExprRefUnresolved, "args.1"},
		{"null arithmetic", NewOp(OpAdd, NewLiteral(1), NewSelectionRef("notes")), errors.CodeExprTypeMismatch, "args.1"},
		{"text arithmetic", NewOp(OpMul, NewSelectionRef("size"), NewLiteral(2)), errors.CodeExprTypeMismatch, "args.0"},
		{"non boolean condition", NewOp(OpAnd, NewLiteral(1)), errors.CodeExprTypeMismatch, "args.0"},
		{"mixed compare", NewOp(OpGt, NewLiteral("a"), NewLiteral(1)), errors.CodeExprTypeMismatch, ""},
		{"unknown operator", NewOp("pow", NewLiteral(1), NewLiteral(2)), errors.CodeExprInvalid, ""},
		{"bad arity", NewOp(OpSub, NewLiteral(1)), errors.CodeExprInvalid, ""},
		{"nil ref", &Expr{Op: OpRef}, errors.CodeExprInvalid, ""},
		{"division by zero strict", NewOp(OpDiv, NewLiteral(1), NewLiteral(0)), errors.CodeExprDivByZero, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := NewEvaluator(Options{DivByZeroStrict: true})
			_, err := ev.Evaluate(tt.expr, testScope())
			require.Error(t, err)
			pbErr, ok := errors.AsPBV2Error(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, pbErr.Code)
			assert.Equal(t, tt.path, pbErr.Path)
		})
	}
}

func TestEvaluateDivisionByZeroLenient(t *testing.T) {
	ev := NewEvaluator(Options{DivByZeroStrict: false})

	got, err := ev.Evaluate(NewOp(OpAdd, NewLiteral(5), NewOp(OpDiv, NewLiteral(1), NewLiteral(0))), testScope())
	require.NoError(t, err)
	assert.True(t, Int(5).Equal(got))

	notices := ev.Notices()
	require.Len(t, notices, 1)
	assert.Equal(t, errors.CodeExprDivByZero, notices[0].Code)
	assert.Equal(t, "args.1", notices[0].Path)
}

func TestEvaluateBool(t *testing.T) {
	ev := NewEvaluator(Options{})

	ok, err := ev.EvaluateBool(nil, testScope())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ev.EvaluateBool(NewSelectionRef("notes"), testScope())
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = ev.EvaluateBool(NewSelectionRef("size"), testScope())
	assert.True(t, errors.HasCode(err, errors.CodeExprTypeMismatch))
}

func TestExprJSON(t *testing.T) {
	raw := `{"op":"and","args":[
		{"op":"eq","args":[{"op":"ref","ref":{"kind":"selectionRef","selectionKey":"x"}},{"op":"literal","value":"A"}]},
		{"op":"gte","args":[{"op":"ref","ref":{"kind":"nodeOutputRef","nodeId":"n1","outputKey":"value"}},{"op":"literal","value":0}]}
	]}`

	var expr Expr
	require.NoError(t, json.Unmarshal([]byte(raw), &expr))
	require.NoError(t, expr.Validate())

	refs := Refs(&expr)
	require.Len(t, refs, 2)
	assert.Equal(t, SelectionRef, refs[0].Ref.Kind)
	assert.Equal(t, "args.0.args.0", refs[0].Path)
	assert.Equal(t, "n1", refs[1].Ref.NodeID)

	built := NewOp(OpAnd,
		NewOp(OpEq, NewSelectionRef("x"), NewLiteral("A")),
		NewOp(OpGte, NewOutputRef("n1", "value"), NewLiteral(0)),
	)
	assert.True(t, Equal(&expr, built))
	assert.False(t, Equal(&expr, NewOp(OpEq, NewSelectionRef("x"), NewLiteral("A"))))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, NewOp(OpIf, NewLiteral(true), NewLiteral(1), NewLineRef(LineSqft)).Validate())

	err := NewOp(OpAdd, NewLiteral(1), NewLineRef("depth")).Validate()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeExprInvalid))

	err = NewLiteral([]any{1, 2}).Validate()
	assert.True(t, errors.HasCode(err, errors.CodeExprInvalid))
}
