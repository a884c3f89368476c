package models

import (
	"sort"

	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/expression"
	"github.com/shopspring/decimal"
)

type NodeType string

const (
	NodeTypeInput   NodeType = "INPUT"
	NodeTypeCompute NodeType = "COMPUTE"
	NodeTypePrice   NodeType = "PRICE"
	NodeTypeGroup   NodeType = "GROUP"
)

type EntityStatus string

const (
	StatusEnabled EntityStatus = "ENABLED"
	StatusDeleted EntityStatus = "DELETED"
)

type ValueType string

const (
	ValueTypeBoolean ValueType = "BOOLEAN"
	ValueTypeText    ValueType = "TEXT"
	ValueTypeNumber  ValueType = "NUMBER"
	ValueTypeEnum    ValueType = "ENUM"
)

var valueTypeKinds = map[ValueType]expression.Kind{
	ValueTypeBoolean: expression.KindBool,
	ValueTypeText:    expression.KindText,
	ValueTypeNumber:  expression.KindNumber,
	ValueTypeEnum:    expression.KindText,
}

// Kind returns the expression kind a value of this type carries.
func (v ValueType) Kind() (expression.Kind, bool) {
	k, ok := valueTypeKinds[v]
	return k, ok
}

// Node is one vertex of the option tree. Type selects which payload is populated: Input for INPUT,
// Compute for COMPUTE, Price for PRICE and none for GROUP.
type Node struct {
	ID      string       `json:"id"`
	Key     string       `json:"key"`
	Type    NodeType     `json:"type"`
	Status  EntityStatus `json:"status"`
	Label   string       `json:"label,omitempty"`
	Input   *InputSpec   `json:"input,omitempty"`
	Compute *ComputeSpec `json:"compute,omitempty"`
	Price   *PriceSpec   `json:"price,omitempty"`
}

func (n *Node) IsEnabled() bool {
	return n.Status == StatusEnabled
}

func (n *Node) IsDeleted() bool {
	return n.Status == StatusDeleted
}

type InputSpec struct {
	SelectionKey string      `json:"selectionKey"`
	ValueType    ValueType   `json:"valueType"`
	Constraints  Constraints `json:"constraints"`
	DefaultValue any         `json:"defaultValue,omitempty"`
	// SourcePath is a JMESPath expression locating the value inside a line-item payload.
	SourcePath string `json:"sourcePath,omitempty"`
}

type Constraints struct {
	Required  bool             `json:"required"`
	Min       *decimal.Decimal `json:"min,omitempty"`
	Max       *decimal.Decimal `json:"max,omitempty"`
	Integer   bool             `json:"integer,omitempty"`
	MinLength *int             `json:"minLength,omitempty"`
	MaxLength *int             `json:"maxLength,omitempty"`
	Pattern   string           `json:"pattern,omitempty"`
	Options   []EnumOption     `json:"options,omitempty"`
}

type EnumOption struct {
	Value string `json:"value"`
	Label string `json:"label,omitempty"`
}

// HasOption reports whether value is one of the declared ENUM options.
func (c Constraints) HasOption(value string) bool {
	for _, o := range c.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}

// DefaultOutputKey names the output of a COMPUTE node that declares no outputs.
const DefaultOutputKey = "value"

type ComputeSpec struct {
	Expression *expression.Expr      `json:"expression,omitempty"`
	Outputs    map[string]OutputDecl `json:"outputs,omitempty"`
}

type OutputDecl struct {
	Type       ValueType        `json:"type"`
	Expression *expression.Expr `json:"expression,omitempty"`
}

// ComputeOutput is one resolved output slot of a COMPUTE node.
type ComputeOutput struct {
	Key        string
	Type       ValueType
	Expression *expression.Expr
}

// OutputList returns the node's outputs sorted by key. An output without its own expression uses
// the node expression; a node without declared outputs exposes its expression as "value".
func (c *ComputeSpec) OutputList() []ComputeOutput {
	if c == nil {
		return nil
	}
	if len(c.Outputs) == 0 {
		return []ComputeOutput{{Key: DefaultOutputKey, Expression: c.Expression}}
	}

	keys := make([]string, 0, len(c.Outputs))
	for k := range c.Outputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]ComputeOutput, 0, len(keys))
	for _, k := range keys {
		decl := c.Outputs[k]
		expr := decl.Expression
		if expr == nil {
			expr = c.Expression
		}
		out = append(out, ComputeOutput{Key: k, Type: decl.Type, Expression: expr})
	}
	return out
}

// HasOutput reports whether key is an output this node produces.
func (c *ComputeSpec) HasOutput(key string) bool {
	if c == nil {
		return false
	}
	if len(c.Outputs) == 0 {
		return key == DefaultOutputKey
	}
	_, ok := c.Outputs[key]
	return ok
}

type ComponentKind string

const (
	// ComponentFlat charges unitCents once per line.
	ComponentFlat ComponentKind = "FLAT"
	// ComponentPerQty charges unitCents per piece, or per quantityRef when set.
	ComponentPerQty ComponentKind = "PER_QTY"
	// ComponentPerSqft charges unitCents per total square foot of the line.
	ComponentPerSqft ComponentKind = "PER_SQFT"
)

type PriceSpec struct {
	Components      []PriceComponent `json:"components"`
	MaterialEffects []MaterialEffect `json:"materialEffects"`
}

type PriceComponent struct {
	ID          string           `json:"id"`
	Label       string           `json:"label,omitempty"`
	Kind        ComponentKind    `json:"kind"`
	UnitCents   *expression.Expr `json:"unitCents"`
	QuantityRef *expression.Expr `json:"quantityRef,omitempty"`
	AppliesWhen *expression.Expr `json:"appliesWhen,omitempty"`
}

type MaterialEffect struct {
	SkuRef string           `json:"skuRef"`
	UOM    string           `json:"uom"`
	QtyRef *expression.Expr `json:"qtyRef"`
	Label  string           `json:"label,omitempty"`
}
