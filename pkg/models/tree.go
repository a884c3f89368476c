package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/errors"
)

type TreeStatus string

const (
	TreeStatusDraft      TreeStatus = "DRAFT"
	TreeStatusActive     TreeStatus = "ACTIVE"
	TreeStatusDeprecated TreeStatus = "DEPRECATED"
	TreeStatusArchived   TreeStatus = "ARCHIVED"
)

var treeStatuses = []TreeStatus{TreeStatusDraft, TreeStatusActive, TreeStatusDeprecated, TreeStatusArchived}

func IsTreeStatus(s TreeStatus) bool {
	return slices.Contains(treeStatuses, s)
}

// IsPublished reports whether a persisted evaluation may be derived from a tree in this status.
func (s TreeStatus) IsPublished() bool {
	return s == TreeStatusActive || s == TreeStatusDeprecated || s == TreeStatusArchived
}

type Tree struct {
	ID          string     `json:"id,omitempty"`
	ProductID   string     `json:"productId,omitempty"`
	Status      TreeStatus `json:"status"`
	RootNodeIDs []string   `json:"rootNodeIds"`
	Nodes       []Node     `json:"nodes"`
	Edges       []Edge     `json:"edges"`
	Meta        TreeMeta   `json:"meta"`
}

type TreeMeta struct {
	PricingV2 *PricingV2Meta `json:"pricingV2,omitempty"`
}

type PricingV2Meta struct {
	Base *BasePricing `json:"base,omitempty"`
}

// BasePricing is the per-line base price. All amounts are integer cents.
type BasePricing struct {
	PerSqftCents       *int64 `json:"perSqftCents,omitempty"`
	PerPieceCents      *int64 `json:"perPieceCents,omitempty"`
	MinimumChargeCents *int64 `json:"minimumChargeCents,omitempty"`
}

// Base returns meta.pricingV2.base or nil.
func (t *Tree) Base() *BasePricing {
	if t == nil || t.Meta.PricingV2 == nil {
		return nil
	}
	return t.Meta.PricingV2.Base
}

// TreeVersionMeta is what the evaluation gate needs to know about a stored tree version.
type TreeVersionMeta struct {
	ID     string     `json:"id"`
	Status TreeStatus `json:"status"`
}

// ParseTree decodes a JSON tree. Anything other than a JSON object is an invalid-input fault.
func ParseTree(data []byte) (*Tree, error) {
	var shape any
	if err := json.Unmarshal(data, &shape); err != nil {
		return nil, errors.Newf(errors.CodeInvalidTree, "tree is not valid JSON: %w", err)
	}
	if _, ok := shape.(map[string]any); !ok {
		return nil, errors.Newf(errors.CodeInvalidTree, "tree must be a JSON object, got %s", JSONKind(shape))
	}

	var tree Tree
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, errors.Newf(errors.CodeInvalidTree, "tree does not match the PBV2 shape: %w", err)
	}
	return &tree, nil
}

// DecodeTree converts an already decoded JSON value (for example a request body field) to a Tree.
func DecodeTree(v any) (*Tree, error) {
	if _, ok := v.(map[string]any); !ok {
		return nil, errors.Newf(errors.CodeInvalidTree, "tree must be a JSON object, got %s", JSONKind(v))
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Newf(errors.CodeInvalidTree, "tree cannot be encoded: %w", err)
	}
	return ParseTree(data)
}

// TreeHash is the SHA-256 of the tree's JSON encoding. Struct field order is fixed, so equal trees
// hash equally.
func TreeHash(t *Tree) (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("error hashing tree: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// JSONKind names the JSON type of a decoded value for error messages.
func JSONKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, json.Number:
		return "number"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
