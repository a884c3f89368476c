package errors

// Code is a stable finding/error identifier. Codes are part of the wire contract with callers and
// audit records: never rename one, only add new ones.
type Code string

const (
	// Invalid-input faults.
	CodeInvalidSelections Code = "PBV2_E_INVALID_SELECTIONS"
	CodeInvalidTree       Code = "PBV2_E_INVALID_TREE"
	CodeInvalidLineItem   Code = "PBV2_E_INVALID_LINE_ITEM"

	// Tree structure.
	CodeTreeNoRoots               Code = "PBV2_E_TREE_NO_ROOTS"
	CodeTreeRootInvalid           Code = "PBV2_E_TREE_ROOT_INVALID"
	CodeTreeEdgeCycle             Code = "PBV2_E_TREE_EDGE_CYCLE"
	CodeEdgeStatusInvalid         Code = "PBV2_E_EDGE_STATUS_INVALID"
	CodeEdgeEndpointMissing       Code = "PBV2_E_EDGE_ENDPOINT_MISSING"
	CodeEdgeDuplicateID           Code = "PBV2_E_EDGE_DUPLICATE_ID"
	CodeNodeDuplicateID           Code = "PBV2_E_NODE_DUPLICATE_ID"
	CodeNodeInvalid               Code = "PBV2_E_NODE_INVALID"
	CodeNodeUnreachable           Code = "PBV2_I_NODE_UNREACHABLE"
	CodeEdgeAmbiguousMatch        Code = "PBV2_W_EDGE_AMBIGUOUS_MATCH"
	CodeInputSelectionKeyConflict Code = "PBV2_E_INPUT_SELECTION_KEY_DUPLICATE"
	CodeInputConstraintsInvalid   Code = "PBV2_E_INPUT_CONSTRAINTS_INVALID"
	CodeRequiredInputUnreachable  Code = "PBV2_E_REQUIRED_INPUT_UNREACHABLE"

	// Expressions.
	CodeExprInvalid         Code = "PBV2_E_EXPR_INVALID"
	CodeExprRefUnresolved   Code = "PBV2_E_EXPR_REF_UNRESOLVED"
	CodeExprTypeMismatch    Code = "PBV2_E_EXPR_TYPE_MISMATCH"
	CodeExprDivByZero       Code = "PBV2_E_EXPR_DIV_BY_ZERO"
	CodeExprComputeDepCycle Code = "PBV2_E_EXPR_COMPUTE_DEP_CYCLE"

	// Selections.
	CodeSelectionOutOfRange  Code = "PBV2_E_SELECTION_OUT_OF_RANGE"
	CodeSelectionUnknownKey  Code = "PBV2_W_SELECTION_UNKNOWN_KEY"
	CodeRequiredInputMissing Code = "PBV2_E_REQUIRED_INPUT_MISSING"

	// Pricing and materials.
	CodeBasePriceMissing         Code = "PBV2_E_BASE_PRICE_MISSING"
	CodeMaterialNegativeQuantity Code = "PBV2_E_MATERIAL_NEGATIVE_QUANTITY"
	CodeMaterialSKUUnresolved    Code = "PBV2_E_MATERIAL_SKU_UNRESOLVED"
	CodeQuantityNegative         Code = "PBV2_E_QUANTITY_NEGATIVE"

	// Evaluation gate.
	CodeEvalTreeVersionStatusInvalid Code = "PBV2_E_EVAL_TREE_VERSION_STATUS_INVALID"
	CodeEvalModeInvalid              Code = "PBV2_E_EVAL_MODE_INVALID"
)
