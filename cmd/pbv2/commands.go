package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/evaluator"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/models"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/pricing"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/selections"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/validation"
)

func newValidateCmd(policy *models.Policy) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <tree.json|tree.yaml>",
		Short: "Run the publish checks on a tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := readTree(cmd, args[0])
			if err != nil {
				return err
			}
			result := validation.ValidateTreeForPublish(tree, validation.Opts{Policy: *policy})
			return printResult(cmd, result, result.OK)
		},
	}
}

func newBasePriceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "base-price <tree.json|tree.yaml>",
		Short: "Check that a tree carries a usable base price",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := readTree(cmd, args[0])
			if err != nil {
				return err
			}
			result := validation.ValidateTreeHasBasePrice(tree)
			return printResult(cmd, result, result.OK)
		},
	}
}

type evaluateFlags struct {
	selectionsFile string
	payloadFile    string
	set            []string
	width          string
	height         string
	quantity       int64
}

func newEvaluateCmd(policy *models.Policy) *cobra.Command {
	var f evaluateFlags

	cmd := &cobra.Command{
		Use:   "evaluate <tree.json|tree.yaml>",
		Short: "Evaluate a tree for one selection set and line item",
		Example: `  pbv2 evaluate banner.yaml --set material=vinyl --width 24 --height 48 --quantity 2
  pbv2 evaluate banner.json --selections selections.json --payload line.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := readTree(cmd, args[0])
			if err != nil {
				return err
			}
			line, err := f.lineItem()
			if err != nil {
				return err
			}
			raw, err := f.selections(cmd, tree)
			if err != nil {
				return err
			}

			result, err := evaluator.Evaluate(tree, raw, line, evaluator.Options{Policy: *policy})
			if err != nil {
				return err
			}
			return printResult(cmd, result, result.OK)
		},
	}

	cmd.Flags().StringVar(&f.selectionsFile, "selections", "", "JSON or YAML file holding the selection object")
	cmd.Flags().StringVar(&f.payloadFile, "payload", "", "line-item payload that inputs with a sourcePath read from")
	cmd.Flags().StringArrayVar(&f.set, "set", nil, "selection as key=value (repeatable; value parsed as JSON when possible)")
	cmd.Flags().StringVar(&f.width, "width", "0", "finished width in inches")
	cmd.Flags().StringVar(&f.height, "height", "0", "finished height in inches")
	cmd.Flags().Int64Var(&f.quantity, "quantity", 1, "number of pieces")
	return cmd
}

func (f evaluateFlags) lineItem() (pricing.LineItem, error) {
	width, err := decimal.NewFromString(f.width)
	if err != nil {
		return pricing.LineItem{}, fmt.Errorf("invalid --width '%s'", f.width)
	}
	height, err := decimal.NewFromString(f.height)
	if err != nil {
		return pricing.LineItem{}, fmt.Errorf("invalid --height '%s'", f.height)
	}
	return pricing.LineItem{WidthIn: width, HeightIn: height, Quantity: f.quantity}, nil
}

// selections merges, in increasing precedence, payload extraction, the selections file and --set.
func (f evaluateFlags) selections(cmd *cobra.Command, tree *models.Tree) (any, error) {
	var raw any = map[string]any{}
	if f.selectionsFile != "" {
		doc, err := readDocument(cmd, f.selectionsFile)
		if err != nil {
			return nil, err
		}
		raw = doc
	}

	explicit, isObject := raw.(map[string]any)
	if !isObject {
		// the evaluator reports non-object selections with the right code
		return raw, nil
	}
	for _, kv := range f.set {
		key, value, found := strings.Cut(kv, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid --set '%s', expected key=value", kv)
		}
		explicit[key] = parseValue(value)
	}

	if f.payloadFile == "" {
		return explicit, nil
	}
	payload, err := readDocument(cmd, f.payloadFile)
	if err != nil {
		return nil, err
	}
	return selections.NewExtractor().Extract(models.NewTreeIndex(tree), payload, explicit)
}

func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}

func newGateCmd() *cobra.Command {
	var (
		id     string
		status string
		mode   string
	)

	cmd := &cobra.Command{
		Use:   "gate",
		Short: "Check whether a tree version may be evaluated in a mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			meta := models.TreeVersionMeta{ID: id, Status: models.TreeStatus(strings.ToUpper(status))}
			result := validation.ValidateEvaluationGate(meta, validation.Mode(strings.ToLower(mode)))
			return printResult(cmd, result, result.OK)
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "tree version id")
	cmd.Flags().StringVar(&status, "status", "", "tree version status (DRAFT, ACTIVE, DEPRECATED, ARCHIVED)")
	cmd.Flags().StringVar(&mode, "mode", string(validation.ModePreview), "preview or persist")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}
