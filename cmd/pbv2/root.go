package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/models"
)

const appName = "pbv2"

// errNotOK makes the process exit non-zero once a result with ERROR findings has been printed.
var errNotOK = errors.New("result has errors")

func newRootCmd() *cobra.Command {
	policy := models.DefaultPolicy()

	root := &cobra.Command{
		Use:           appName,
		Short:         "Validate and evaluate PBV2 product option trees",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	flags := root.PersistentFlags()
	flags.BoolVar(&policy.StrictPricebookRefsAtPublish, "strict-pricebook-refs", policy.StrictPricebookRefsAtPublish, "report unresolved skuRefs as errors")
	flags.BoolVar(&policy.DivByZeroStrict, "div-by-zero-strict", policy.DivByZeroStrict, "fail evaluation on division by zero")
	flags.BoolVar(&policy.NegativeQuantityStrict, "negative-quantity-strict", policy.NegativeQuantityStrict, "fail pricing on negative component quantities")
	flags.BoolVar(&policy.AmbiguousEdgesStrict, "ambiguous-edges-strict", policy.AmbiguousEdgesStrict, "report ambiguous edges as errors")
	flags.BoolVar(&policy.OutOfRangeSelectionsStrict, "out-of-range-strict", policy.OutOfRangeSelectionsStrict, "reject selections outside their constraints")

	root.AddCommand(
		newValidateCmd(&policy),
		newBasePriceCmd(),
		newEvaluateCmd(&policy),
		newGateCmd(),
	)
	return root
}

// readDocument reads a JSON or YAML document from path, or stdin for "-". YAML is normalised
// through JSON so numbers decode the same way for both formats.
func readDocument(cmd *cobra.Command, path string) (any, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}

	var doc any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("error parsing %s: %w", path, err)
		}
		data, err = json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("error converting %s to json: %w", path, err)
		}
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", path, err)
	}
	return doc, nil
}

func readTree(cmd *cobra.Command, path string) (*models.Tree, error) {
	doc, err := readDocument(cmd, path)
	if err != nil {
		return nil, err
	}
	return models.DecodeTree(doc)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResult(cmd *cobra.Command, v any, ok bool) error {
	if err := printJSON(cmd, v); err != nil {
		return err
	}
	if !ok {
		return errNotOK
	}
	return nil
}
