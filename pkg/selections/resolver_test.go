package selections

import (
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/errors"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/expression"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/models"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/models/treetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIndex() *models.TreeIndex {
	material := treetest.EnumInput("material", "material", true, "vinyl", "mesh")
	material.Input.SourcePath = "attributes.material"

	copies := treetest.NumberInput("copies", "copies", false, "1", "500")
	copies.Input.Constraints.Integer = true
	copies.Input.DefaultValue = float64(1)

	name := treetest.Input("name", "name", models.ValueTypeText, false)
	name.Input.Constraints.MaxLength = func() *int { v := 5; return &v }()
	name.Input.Constraints.Pattern = "^[a-z]+$"

	grommets := treetest.Input("grommets", "grommets", models.ValueTypeBoolean, false)
	grommets.Input.SourcePath = "options.grommets"

	tree := treetest.Tree(models.TreeStatusActive, []string{"material"},
		[]models.Node{material, copies, name, grommets, treetest.Deleted(treetest.Input("old", "old", models.ValueTypeText, false))},
		nil)
	return models.NewTreeIndex(tree)
}

func TestResolve(t *testing.T) {
	resolved, err := Resolve(testIndex(), map[string]any{
		"material": "vinyl",
		"copies":   float64(25),
		"name":     "abc",
		"grommets": true,
		"unknown":  "x",
		"old":      "y",
		"ignored":  nil,
	}, Options{})
	require.NoError(t, err)

	assert.True(t, expression.Text("vinyl").Equal(resolved.Values["material"]))
	assert.True(t, expression.Int(25).Equal(resolved.Values["copies"]))
	assert.True(t, expression.Bool(true).Equal(resolved.Values["grommets"]))
	assert.Empty(t, resolved.Defaulted)

	require.Len(t, resolved.Findings, 2)
	assert.Equal(t, errors.CodeSelectionUnknownKey, resolved.Findings[0].Code)
	assert.Equal(t, "selections.old", resolved.Findings[0].Path)
	assert.Equal(t, "selections.unknown", resolved.Findings[1].Path)
}

func TestResolveAppliesDefaults(t *testing.T) {
	resolved, err := Resolve(testIndex(), map[string]any{}, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"copies"}, resolved.Defaulted)
	assert.True(t, expression.Int(1).Equal(resolved.Values["copies"]))
	assert.False(t, resolved.Has("material"))
}

func TestResolveSkipsUnusableDefaults(t *testing.T) {
	tests := []struct {
		name     string
		defValue any
		code     errors.Code
	}{
		{"wrong type", "one", errors.CodeInputConstraintsInvalid},
		{"above max", float64(900), errors.CodeSelectionOutOfRange},
		{"not integer", 1.5, errors.CodeSelectionOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			copies := treetest.NumberInput("copies", "copies", false, "1", "500")
			copies.Input.Constraints.Integer = true
			copies.Input.DefaultValue = tt.defValue
			ix := models.NewTreeIndex(treetest.Tree(models.TreeStatusActive, []string{"copies"}, []models.Node{copies}, nil))

			resolved, err := Resolve(ix, map[string]any{}, Options{OutOfRangeStrict: true})
			require.NoError(t, err)

			assert.False(t, resolved.Has("copies"))
			assert.Empty(t, resolved.Defaulted)
			require.Len(t, resolved.Findings, 1)
			assert.Equal(t, tt.code, resolved.Findings[0].Code)
			assert.Equal(t, models.SeverityWarning, resolved.Findings[0].Severity)
			assert.Equal(t, "nodes.copies.defaultValue", resolved.Findings[0].Path)
			assert.Equal(t, "copies", resolved.Findings[0].EntityID)
		})
	}
}

func TestCheckConstraintsPattern(t *testing.T) {
	input := &models.InputSpec{ValueType: models.ValueTypeText}
	input.Constraints.Pattern = "^[0-9]{3}$"

	_, ok := CheckConstraints(input, expression.Text("123"))
	assert.True(t, ok)
	_, ok = CheckConstraints(input, expression.Text("12a"))
	assert.False(t, ok)

	input.Constraints.Pattern = "([0-9"
	violation, ok := CheckConstraints(input, expression.Text("123"))
	assert.False(t, ok)
	assert.NotEmpty(t, violation)
	assert.False(t, ValidPattern("([0-9"))
	assert.True(t, ValidPattern("^a+$"))
}

func TestResolveRejectsNonObjects(t *testing.T) {
	for _, raw := range []any{nil, []any{"a"}, "material=vinyl", float64(3), true} {
		_, err := Resolve(testIndex(), raw, Options{})
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.CodeInvalidSelections), "raw %#v", raw)

		pbErr, _ := errors.AsPBV2Error(err)
		assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(pbErr.ToHTTPError()))
	}
}

func TestResolveTypeMismatchIsInvalidInput(t *testing.T) {
	_, err := Resolve(testIndex(), map[string]any{"copies": "ten"}, Options{})
	require.Error(t, err)
	pbErr, ok := errors.AsPBV2Error(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeInvalidSelections, pbErr.Code)
	assert.Equal(t, "copies", pbErr.EntityID)
}

func TestResolveOutOfRange(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
	}{
		{"enum mismatch", "material", "paper"},
		{"above max", "copies", float64(501)},
		{"not integer", "copies", 2.5},
		{"too long", "name", "abcdef"},
		{"pattern", "name", "AB"},
	}

	for _, tt := range tests {
		t.Run(tt.name+" lenient", func(t *testing.T) {
			resolved, err := Resolve(testIndex(), map[string]any{tt.key: tt.value}, Options{OutOfRangeStrict: false})
			require.NoError(t, err)
			require.Len(t, resolved.Findings, 1)
			assert.Equal(t, errors.CodeSelectionOutOfRange, resolved.Findings[0].Code)
			assert.Equal(t, models.SeverityWarning, resolved.Findings[0].Severity)
			if tt.key != "copies" {
				assert.False(t, resolved.Has(tt.key))
			}
		})

		t.Run(tt.name+" strict", func(t *testing.T) {
			_, err := Resolve(testIndex(), map[string]any{tt.key: tt.value}, Options{OutOfRangeStrict: true})
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.CodeSelectionOutOfRange))
		})
	}
}

func TestExtract(t *testing.T) {
	x := NewExtractor()
	payload := map[string]any{
		"attributes": map[string]any{"material": "mesh"},
		"options":    map[string]any{"grommets": true},
	}

	out, err := x.Extract(testIndex(), payload, map[string]any{"grommets": false})
	require.NoError(t, err)
	assert.Equal(t, "mesh", out["material"])
	assert.Equal(t, false, out["grommets"])

	type lineItem struct {
		Attributes map[string]string `json:"attributes"`
	}
	out, err = x.Extract(testIndex(), lineItem{Attributes: map[string]string{"material": "vinyl"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "vinyl", out["material"])
	_, ok := out["grommets"]
	assert.False(t, ok)

	assert.Error(t, x.ValidatePath("attributes.["))
}
