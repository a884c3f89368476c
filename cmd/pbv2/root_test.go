package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/models/treetest"
)

func writeBanner(t *testing.T, dir string, asYAML bool) string {
	t.Helper()

	data, err := json.Marshal(treetest.Banner())
	require.NoError(t, err)
	path := filepath.Join(dir, "banner.json")

	if asYAML {
		var doc any
		require.NoError(t, json.Unmarshal(data, &doc))
		data, err = yaml.Marshal(doc)
		require.NoError(t, err)
		path = filepath.Join(dir, "banner.yaml")
	}
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func execute(t *testing.T, args ...string) (map[string]any, error) {
	t.Helper()

	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)

	err := cmd.Execute()
	var result map[string]any
	if out.Len() > 0 {
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	}
	return result, err
}

func lineTotal(t *testing.T, result map[string]any) float64 {
	t.Helper()
	pricing, ok := result["pricing"].(map[string]any)
	require.True(t, ok, "result has no pricing")
	return pricing["lineTotalCents"].(float64)
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()

	for _, asYAML := range []bool{false, true} {
		path := writeBanner(t, dir, asYAML)
		t.Run(filepath.Ext(path), func(t *testing.T) {
			result, err := execute(t, "validate", path)
			require.NoError(t, err)
			assert.Equal(t, true, result["ok"])
		})
	}

	t.Run("not an object", func(t *testing.T) {
		path := filepath.Join(dir, "list.json")
		require.NoError(t, os.WriteFile(path, []byte(`[1, 2]`), 0o600))

		_, err := execute(t, "validate", path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "PBV2_E_INVALID_TREE")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := execute(t, "validate", filepath.Join(dir, "nope.json"))
		require.Error(t, err)
	})
}

func TestBasePriceCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tree.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"status":"DRAFT","rootNodeIds":[],"nodes":[],"edges":[],"meta":{}}`), 0o600))

	result, err := execute(t, "base-price", path)
	assert.ErrorIs(t, err, errNotOK)
	assert.Equal(t, false, result["ok"])
}

func TestEvaluateCommand(t *testing.T) {
	dir := t.TempDir()
	tree := writeBanner(t, dir, true)

	selectionsPath := filepath.Join(dir, "selections.yaml")
	require.NoError(t, os.WriteFile(selectionsPath, []byte("material: mesh\n"), 0o600))

	tests := []struct {
		name  string
		args  []string
		total float64
	}{
		{name: "set flag", args: []string{"--set", "material=vinyl"}, total: 7200},
		{name: "selections file", args: []string{"--selections", selectionsPath}, total: 7600},
		{name: "set wins over file", args: []string{"--selections", selectionsPath, "--set", "material=vinyl"}, total: 7200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"evaluate", tree, "--width", "24", "--height", "48", "--quantity", "2"}, tt.args...)
			result, err := execute(t, args...)
			require.NoError(t, err)
			assert.Equal(t, tt.total, lineTotal(t, result))
		})
	}

	t.Run("required input missing", func(t *testing.T) {
		result, err := execute(t, "evaluate", tree, "--width", "24", "--height", "48")
		assert.ErrorIs(t, err, errNotOK)
		assert.Equal(t, false, result["ok"])
	})

	t.Run("bad set flag", func(t *testing.T) {
		_, err := execute(t, "evaluate", tree, "--set", "material")
		require.Error(t, err)
	})

	t.Run("bad width", func(t *testing.T) {
		_, err := execute(t, "evaluate", tree, "--width", "wide")
		require.Error(t, err)
	})
}

func TestGateCommand(t *testing.T) {
	tests := []struct {
		name   string
		status string
		mode   string
		ok     bool
	}{
		{name: "persist active", status: "active", mode: "persist", ok: true},
		{name: "persist draft", status: "DRAFT", mode: "persist", ok: false},
		{name: "preview draft", status: "DRAFT", mode: "preview", ok: true},
		{name: "unknown mode", status: "ACTIVE", mode: "bulk", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := execute(t, "gate", "--id", "tv-1", "--status", tt.status, "--mode", tt.mode)
			if tt.ok {
				require.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, errNotOK)
			}
			assert.Equal(t, tt.ok, result["ok"])
		})
	}
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, "vinyl", parseValue("vinyl"))
	assert.Equal(t, true, parseValue("true"))
	assert.Equal(t, float64(3), parseValue("3"))
	assert.Equal(t, "3", parseValue(`"3"`))
}
