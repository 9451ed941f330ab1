package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ugobe007/pythh-sub021/internal/scoring"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"migrate", "weights", "kanon", "score", "events"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestWeightsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range weightsCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"active", "list", "supersede", "rollback"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestSupersedeCommand_RequiredFlags(t *testing.T) {
	for _, name := range []string{"old", "new", "file"} {
		f := weightsSupersedeCmd.Flags().Lookup(name)
		require.NotNil(t, f, name)
		assert.Equal(t, []string{"true"}, f.Annotations["cobra_annotation_bash_completion_one_required_flag"], name)
	}
}

func TestLoadWeights(t *testing.T) {
	path := writeFile(t, "weights.yaml", `
component_weights:
  team: 0.4
  traction: 0.3
  market: 0.3
bonus_caps:
  enhanced_ceiling: 90
`)
	cfg, err := loadWeights(path)
	require.NoError(t, err)
	assert.Len(t, cfg.ComponentWeights, 3)
	assert.Equal(t, 90.0, cfg.BonusCaps.EnhancedCeiling)
	// Omitted fields keep the shipped values.
	assert.Equal(t, 10.0, cfg.BonusCaps.PsychologicalPoints)
	assert.Equal(t, scoring.DefaultWeightConfig().Invariants, cfg.Invariants)
	assert.NoError(t, cfg.Validate())

	_, err = loadWeights(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadWeightsNonFiniteFailsValidation(t *testing.T) {
	path := writeFile(t, "weights.yaml", `
normalization_divisor: .nan
invariants:
  max_signal_contribution: .inf
`)
	cfg, err := loadWeights(path)
	require.NoError(t, err)
	err = cfg.Validate()
	require.ErrorIs(t, err, scoring.ErrInvariantViolation)
	assert.Contains(t, err.Error(), "normalization_divisor")
	assert.Contains(t, err.Error(), "max_signal_contribution")
}

func TestLoadFeatures(t *testing.T) {
	f, err := loadFeatures(writeFile(t, "f.json", `{"team":0.8,"vision":0.4}`))
	require.NoError(t, err)
	assert.Equal(t, scoring.Features{"team": 0.8, "vision": 0.4}, f)

	_, err = loadFeatures(writeFile(t, "empty.yaml", ""))
	assert.Error(t, err)
}

func TestScorePreview(t *testing.T) {
	features := writeFile(t, "features.yaml", `
team: 0.8
traction: 0.6
market: 0.5
product: 0.7
vision: 0.4
`)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"score", "preview", "--features", features})
	require.NoError(t, rootCmd.Execute())

	assert.True(t, strings.HasPrefix(out.String(), "total: 61.5\n"), out.String())
	assert.Contains(t, out.String(), "team")
}

func TestScorePreviewRejectsInvalidWeights(t *testing.T) {
	features := writeFile(t, "features.yaml", "team: 1\n")
	weights := writeFile(t, "weights.yaml", "component_weights:\n  team: 0.5\n")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"score", "preview", "--features", features, "--weights", weights})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.ErrorIs(t, err, scoring.ErrInvariantViolation)
}
