package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ocx/agentbus/internal/config"
)

func TestLoadConfigLeavesZeroFieldsUnset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bus:\n  default_id: b1\n"), 0o644))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "b1", cfg.Bus.DefaultID)
	require.Equal(t, 0, cfg.Server.Port) // defaults apply only via applyEnvOverrides/Get
}

func TestManagerGetFallsBackToGlobalWithoutOverride(t *testing.T) {
	dir := t.TempDir()
	globalPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(globalPath, []byte("llm:\n  model: base-model\n"), 0o644))

	m, err := config.NewManager(globalPath, filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)

	eff := m.Get("any-bus")
	require.Equal(t, "base-model", eff.LLM.Model)
}

func TestManagerGetLayersBusOverride(t *testing.T) {
	dir := t.TempDir()
	globalPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(globalPath, []byte("llm:\n  model: base-model\nvoter:\n  poll_interval_ms: 200\n"), 0o644))

	overridesPath := filepath.Join(dir, "overrides.yaml")
	require.NoError(t, os.WriteFile(overridesPath, []byte(
		"buses:\n  strict-bus:\n    llm:\n      model: strict-model\n    voter:\n      prompt_override: \"be extra careful\"\n"), 0o644))

	m, err := config.NewManager(globalPath, overridesPath)
	require.NoError(t, err)

	eff := m.Get("strict-bus")
	require.Equal(t, "strict-model", eff.LLM.Model)
	require.Equal(t, "be extra careful", eff.Voter.PromptOverride)
	require.Equal(t, 200, eff.Voter.PollIntervalMs) // untouched field still inherited

	other := m.Get("other-bus")
	require.Equal(t, "base-model", other.LLM.Model)
}
