package config

import (
	"os"
	"sync"

	"gopkg.in/yaml.v2"
)

// BusOverridesConfig holds per-bus-id config overrides, keyed by bus
// id, loaded from a separate YAML file from the global config.
type BusOverridesConfig struct {
	Buses map[string]Config `yaml:"buses"`
}

// Manager resolves the effective config for a given bus id: the
// global config with that bus's overrides (if any) layered on top.
// Different buses may warrant different Voter prompts or LLM models
// without redeploying the whole service — adapted from the teacher's
// tenant-config Manager, keyed by bus id instead of tenant id.
type Manager struct {
	global *Config
	buses  map[string]Config
	mu     sync.RWMutex
}

// NewManager loads the global config and, if present, a bus-overrides
// file. A missing overrides file is not an error: the manager simply
// has no per-bus overrides.
func NewManager(globalPath, overridesPath string) (*Manager, error) {
	global, err := LoadConfig(globalPath)
	if err != nil {
		return nil, err
	}
	global.applyEnvOverrides()

	f, err := os.Open(overridesPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Manager{global: global, buses: make(map[string]Config)}, nil
		}
		return nil, err
	}
	defer f.Close()

	var bo BusOverridesConfig
	if err := yaml.NewDecoder(f).Decode(&bo); err != nil {
		return nil, err
	}
	return &Manager{global: global, buses: bo.Buses}, nil
}

// Get returns the effective config for busID: the global config with
// any matching bus override's non-zero fields layered on top.
func (m *Manager) Get(busID string) *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	effective := *m.global

	override, ok := m.buses[busID]
	if !ok {
		return &effective
	}

	if override.LLM.Model != "" {
		effective.LLM.Model = override.LLM.Model
	}
	if override.LLM.APIKey != "" {
		effective.LLM.APIKey = override.LLM.APIKey
	}
	if override.Voter.PromptOverride != "" {
		effective.Voter.PromptOverride = override.Voter.PromptOverride
	}
	if override.Voter.PollIntervalMs != 0 {
		effective.Voter.PollIntervalMs = override.Voter.PollIntervalMs
	}
	if override.Voter.BackoffMultiplier != 0 {
		effective.Voter.BackoffMultiplier = override.Voter.BackoffMultiplier
	}
	if override.Bus.PollIntervalMs != 0 {
		effective.Bus.PollIntervalMs = override.Bus.PollIntervalMs
	}

	return &effective
}
