package model

import (
	"encoding/json"
	"fmt"
	"os"
)

// RegistryConfig is the JSON form of the model registry, either as a
// standalone file or under a "model_registry" key.
type RegistryConfig struct {
	Capabilities map[string]*CapabilityConfig `json:"capabilities"`
	Endpoints    map[string]*EndpointConfig   `json:"endpoints"`
	Defaults     *DefaultsConfig              `json:"defaults,omitempty"`
}

// LoadFromFile loads a registry configuration from a JSON file and merges it
// over the default registry.
func LoadFromFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry file: %w", err)
	}

	return LoadFromJSON(data)
}

// LoadFromJSON loads a registry from JSON data.
// Accepts either a full config with "model_registry" key or just the registry config.
// Entries present in the data override the defaults; the rest are kept.
func LoadFromJSON(data []byte) (*Registry, error) {
	var fullConfig struct {
		ModelRegistry *RegistryConfig `json:"model_registry"`
	}
	if err := json.Unmarshal(data, &fullConfig); err == nil && fullConfig.ModelRegistry != nil {
		r := NewDefaultRegistry()
		if err := r.MergeFromConfig(fullConfig.ModelRegistry); err != nil {
			return nil, err
		}
		return r, nil
	}

	var regConfig RegistryConfig
	if err := json.Unmarshal(data, &regConfig); err != nil {
		return nil, fmt.Errorf("parse registry config: %w", err)
	}

	r := NewDefaultRegistry()
	if err := r.MergeFromConfig(&regConfig); err != nil {
		return nil, err
	}
	return r, nil
}

// ToConfig converts a Registry to a RegistryConfig for serialization.
func (r *Registry) ToConfig() *RegistryConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	caps := make(map[string]*CapabilityConfig, len(r.capabilities))
	for k, v := range r.capabilities {
		caps[string(k)] = v
	}

	return &RegistryConfig{
		Capabilities: caps,
		Endpoints:    r.endpoints,
		Defaults:     r.defaults,
	}
}

// MergeFromConfig merges configuration into an existing registry.
// Existing entries are overwritten by the new config. Unknown capability
// names are rejected.
func (r *Registry) MergeFromConfig(cfg *RegistryConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for k, v := range cfg.Capabilities {
		c := ParseCapability(k)
		if c == "" {
			return fmt.Errorf("unknown capability %q", k)
		}
		if v == nil {
			continue
		}
		r.capabilities[c] = v
	}

	for k, v := range cfg.Endpoints {
		if v == nil {
			continue
		}
		r.endpoints[k] = v
	}

	if cfg.Defaults != nil && cfg.Defaults.Model != "" {
		r.defaults = cfg.Defaults
	}
	return nil
}
