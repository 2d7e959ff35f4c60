// Package model provides capability-based model selection for oracle calls.
// Instead of hardcoding model names, each oracle request names a capability
// (verify, regenerate, generate) and the registry resolves it to available
// models with fallback chains and per-capability sampling parameters.
package model

// Capability represents a semantic capability for model selection.
type Capability string

const (
	// CapabilityVerify is for yes/no classification: root checks, member
	// checks and subconcept validation.
	CapabilityVerify Capability = "verify"

	// CapabilityRegenerate is for rewriting existing lists, such as picking
	// redundant criteria or subconcepts.
	CapabilityRegenerate Capability = "regenerate"

	// CapabilityGenerate is for producing new material: descriptions,
	// criteria, ranks and subconcepts.
	CapabilityGenerate Capability = "generate"
)

// IsValid checks if a capability string is a known capability.
func (c Capability) IsValid() bool {
	switch c {
	case CapabilityVerify, CapabilityRegenerate, CapabilityGenerate:
		return true
	}
	return false
}

// String returns the string representation of the capability.
func (c Capability) String() string {
	return string(c)
}

// ParseCapability converts a string to a Capability, returning empty for invalid values.
func ParseCapability(s string) Capability {
	c := Capability(s)
	if c.IsValid() {
		return c
	}
	return ""
}

// Sampling holds the decoding parameters sent with every request made for
// a capability. Zero values are omitted from provider requests.
type Sampling struct {
	Temperature      float64 `json:"temperature,omitempty"`
	TopP             float64 `json:"top_p,omitempty"`
	PresencePenalty  float64 `json:"presence_penalty,omitempty"`
	FrequencyPenalty float64 `json:"frequency_penalty,omitempty"`
}
