// Package cost tracks generation units consumed by oracle calls.
//
// A Usage is a fixed set of named counters. Every Usage created through this
// package carries the same keys, so merging two of them never has to invent
// a counter. A missing key during Merge is a construction bug and panics.
package cost

import (
	"fmt"
	"sort"
	"strings"
)

// Counter keys carried by every Usage.
const (
	PromptTokens     = "prompt_tokens"
	CompletionTokens = "completion_tokens"
	TotalTokens      = "total_tokens"
)

// Keys lists the counters in a stable order.
var Keys = []string{CompletionTokens, PromptTokens, TotalTokens}

// Usage maps counter keys to accumulated values.
type Usage map[string]int

// Zero returns a Usage with every counter set to zero.
func Zero() Usage {
	u := make(Usage, len(Keys))
	for _, k := range Keys {
		u[k] = 0
	}
	return u
}

// FromTokens builds a Usage from the three token counts reported by a provider.
func FromTokens(prompt, completion, total int) Usage {
	if total == 0 {
		total = prompt + completion
	}
	return Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      total,
	}
}

// Merge returns a new Usage where every key of a is a[k] + b[k].
// It panics if b lacks a key present in a.
func Merge(a, b Usage) Usage {
	c := make(Usage, len(a))
	for k, v := range a {
		delta, ok := b[k]
		if !ok {
			panic(fmt.Sprintf("cost: counter %q missing from merge operand", k))
		}
		c[k] = v + delta
	}
	return c
}

// Add merges b into u and returns the result. It is Merge with u as the
// left operand, convenient for running totals.
func (u Usage) Add(b Usage) Usage {
	return Merge(u, b)
}

// Clone returns a copy of u.
func (u Usage) Clone() Usage {
	c := make(Usage, len(u))
	for k, v := range u {
		c[k] = v
	}
	return c
}

// IsZero reports whether every counter is zero.
func (u Usage) IsZero() bool {
	for _, v := range u {
		if v != 0 {
			return false
		}
	}
	return true
}

// String renders the counters sorted by key.
func (u Usage) String() string {
	keys := make([]string, 0, len(u))
	for k := range u {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, u[k]))
	}
	return strings.Join(parts, " ")
}
