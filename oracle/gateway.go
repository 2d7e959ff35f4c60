// Package oracle is the narrow interface through which the engine asks a
// generative model for classifications, free text and lists.
//
// Every call fails soft. Transport errors and timeouts come back as a typed
// result carrying a sentinel payload, a zero cost delta and the cause in Err.
// Unparseable answers keep the cost of the call and wrap ErrUnparseable.
// Callers never receive a Go error from a Gateway.
package oracle

import (
	"context"
	"strings"

	"github.com/c360studio/taxorank/cost"
	"github.com/c360studio/taxorank/model"
)

// Sentinel payloads returned by failed calls.
const (
	// FailureText is the Text of a failed GenerateText call.
	FailureText = "None"

	// NoneItem is the single item of a failed GenerateList call. Models also
	// answer it literally when a list should be empty.
	NoneItem = "None"
)

// Kind names a request type. It labels logs and metrics.
type Kind string

// Request kinds issued by the engine.
const (
	KindRootCheck              Kind = "root-check"
	KindMemberCheck            Kind = "member-check"
	KindSuperRoot              Kind = "super-root"
	KindDescriptions           Kind = "descriptions"
	KindDefinitions            Kind = "definitions"
	KindCriteria               Kind = "criteria"
	KindRedundantCriteria      Kind = "redundant-criteria"
	KindRanks                  Kind = "ranks"
	KindOptimizeRanks          Kind = "optimize-ranks"
	KindDefineConcept          Kind = "define-concept"
	KindListSubconcepts        Kind = "list-subconcepts"
	KindPostprocessSubconcepts Kind = "postprocess-subconcepts"
	KindCheckSubconcepts       Kind = "check-subconcepts"
	KindRedundantSubconcepts   Kind = "redundant-subconcepts"
)

// VerdictRule decides how a classifier answer is read.
type VerdictRule int

const (
	// ContainsYes accepts any answer containing "yes", ignoring case and spaces.
	ContainsYes VerdictRule = iota
	// ExactPlus accepts only the answer "+", ignoring spaces.
	ExactPlus
)

// Prompt is the context of one oracle request.
type Prompt struct {
	Kind       Kind
	Capability model.Capability
	System     string
	User       string

	// MaxUnits caps the generated length in tokens.
	MaxUnits int

	// Verdict is used by Classify only.
	Verdict VerdictRule
}

// ClassificationResult is the outcome of Classify.
type ClassificationResult struct {
	Verdict bool
	Raw     string
	Usage   cost.Usage
	Err     error
}

// Failed reports whether the call failed or its answer could not be read.
func (r ClassificationResult) Failed() bool { return r.Err != nil }

// TextResult is the outcome of GenerateText.
type TextResult struct {
	Text  string
	Usage cost.Usage
	Err   error
}

// Failed reports whether the call failed.
func (r TextResult) Failed() bool { return r.Err != nil }

// Value returns the trimmed text, or "" when the call failed or the model
// answered the sentinel.
func (r TextResult) Value() string {
	if r.Failed() {
		return ""
	}
	text := strings.TrimSpace(r.Text)
	if strings.EqualFold(text, FailureText) {
		return ""
	}
	return text
}

// ListResult is the outcome of GenerateList.
type ListResult struct {
	Items []string
	Usage cost.Usage
	Err   error
}

// Failed reports whether the call failed.
func (r ListResult) Failed() bool { return r.Err != nil }

// Values returns the items with the NoneItem sentinel removed. A failed call
// yields an empty list.
func (r ListResult) Values() []string {
	if r.Failed() {
		return nil
	}
	values := make([]string, 0, len(r.Items))
	for _, item := range r.Items {
		if strings.EqualFold(strings.TrimSpace(item), NoneItem) {
			continue
		}
		values = append(values, item)
	}
	return values
}

// Gateway is the oracle seen by the engine. Implementations must be safe for
// concurrent use.
type Gateway interface {
	Classify(ctx context.Context, p Prompt) ClassificationResult
	GenerateText(ctx context.Context, p Prompt) TextResult
	GenerateList(ctx context.Context, p Prompt, sep string) ListResult
}
