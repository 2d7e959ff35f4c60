package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/c360studio/taxorank/cost"
	"github.com/c360studio/taxorank/oracle"
	"github.com/c360studio/taxorank/taxonomy"
)

var errScriptMissing = errors.New("no scripted answer")

// answer returns the raw oracle text for the n-th call (0-based) of a kind.
// ok=false makes the call fail.
type answer func(n int, p oracle.Prompt) (raw string, ok bool)

func always(raw string) answer {
	return func(int, oracle.Prompt) (string, bool) { return raw, true }
}

// sequence answers raws in order and repeats the last one.
func sequence(raws ...string) answer {
	return func(n int, _ oracle.Prompt) (string, bool) {
		if n >= len(raws) {
			n = len(raws) - 1
		}
		return raws[n], true
	}
}

// byConcept answers according to the quoted concept named in the prompt.
func byConcept(raws map[string]string) answer {
	return func(_ int, p oracle.Prompt) (string, bool) {
		for name, raw := range raws {
			if strings.Contains(p.User, fmt.Sprintf("%q", name)) {
				return raw, true
			}
		}
		return "", false
	}
}

// callUsage is the usage of every successful scripted call.
var callUsage = cost.FromTokens(10, 5, 0)

// scripted is an oracle.Gateway answering from per-kind scripts. Kinds
// without a script fail the way the LLM gateway does.
type scripted struct {
	mu      sync.Mutex
	answers map[oracle.Kind]answer
	calls   map[oracle.Kind]int
	prompts []oracle.Prompt
}

var _ oracle.Gateway = (*scripted)(nil)

func newScripted() *scripted {
	return &scripted{
		answers: make(map[oracle.Kind]answer),
		calls:   make(map[oracle.Kind]int),
	}
}

func (s *scripted) on(kind oracle.Kind, a answer) *scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers[kind] = a
	return s
}

func (s *scripted) count(kind oracle.Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[kind]
}

func (s *scripted) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

func (s *scripted) seen(kind oracle.Kind) []oracle.Prompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []oracle.Prompt
	for _, p := range s.prompts {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

func (s *scripted) raw(p oracle.Prompt) (string, error) {
	s.mu.Lock()
	n := s.calls[p.Kind]
	s.calls[p.Kind]++
	s.prompts = append(s.prompts, p)
	a := s.answers[p.Kind]
	s.mu.Unlock()

	if a == nil {
		return "", fmt.Errorf("%s: %w", p.Kind, errScriptMissing)
	}
	raw, ok := a(n, p)
	if !ok {
		return "", fmt.Errorf("%s call %d: %w", p.Kind, n, errScriptMissing)
	}
	return raw, nil
}

func (s *scripted) Classify(ctx context.Context, p oracle.Prompt) oracle.ClassificationResult {
	raw, err := s.raw(p)
	if err != nil {
		return oracle.ClassificationResult{Usage: cost.Zero(), Err: err}
	}
	verdict, err := oracle.ParseVerdict(raw, p.Verdict)
	return oracle.ClassificationResult{Verdict: verdict, Raw: raw, Usage: callUsage.Clone(), Err: err}
}

func (s *scripted) GenerateText(ctx context.Context, p oracle.Prompt) oracle.TextResult {
	raw, err := s.raw(p)
	if err != nil {
		return oracle.TextResult{Text: oracle.FailureText, Usage: cost.Zero(), Err: err}
	}
	return oracle.TextResult{Text: raw, Usage: callUsage.Clone()}
}

func (s *scripted) GenerateList(ctx context.Context, p oracle.Prompt, sep string) oracle.ListResult {
	raw, err := s.raw(p)
	if err != nil {
		return oracle.ListResult{Items: []string{oracle.NoneItem}, Usage: cost.Zero(), Err: err}
	}
	return oracle.ListResult{Items: oracle.SplitList(raw, sep), Usage: callUsage.Clone()}
}

// memoryStore is an in-memory Checkpointer.
type memoryStore struct {
	mu    sync.Mutex
	snaps []*taxonomy.Snapshot
	err   error
}

func (m *memoryStore) Save(_ context.Context, s *taxonomy.Snapshot) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.snaps = append(m.snaps, s)
	return fmt.Sprintf("memory://%s/%d", s.ID, len(m.snaps)), nil
}

func (m *memoryStore) Backend() string { return "memory" }

func (m *memoryStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.snaps)
}

func (m *memoryStore) last() *taxonomy.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.snaps) == 0 {
		return nil
	}
	return m.snaps[len(m.snaps)-1]
}
