package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/c360studio/taxorank/cost"
	"github.com/c360studio/taxorank/llm"
	"github.com/c360studio/taxorank/llm/testutil"
	"github.com/c360studio/taxorank/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reply(content string, prompt, completion int) *llm.Response {
	return &llm.Response{
		Content: content,
		Model:   "test-model",
		Usage:   llm.TokenUsage{PromptTokens: prompt, CompletionTokens: completion},
	}
}

func TestLLM_ClassifyBuildsRequest(t *testing.T) {
	mock := &testutil.MockLLMClient{Responses: []*llm.Response{reply("Yes.", 12, 1)}}
	g := NewLLM(mock)

	res := g.Classify(context.Background(), Prompt{
		Kind:       KindRootCheck,
		Capability: model.CapabilityVerify,
		System:     "You are a taxonomist.",
		User:       "Is Vehicle an accepted taxonomy?",
		MaxUnits:   5,
	})

	require.False(t, res.Failed())
	assert.True(t, res.Verdict)
	assert.Equal(t, cost.FromTokens(12, 1, 13), res.Usage)

	reqs := mock.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "verify", reqs[0].Capability)
	assert.Equal(t, 5, reqs[0].MaxTokens)
	require.Len(t, reqs[0].Messages, 2)
	assert.Equal(t, "system", reqs[0].Messages[0].Role)
	assert.Equal(t, "user", reqs[0].Messages[1].Role)
}

func TestLLM_ClassifyExactPlus(t *testing.T) {
	mock := &testutil.MockLLMClient{Responses: []*llm.Response{reply(" + ", 3, 1), reply("+ yes", 3, 2)}}
	g := NewLLM(mock)
	p := Prompt{Kind: KindCheckSubconcepts, Capability: model.CapabilityVerify, User: "check", Verdict: ExactPlus}

	assert.True(t, g.Classify(context.Background(), p).Verdict)
	assert.False(t, g.Classify(context.Background(), p).Verdict)

	require.Len(t, mock.Requests()[0].Messages, 1)
}

func TestLLM_ClassifyUnparseableKeepsUsage(t *testing.T) {
	mock := &testutil.MockLLMClient{Responses: []*llm.Response{reply("   ", 7, 0)}}
	res := NewLLM(mock).Classify(context.Background(), Prompt{Kind: KindMemberCheck, User: "q"})

	assert.True(t, res.Failed())
	assert.False(t, res.Verdict)
	assert.ErrorIs(t, res.Err, ErrUnparseable)
	assert.Equal(t, 7, res.Usage[cost.TotalTokens])
}

func TestLLM_TransportFailureIsSoft(t *testing.T) {
	mock := &testutil.MockLLMClient{Err: llm.NewTransientError(errors.New("connection reset"))}
	g := NewLLM(mock)
	ctx := context.Background()

	c := g.Classify(ctx, Prompt{Kind: KindRootCheck, User: "q"})
	assert.True(t, c.Failed())
	assert.False(t, c.Verdict)
	assert.True(t, c.Usage.IsZero())

	text := g.GenerateText(ctx, Prompt{Kind: KindDefineConcept, User: "q"})
	assert.True(t, text.Failed())
	assert.Equal(t, FailureText, text.Text)
	assert.Empty(t, text.Value())
	assert.True(t, text.Usage.IsZero())

	list := g.GenerateList(ctx, Prompt{Kind: KindListSubconcepts, User: "q"}, ",")
	assert.True(t, list.Failed())
	assert.Equal(t, []string{NoneItem}, list.Items)
	assert.Empty(t, list.Values())
	assert.True(t, list.Usage.IsZero())
	assert.Equal(t, cost.Keys, sortedKeys(list.Usage))
}

func TestLLM_Timeout(t *testing.T) {
	mock := &testutil.MockLLMClient{
		Handler: func(llm.Request) (*llm.Response, error) {
			time.Sleep(50 * time.Millisecond)
			return nil, context.DeadlineExceeded
		},
	}
	g := NewLLM(mock, WithTimeout(10*time.Millisecond))

	res := g.GenerateText(context.Background(), Prompt{Kind: KindSuperRoot, User: "q"})
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
	assert.Equal(t, FailureText, res.Text)
}

func TestLLM_CanceledContext(t *testing.T) {
	mock := &testutil.MockLLMClient{Responses: []*llm.Response{reply("Car, Boat", 1, 1)}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewLLM(mock).GenerateList(ctx, Prompt{Kind: KindListSubconcepts, User: "q"}, ",")
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, []string{NoneItem}, res.Items)
}

func TestLLM_GenerateList(t *testing.T) {
	mock := &testutil.MockLLMClient{Responses: []*llm.Response{reply("Car, Truck,\nBoat", 20, 6)}}
	res := NewLLM(mock).GenerateList(context.Background(), Prompt{Kind: KindListSubconcepts, User: "q"}, ",")

	require.False(t, res.Failed())
	assert.Equal(t, []string{"Car", "Truck", "Boat"}, res.Values())
	assert.Equal(t, 26, res.Usage[cost.TotalTokens])
}

func TestLLM_GenerateListNoneAnswer(t *testing.T) {
	mock := &testutil.MockLLMClient{Responses: []*llm.Response{reply("None", 20, 1)}}
	res := NewLLM(mock).GenerateList(context.Background(), Prompt{Kind: KindRedundantCriteria, User: "q"}, ",")

	assert.False(t, res.Failed())
	assert.Empty(t, res.Values())
	assert.Equal(t, 21, res.Usage[cost.TotalTokens])
}

func sortedKeys(u cost.Usage) []string {
	keys := make([]string, 0, len(u))
	for _, k := range cost.Keys {
		if _, ok := u[k]; ok {
			keys = append(keys, k)
		}
	}
	return keys
}
