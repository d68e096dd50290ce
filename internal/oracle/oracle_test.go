package oracle

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/openings-cli/pkg/anthropic"
)

func TestHeuristicClassify(t *testing.T) {
	h := NewHeuristic()
	ctx := context.Background()

	tests := []struct {
		name     string
		text     string
		bizName  string
		category string
	}{
		{"restaurant keyword", "Retail Food Establishment license", "", "restaurant"},
		{"tavern keyword", "Tavern license application", "", "bar"},
		{"cafe in name", "new license", "Lakeview Cafe LLC", "cafe"},
		{"no keywords", "miscellaneous filing", "Acme Holdings", "other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cls, err := h.Classify(ctx, tt.text, tt.bizName)
			require.NoError(t, err)
			assert.Equal(t, tt.category, cls.Category)
			assert.Greater(t, cls.Confidence, 0.0)
		})
	}
}

func TestHeuristicClassifyDeterministic(t *testing.T) {
	h := NewHeuristic()
	ctx := context.Background()
	a, _ := h.Classify(ctx, "restaurant build-out permit", "Tony's")
	b, _ := h.Classify(ctx, "restaurant build-out permit", "Tony's")
	assert.Equal(t, a, b)
}

func TestHeuristicOperationalStatus(t *testing.T) {
	h := NewHeuristic()
	ctx := context.Background()

	op, err := h.OperationalStatus(ctx, "license renewal after complaint re-inspection", nil, "", nil)
	require.NoError(t, err)
	assert.True(t, op.IsOperational)

	opening, err := h.OperationalStatus(ctx, "new application, build-out under construction", nil, "", nil)
	require.NoError(t, err)
	assert.False(t, opening.IsOperational)
}

func TestHeuristicResolveEntity(t *testing.T) {
	h := NewHeuristic()
	ctx := context.Background()

	same, err := h.ResolveEntity(ctx, "123 N Milwaukee Ave", "Blue Door Kitchen", "123 NORTH MILWAUKEE AVENUE", "Blue Door Kitchen LLC")
	require.NoError(t, err)
	assert.True(t, same.IsSame)
	assert.Greater(t, same.Confidence, 80.0)

	diff, err := h.ResolveEntity(ctx, "123 N Milwaukee Ave", "Blue Door", "800 W Randolph St", "Blue Door")
	require.NoError(t, err)
	assert.False(t, diff.IsSame)
}

func TestCacheRoundTrip(t *testing.T) {
	c := NewCache(time.Minute)
	key := Key("classify", "text", "name")

	_, ok := c.Get(key)
	assert.False(t, ok)

	c.Set(key, Classification{Category: "restaurant", Confidence: 90})
	v, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "restaurant", v.(Classification).Category)
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache(time.Minute)
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	c.nowFunc = func() time.Time { return now }

	c.Set("k", 1)
	_, ok := c.Get("k")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestCacheDisabled(t *testing.T) {
	c := NewCache(0)
	c.Set("k", 1)
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestKeyDistinguishesInputs(t *testing.T) {
	assert.NotEqual(t, Key("classify", "a", "b"), Key("classify", "ab", ""))
	assert.NotEqual(t, Key("classify", "a"), Key("analyze", "a"))
}

// fakeLLM is a function-backed anthropic.Client for tests.
type fakeLLM struct {
	fn    func(req anthropic.MessageRequest) (*anthropic.MessageResponse, error)
	calls atomic.Int64
}

func (f *fakeLLM) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.calls.Add(1)
	return f.fn(req)
}

func textResponse(body string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{Content: []anthropic.ContentBlock{{Type: "text", Text: body}}}
}

func TestClientClassifyParsesResponse(t *testing.T) {
	llm := &fakeLLM{fn: func(anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
		return textResponse("```json\n{\"category\": \"restaurant\", \"confidence\": 92}\n```"), nil
	}}
	c := NewClient(llm, ClientConfig{Model: "test-model", CacheTTL: time.Minute})

	cls, err := c.Classify(context.Background(), "full service restaurant", "Maple & Ash")
	require.NoError(t, err)
	assert.Equal(t, "restaurant", cls.Category)
	assert.Equal(t, 92.0, cls.Confidence)
	assert.EqualValues(t, 0, c.FallbackCount())
}

func TestClientClassifyCaches(t *testing.T) {
	llm := &fakeLLM{fn: func(anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
		return textResponse(`{"category": "bar", "confidence": 80}`), nil
	}}
	c := NewClient(llm, ClientConfig{Model: "test-model", CacheTTL: time.Minute})

	for i := 0; i < 3; i++ {
		_, err := c.Classify(context.Background(), "tavern license", "The Snug")
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, llm.calls.Load())
}

func TestClientFallsBackOnError(t *testing.T) {
	llm := &fakeLLM{fn: func(anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
		return nil, eris.New("api error: Overloaded")
	}}
	c := NewClient(llm, ClientConfig{Model: "test-model"})
	c.retry.MaxAttempts = 1

	cls, err := c.Classify(context.Background(), "restaurant license", "")
	require.NoError(t, err)
	assert.Equal(t, "restaurant", cls.Category)
	assert.EqualValues(t, 1, c.FallbackCount())
}

func TestClientFallsBackOnGarbage(t *testing.T) {
	llm := &fakeLLM{fn: func(anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
		return textResponse("sure! the category is probably a restaurant"), nil
	}}
	c := NewClient(llm, ClientConfig{Model: "test-model"})

	st, err := c.OperationalStatus(context.Background(), "license renewal", []string{"licenses"}, "", nil)
	require.NoError(t, err)
	assert.True(t, st.IsOperational)
	assert.EqualValues(t, 1, c.FallbackCount())
}

func TestClientEveryCallFailsStillAnswers(t *testing.T) {
	llm := &fakeLLM{fn: func(anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
		return nil, eris.New("dial: no such host")
	}}
	c := NewClient(llm, ClientConfig{Model: "test-model"})
	c.retry.MaxAttempts = 1
	ctx := context.Background()

	_, err := c.Classify(ctx, "x", "")
	require.NoError(t, err)
	_, err = c.Analyze(ctx, "x", "")
	require.NoError(t, err)
	_, err = c.OperationalStatus(ctx, "x", nil, "", nil)
	require.NoError(t, err)
	_, err = c.ResolveEntity(ctx, "a", "", "b", "")
	require.NoError(t, err)
	assert.EqualValues(t, 4, c.FallbackCount())
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"prose wrapped", `Here you go: {"a":1}. Anything else?`, `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanJSON(tt.in))
		})
	}
}
