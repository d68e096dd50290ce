package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/sells-group/openings-cli/internal/resilience"
	"github.com/sells-group/openings-cli/pkg/anthropic"
)

const classifySystem = `You classify civic-data text about a commercial location. Respond with only a JSON object: {"category": "<restaurant|bar|cafe|food_service|retail|personal_service|other>", "confidence": <0-100>}`

const analyzeSystem = `You analyze civic-data text about a commercial location. Respond with only a JSON object: {"business_type": "<short label>", "key_features": ["<feature>", ...], "confidence": <0-100>}`

const statusSystem = `You judge whether civic-data activity describes an ALREADY-OPERATING business (license renewals, routine inspections, complaints) or a NEW OPENING in progress (new applications, build-out permits, pre-opening inspections). Respond with only a JSON object: {"is_operational": <true|false>, "confidence": <0-100>}`

const resolveSystem = `You judge whether two (address, business name) pairs refer to the same physical business, allowing for abbreviations, unit numbers, and trade-name variants. Respond with only a JSON object: {"is_same": <true|false>, "confidence": <0-100>}`

// maxPromptText caps how much record text goes into one prompt.
const maxPromptText = 1500

// ClientConfig configures the remote oracle client.
type ClientConfig struct {
	// Model is the Anthropic model ID for classification calls.
	Model string

	// MaxConcurrent bounds in-flight remote calls. Default: 4.
	MaxConcurrent int64

	// RatePerSecond caps the sustained call rate. Default: 5.
	RatePerSecond float64

	// CallTimeout is the per-call deadline. A timed-out call falls back
	// locally without blocking other in-flight calls. Default: 20s.
	CallTimeout time.Duration

	// CacheTTL is the advisory result cache TTL. Zero disables the cache.
	CacheTTL time.Duration
}

func (c ClientConfig) withDefaults() ClientConfig {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 4
	}
	if c.RatePerSecond <= 0 {
		c.RatePerSecond = 5
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 20 * time.Second
	}
	return c
}

// Client is the remote oracle backed by an Anthropic model. Failures of any
// kind — timeout, open circuit, malformed response — degrade to the
// deterministic heuristic for that specific call; Client methods never
// return an error other than context cancellation.
type Client struct {
	llm      anthropic.Client
	cfg      ClientConfig
	fallback *Heuristic
	cache    *Cache
	sem      *semaphore.Weighted
	limiter  *rate.Limiter
	breaker  *resilience.CircuitBreaker
	retry    resilience.RetryConfig

	fallbacks atomic.Int64
}

// NewClient creates a remote oracle client.
func NewClient(llm anthropic.Client, cfg ClientConfig) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		llm:      llm,
		cfg:      cfg,
		fallback: NewHeuristic(),
		cache:    NewCache(cfg.CacheTTL),
		sem:      semaphore.NewWeighted(cfg.MaxConcurrent),
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerSecond), int(cfg.MaxConcurrent)),
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			ShouldTrip: resilience.IsTransient,
		}),
		retry: resilience.DefaultRetryConfig(),
	}
}

// FallbackCount reports how many calls were served by the heuristic.
func (c *Client) FallbackCount() int64 {
	return c.fallbacks.Load()
}

func (c *Client) Classify(ctx context.Context, text, name string) (Classification, error) {
	key := Key("classify", text, name)
	if v, ok := c.cache.Get(key); ok {
		if cls, ok := v.(Classification); ok {
			return cls, nil
		}
	}

	prompt := fmt.Sprintf("Business name: %s\nRecord text:\n%s", orNone(name), truncate(text))
	var out Classification
	if err := c.ask(ctx, classifySystem, prompt, &out); err != nil {
		return c.classifyFallback(ctx, text, name, err)
	}
	out.Confidence = clampConf(out.Confidence)
	c.cache.Set(key, out)
	return out, nil
}

func (c *Client) Analyze(ctx context.Context, text, name string) (Analysis, error) {
	key := Key("analyze", text, name)
	if v, ok := c.cache.Get(key); ok {
		if a, ok := v.(Analysis); ok {
			return a, nil
		}
	}

	prompt := fmt.Sprintf("Business name: %s\nRecord text:\n%s", orNone(name), truncate(text))
	var raw struct {
		BusinessType string   `json:"business_type"`
		KeyFeatures  []string `json:"key_features"`
		Confidence   float64  `json:"confidence"`
	}
	if err := c.ask(ctx, analyzeSystem, prompt, &raw); err != nil {
		c.noteFallback("analyze", err)
		return c.fallback.Analyze(ctx, text, name)
	}
	out := Analysis{
		BusinessType: strings.TrimSpace(raw.BusinessType),
		KeyFeatures:  raw.KeyFeatures,
		Confidence:   clampConf(raw.Confidence),
	}
	c.cache.Set(key, out)
	return out, nil
}

func (c *Client) OperationalStatus(ctx context.Context, text string, types []string, name string, date *time.Time) (Status, error) {
	dateStr := ""
	if date != nil {
		dateStr = date.Format("2006-01-02")
	}
	key := Key("status", text, strings.Join(types, ","), name, dateStr)
	if v, ok := c.cache.Get(key); ok {
		if s, ok := v.(Status); ok {
			return s, nil
		}
	}

	prompt := fmt.Sprintf(
		"Business name: %s\nRecord types: %s\nMost recent activity: %s\nRecord text:\n%s",
		orNone(name), orNone(strings.Join(types, ", ")), orNone(dateStr), truncate(text),
	)
	var out Status
	if err := c.ask(ctx, statusSystem, prompt, &out); err != nil {
		c.noteFallback("operational_status", err)
		return c.fallback.OperationalStatus(ctx, text, types, name, date)
	}
	out.Confidence = clampConf(out.Confidence)
	c.cache.Set(key, out)
	return out, nil
}

func (c *Client) ResolveEntity(ctx context.Context, addrA, nameA, addrB, nameB string) (Resolution, error) {
	key := Key("resolve", addrA, nameA, addrB, nameB)
	if v, ok := c.cache.Get(key); ok {
		if r, ok := v.(Resolution); ok {
			return r, nil
		}
	}

	prompt := fmt.Sprintf("A: %q at %q\nB: %q at %q", nameA, addrA, nameB, addrB)
	var out Resolution
	if err := c.ask(ctx, resolveSystem, prompt, &out); err != nil {
		c.noteFallback("resolve_entity", err)
		return c.fallback.ResolveEntity(ctx, addrA, nameA, addrB, nameB)
	}
	out.Confidence = clampConf(out.Confidence)
	c.cache.Set(key, out)
	return out, nil
}

// ask performs one remote call under the concurrency, rate, timeout, retry,
// and circuit-breaker limits, then parses the JSON response into out.
func (c *Client) ask(ctx context.Context, system, prompt string, out any) error {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return eris.Wrap(err, "oracle: acquire slot")
	}
	defer c.sem.Release(1)

	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "oracle: rate limit wait")
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	resp, err := resilience.ExecuteVal(callCtx, c.breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
			return c.llm.CreateMessage(ctx, anthropic.MessageRequest{
				Model:     c.cfg.Model,
				MaxTokens: 256,
				System:    system,
				Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
			})
		})
	})
	if err != nil {
		return err
	}

	cleaned := cleanJSON(resp.Text())
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return eris.Wrap(err, "oracle: parse response")
	}
	return nil
}

func (c *Client) classifyFallback(ctx context.Context, text, name string, err error) (Classification, error) {
	c.noteFallback("classify", err)
	return c.fallback.Classify(ctx, text, name)
}

func (c *Client) noteFallback(method string, err error) {
	c.fallbacks.Add(1)
	zap.L().Warn("oracle: remote call failed, using heuristic fallback",
		zap.String("method", method),
		zap.Error(err),
	)
}

// cleanJSON extracts a JSON object from text that may carry markdown code
// fences or prose wrapping.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

func truncate(text string) string {
	if len(text) <= maxPromptText {
		return text
	}
	return text[:maxPromptText]
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}

func clampConf(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
