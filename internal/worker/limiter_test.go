package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ppiankov/persona/internal/llm"
)

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", limiter.defaultBurst)
	}

	l2 := NewLimiter(10, -1)
	if l2.defaultBurst != 1 {
		t.Errorf("expected default burst 1 for negative input, got %d", l2.defaultBurst)
	}
}

func TestLimiter_Unlimited(t *testing.T) {
	limiter := NewLimiter(0, 1)
	for i := 0; i < 100; i++ {
		if !limiter.Allow("groq") {
			t.Fatalf("expected unlimited limiter to allow request %d", i)
		}
	}
}

func TestLimiter_RateLimit(t *testing.T) {
	limiter := NewLimiter(1, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "www.reddit.com"); err != nil {
		t.Errorf("first wait failed: %v", err)
	}

	// Burst of 1 is spent
	if limiter.Allow("www.reddit.com") {
		t.Errorf("expected allow to fail (exhausted tokens)")
	}

	if !limiter.Allow("groq") {
		t.Errorf("expected allow for another key")
	}
}

func TestLimiter_WaitURL(t *testing.T) {
	limiter := NewLimiter(1, 1)
	ctx := context.Background()

	if err := limiter.WaitURL(ctx, "https://www.reddit.com/user/spez/comments.json"); err != nil {
		t.Fatalf("WaitURL failed: %v", err)
	}
	if limiter.Allow("www.reddit.com") {
		t.Error("expected WaitURL to spend the host's token")
	}

	if err := limiter.WaitURL(ctx, "::invalid"); err == nil {
		t.Error("expected error for invalid URL")
	}
}

func TestLimiter_WaitHonorsContext(t *testing.T) {
	limiter := NewLimiter(0.01, 1)
	limiter.Allow("slow")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := limiter.Wait(ctx, "slow"); err == nil {
		t.Error("expected Wait to fail before the next token")
	}
}

func TestLimiter_SetRate(t *testing.T) {
	limiter := NewLimiter(10, 10)

	limiter.SetRate("slow.example", 0.1, 1)

	if !limiter.Allow("slow.example") {
		t.Errorf("first request should pass")
	}
	if limiter.Allow("slow.example") {
		t.Errorf("second request should fail")
	}
	if !limiter.Allow("fast.example") {
		t.Errorf("other key should pass")
	}
}

func TestLimiter_SetDelay(t *testing.T) {
	limiter := NewLimiter(100, 10)

	limiter.SetDelay("polite.example", 0)
	limiter.Allow("polite.example")
	if !limiter.Allow("polite.example") {
		t.Error("zero delay should leave the default rate in place")
	}

	limiter.SetDelay("polite.example", time.Hour)
	if !limiter.Allow("polite.example") {
		t.Error("first request after SetDelay should pass")
	}
	if limiter.Allow("polite.example") {
		t.Error("second request inside the crawl delay should fail")
	}
}

type countingProvider struct {
	calls int
}

func (p *countingProvider) Name() string                        { return "groq" }
func (p *countingProvider) Ping(ctx context.Context) error { return nil }
func (p *countingProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.calls++
	return &llm.CompletionResponse{Text: "{}"}, nil
}

func TestLimiter_Wrap(t *testing.T) {
	inner := &countingProvider{}
	limiter := NewLimiter(0.01, 1)
	p := limiter.Wrap(inner)

	if p.Name() != "groq" {
		t.Errorf("Expected wrapped name groq, got %s", p.Name())
	}

	if _, err := p.Complete(context.Background(), llm.CompletionRequest{Prompt: "x"}); err != nil {
		t.Fatalf("first completion failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.Complete(ctx, llm.CompletionRequest{Prompt: "x"})
	if !errors.Is(err, llm.ErrCompletion) {
		t.Errorf("Expected a completion error while paced, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("Expected 1 backend call, got %d", inner.calls)
	}
}
