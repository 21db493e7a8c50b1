package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitedGenerator spaces calls to the wrapped TextGenerator so that provider
// requests-per-minute quotas are not exceeded. Waiting is bounded by ctx.
type RateLimitedGenerator struct {
	next    TextGenerator
	limiter *rate.Limiter
}

// NewRateLimitedGenerator allows requestsPerMinute calls per minute with a burst of one.
// A non-positive rate returns next unwrapped.
func NewRateLimitedGenerator(next TextGenerator, requestsPerMinute int) TextGenerator {
	if requestsPerMinute <= 0 {
		return next
	}
	return &RateLimitedGenerator{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1),
	}
}

// GenerateContent waits for a token and delegates to the wrapped generator.
func (g *RateLimitedGenerator) GenerateContent(ctx context.Context, prompt string, opts GenerateOptions) (ContentResponse, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return ContentResponse{}, fmt.Errorf("rate limiter wait failed: %w", err)
	}
	return g.next.GenerateContent(ctx, prompt, opts)
}

// Close closes the wrapped generator when it holds resources.
func (g *RateLimitedGenerator) Close() error {
	if c, ok := g.next.(Closer); ok {
		return c.Close()
	}
	return nil
}
