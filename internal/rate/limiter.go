// Package rate paces outbound API requests so bulk fetches stay inside
// the mailbox service quota.
package rate

import (
	"context"
	"time"
)

// Limiter gates work items.
type Limiter interface {
	// Wait blocks until a slot is free or the context ends.
	Wait(ctx context.Context) error

	// Stop releases the limiter's resources.
	Stop()
}

// TokenBucket implements Limiter with a refilling token bucket. The bucket
// starts full, so short bursts up to the capacity run without waiting.
type TokenBucket struct {
	tokens chan struct{}
	ticker *time.Ticker
	done   chan struct{}
}

var _ Limiter = (*TokenBucket)(nil)

// NewTokenBucket creates a bucket holding up to capacity tokens, refilled
// at ratePerSec tokens per second. Non-positive arguments fall back to a
// capacity of 1 and one token per second.
func NewTokenBucket(capacity int, ratePerSec float64) *TokenBucket {
	if capacity <= 0 {
		capacity = 1
	}
	if ratePerSec <= 0 {
		ratePerSec = 1
	}

	tb := &TokenBucket{
		tokens: make(chan struct{}, capacity),
		ticker: time.NewTicker(time.Duration(float64(time.Second) / ratePerSec)),
		done:   make(chan struct{}),
	}
	for i := 0; i < capacity; i++ {
		tb.tokens <- struct{}{}
	}

	go tb.refill()
	return tb
}

func (tb *TokenBucket) refill() {
	for {
		select {
		case <-tb.done:
			return
		case <-tb.ticker.C:
			select {
			case tb.tokens <- struct{}{}:
			default:
				// Bucket full, drop the token.
			}
		}
	}
}

// Wait blocks until a token is available or the context ends.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	select {
	case <-tb.tokens:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop halts the refill loop. Pending Wait calls still drain remaining
// tokens.
func (tb *TokenBucket) Stop() {
	tb.ticker.Stop()
	close(tb.done)
}
