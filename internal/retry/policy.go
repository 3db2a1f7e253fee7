// Package retry implements the wait schedule and attempt bookkeeping used
// when talking to the mail service.
package retry

import (
	"math"
	"math/rand"
	"time"
)

// Default schedule values.
const (
	DefaultBaseDelay   = 100 * time.Millisecond
	DefaultWaitCap     = 10 * time.Second
	DefaultMaxAttempts = 3
)

const maxWait = time.Duration(math.MaxInt64)

// Policy tracks retry state for a single operation: how many attempts have
// failed so far and whether another retry is allowed. The wait schedule is
// exponential with full jitter: the first retry waits the flat base delay,
// attempt n from the second on waits up to 2^n times the base, capped.
//
// A Policy is not safe for concurrent use; create one per operation.
type Policy struct {
	attempt     int
	maxAttempts int
	baseDelay   time.Duration
	waitCap     time.Duration
	retryable   bool

	// Sleep is invoked by Backoff with the jittered wait. Tests replace it.
	Sleep func(time.Duration)

	rng *rand.Rand
}

// New returns a policy allowing maxAttempts retries with the default delay
// schedule.
func New(maxAttempts int) *Policy {
	return NewWithSchedule(maxAttempts, DefaultBaseDelay, DefaultWaitCap)
}

// NewWithSchedule returns a policy with an explicit delay schedule.
// Non-positive delays fall back to the defaults.
func NewWithSchedule(maxAttempts int, baseDelay, waitCap time.Duration) *Policy {
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	if waitCap <= 0 {
		waitCap = DefaultWaitCap
	}
	return &Policy{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		waitCap:     waitCap,
		retryable:   0 < maxAttempts,
		Sleep:       time.Sleep,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WaitTime returns the raw exponential wait for the given attempt number.
// The first retry waits the flat base delay; attempt n for n >= 2 waits
// 2^n times the base. Grows without bound; use CappedWait for scheduling.
func (p *Policy) WaitTime(attempt int) time.Duration {
	if attempt <= 1 {
		return p.baseDelay
	}
	shift := uint(attempt)
	// Saturate instead of overflowing the shift.
	if shift >= 63 || p.baseDelay > maxWait>>shift {
		return maxWait
	}
	return p.baseDelay << shift
}

// CappedWait returns WaitTime bounded by the wait cap.
func (p *Policy) CappedWait(attempt int) time.Duration {
	if w := p.WaitTime(attempt); w < p.waitCap {
		return w
	}
	return p.waitCap
}

// JitteredWait draws a uniform wait in [0, CappedWait(attempt)], inclusive.
func (p *Policy) JitteredWait(attempt int) time.Duration {
	capped := p.CappedWait(attempt)
	if capped <= 0 {
		return 0
	}
	return time.Duration(p.rng.Int63n(int64(capped) + 1))
}

// Backoff blocks for the jittered wait of the current attempt count.
// It does nothing before the first failure has been recorded.
func (p *Policy) Backoff() {
	if p.attempt == 0 {
		return
	}
	p.Sleep(p.JitteredWait(p.attempt))
}

// Advance records one failed attempt and recomputes whether another retry
// is allowed.
func (p *Policy) Advance() {
	p.attempt++
	p.retryable = p.attempt < p.maxAttempts
}

// Attempt returns the number of failed attempts recorded so far.
func (p *Policy) Attempt() int {
	return p.attempt
}

// Retryable reports whether another retry is allowed.
func (p *Policy) Retryable() bool {
	return p.retryable
}

// MaxAttempts returns the retry budget the policy was created with.
func (p *Policy) MaxAttempts() int {
	return p.maxAttempts
}
