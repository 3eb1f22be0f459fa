package connection

import (
	"sync"
	"time"
)

// ReconnectPolicy schedules retries with a fixed delay and gives up once
// MaxAttempts consecutive attempts have failed, counting the first. The
// counter only resets on a confirmed connection or a manual reset.
type ReconnectPolicy struct {
	mu          sync.Mutex
	delay       time.Duration
	maxAttempts int
	attempts    int
}

// NewReconnectPolicy creates a policy.
func NewReconnectPolicy(delay time.Duration, maxAttempts int) *ReconnectPolicy {
	return &ReconnectPolicy{
		delay:       delay,
		maxAttempts: maxAttempts,
	}
}

// Failure records a failed attempt. It returns whether a retry should be
// scheduled and how long to wait before it.
func (p *ReconnectPolicy) Failure() (bool, time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.attempts < p.maxAttempts {
		p.attempts++
	}
	if p.attempts >= p.maxAttempts {
		return false, 0
	}
	return true, p.delay
}

// Success records a confirmed connection.
func (p *ReconnectPolicy) Success() {
	p.Reset()
}

// Reset zeroes the counter.
func (p *ReconnectPolicy) Reset() {
	p.mu.Lock()
	p.attempts = 0
	p.mu.Unlock()
}

// Attempts returns the number of consecutive failed attempts since the
// last reset.
func (p *ReconnectPolicy) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

// Exhausted reports whether MaxAttempts attempts have failed.
func (p *ReconnectPolicy) Exhausted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts >= p.maxAttempts
}

// MaxAttempts returns the configured limit.
func (p *ReconnectPolicy) MaxAttempts() int {
	return p.maxAttempts
}
