// Package ratelimit throttles file reads with a token bucket shared across
// concurrent readers.
package ratelimit

import (
	"context"
	"io"
	"sync"
	"time"
)

// minBurst keeps small limits from degrading into one-byte reads
const minBurst = 65536

// Limiter is a token bucket measured in bytes. A nil *Limiter never waits.
type Limiter struct {
	bytesPerSecond int64
	burst          int64

	mu     sync.Mutex
	tokens int64
	last   time.Time
}

// NewLimiter creates a limiter allowing bytesPerSecond on average, with bursts
// of one second worth of data (at least 64 KiB). It returns nil when
// bytesPerSecond is not positive.
func NewLimiter(bytesPerSecond int64) *Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}

	burst := bytesPerSecond
	if burst < minBurst {
		burst = minBurst
	}

	return &Limiter{
		bytesPerSecond: bytesPerSecond,
		burst:          burst,
		tokens:         burst,
		last:           time.Now(),
	}
}

// Burst returns the largest amount Wait can grant at once
func (l *Limiter) Burst() int64 {
	if l == nil {
		return 0
	}
	return l.burst
}

// Wait blocks until n bytes may be consumed or ctx is done. n is capped to Burst.
func (l *Limiter) Wait(ctx context.Context, n int64) error {
	if l == nil {
		return ctx.Err()
	}
	if n > l.burst {
		n = l.burst
	}

	for {
		l.mu.Lock()
		l.refill(time.Now())
		if l.tokens >= n {
			l.tokens -= n
			l.mu.Unlock()
			return nil
		}
		wait := time.Duration(float64(n-l.tokens) / float64(l.bytesPerSecond) * float64(time.Second))
		l.mu.Unlock()

		if wait < time.Millisecond {
			wait = time.Millisecond
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// refund returns unused tokens after a short read
func (l *Limiter) refund(n int64) {
	if n <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokens += n
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
}

// refill must be called with mu held
func (l *Limiter) refill(now time.Time) {
	add := int64(now.Sub(l.last).Seconds() * float64(l.bytesPerSecond))
	if add <= 0 {
		return
	}
	l.tokens += add
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	l.last = now
}

type reader struct {
	ctx     context.Context
	r       io.Reader
	limiter *Limiter
}

// NewReader wraps r so reads draw from limiter. With a nil limiter r is
// returned unchanged.
func NewReader(ctx context.Context, r io.Reader, limiter *Limiter) io.Reader {
	if limiter == nil {
		return r
	}
	return &reader{ctx: ctx, r: r, limiter: limiter}
}

func (r *reader) Read(p []byte) (int, error) {
	want := int64(len(p))
	if want > r.limiter.burst {
		want = r.limiter.burst
	}
	if err := r.limiter.Wait(r.ctx, want); err != nil {
		return 0, err
	}

	n, err := r.r.Read(p[:want])
	r.limiter.refund(want - int64(n))
	return n, err
}
