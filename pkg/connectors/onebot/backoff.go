package onebot

import (
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const maxReconnectDelay = 30 * time.Second

// reconnectBackOff doubles the retry interval per attempt up to 30s and
// adds up to 20% jitter. It returns backoff.Stop once maxRetries attempts
// have been used.
type reconnectBackOff struct {
	interval   time.Duration
	maxRetries int
	attempts   int
	random     func() float64
}

var _ backoff.BackOff = (*reconnectBackOff)(nil)

func newReconnectBackOff(interval time.Duration, maxRetries int) *reconnectBackOff {
	return &reconnectBackOff{interval: interval, maxRetries: maxRetries, random: rand.Float64}
}

func (b *reconnectBackOff) NextBackOff() time.Duration {
	b.attempts++
	if b.attempts > b.maxRetries {
		return backoff.Stop
	}

	return reconnectDelay(b.interval, b.attempts, b.random())
}

func (b *reconnectBackOff) Reset() {
	b.attempts = 0
}

// reconnectDelay is interval·2^(attempt-1) capped at 30s, plus
// floor(capped·0.2·r) for r in [0, 1).
func reconnectDelay(interval time.Duration, attempt int, r float64) time.Duration {
	capped := interval
	for i := 1; i < attempt && capped < maxReconnectDelay; i++ {
		capped *= 2
	}

	capped = min(capped, maxReconnectDelay)
	jitter := time.Duration(float64(capped.Milliseconds())*0.2*r) * time.Millisecond

	return capped + jitter
}
