package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// linearBackOff waits attempt × unit before each retry, without jitter.
type linearBackOff struct {
	unit    time.Duration
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return time.Duration(b.attempt) * b.unit
}

func (b *linearBackOff) Reset() { b.attempt = 0 }

// newBackOff allows at most attempts tries in total and stops early when ctx
// is done.
func newBackOff(ctx context.Context, unit time.Duration, attempts int) backoff.BackOffContext {
	retries := uint64(0)
	if attempts > 1 {
		retries = uint64(attempts - 1)
	}
	return backoff.WithContext(backoff.WithMaxRetries(&linearBackOff{unit: unit}, retries), ctx)
}
