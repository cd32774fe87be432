// Package retrier wraps the retry library with the one policy this
// tool needs: bounded attempts with exponential backoff for
// eventually-consistent remote resources.
package retrier

import (
	"context"
	"time"

	retry "github.com/avast/retry-go/v4"

	"github.com/martijnvandongen/operational-tasks-lambda/internal/domain/deploy"
)

const (
	defaultAttempts = 6
	baseDelay       = 500 * time.Millisecond
	maxDelay        = 8 * time.Second
)

// Propagation retries fn while it fails with deploy.ErrNotYetPropagated.
// Any other error aborts immediately; exhausting the attempts returns
// the last propagation error. Callers may append options to tighten
// the schedule.
func Propagation(ctx context.Context, fn func() error, opts ...retry.Option) error {
	base := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(defaultAttempts),
		retry.Delay(baseDelay),
		retry.MaxDelay(maxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(deploy.Retryable),
		retry.LastErrorOnly(true),
	}
	return retry.Do(fn, append(base, opts...)...)
}
