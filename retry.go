package cachify

import (
	"context"

	"github.com/cachify/cachify/internal/retry"
)

// Retry executes task with Fibonacci backoff up to 5 retries, the same
// helper the remote engine adapter (engine.Remote) uses internally to ride
// out transient transport failures. If retries are exhausted, gaveUp is
// invoked (when not nil) and the final error is returned.
func Retry(ctx context.Context, task func(ctx context.Context) error, gaveUp func(ctx context.Context)) error {
	return retry.Do(ctx, task, gaveUp)
}
