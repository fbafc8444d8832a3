// Package retry provides the Fibonacci-backoff retry helper shared by every
// component that rides out transient transport failures, adapted from the
// teacher's retry.go.
package retry

import (
	"context"
	log "log/slog"
	"time"

	"github.com/sethvargo/go-retry"
)

// Do executes task with Fibonacci backoff up to 5 retries. If retries are
// exhausted, gaveUp is invoked (when not nil) and the final error is returned.
func Do(ctx context.Context, task func(ctx context.Context) error, gaveUp func(ctx context.Context)) error {
	b := retry.NewFibonacci(50 * time.Millisecond)
	if err := retry.Do(ctx, retry.WithMaxRetries(5, b), task); err != nil {
		log.Warn("cachify: retry exhausted", "error", err)
		if gaveUp != nil {
			gaveUp(ctx)
		}
		return err
	}
	return nil
}
