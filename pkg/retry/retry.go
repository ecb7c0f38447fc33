package retry

import (
	"context"
	"time"
)

// Policy bounds a retry loop: how many attempts to make and how long to
// pause between them.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// Do runs op until it returns nil, the policy's attempts are exhausted, or
// ctx is cancelled. The last error is returned on exhaustion.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if i < attempts-1 && p.Delay > 0 {
			if err := Sleep(ctx, p.Delay); err != nil {
				return err
			}
		}
	}
	return lastErr
}

// Sleep waits for d unless ctx is cancelled first.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
