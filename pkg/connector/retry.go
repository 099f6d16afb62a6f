package connector

import (
	"context"
	"fmt"

	"github.com/FACorreiaa/bankconnect-go/pkg/apperror"
)

// retry runs attempt up to MaxRetryLimit times. Outcomes apperror.Retryable
// rejects are returned as they are; exhausting the budget yields
// KindServiceTimeout wrapping the last failure.
func retry[T any](ctx context.Context, c *Client, op string, attempt func(n int) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for n := 1; n <= c.cfg.MaxRetryLimit; n++ {
		v, err := attempt(n)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			return zero, apperror.Wrap(apperror.KindServiceTimeout, op, ctx.Err())
		}
		if !apperror.Retryable(err) {
			return zero, err
		}
		lastErr = err
		c.logger.Warn("bank connect attempt failed", "operation", op, "attempt", n, "error", err)
	}
	return zero, apperror.Wrap(apperror.KindServiceTimeout, op, lastErr)
}

// unexpectedStatus classifies a status the operation has no meaning for.
func unexpectedStatus(op string, resp *response) error {
	return apperror.New(apperror.KindServiceFailed, op,
		fmt.Sprintf("unexpected status %d: %s", resp.status, truncate(resp.body, 256)))
}
