package embedding

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// Backoff starts at retryBaseDelay and doubles up to retryMaxDelay.
var (
	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 10 * time.Second
)

// withRetry runs f with exponential backoff, retrying at most maxRetries
// times while transient reports the failure as transient.
func withRetry(ctx context.Context, maxRetries int, logger *zap.Logger, provider string,
	transient func(error) bool, f func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	b := retry.NewExponential(retryBaseDelay)
	b = retry.WithCappedDuration(retryMaxDelay, b)
	b = retry.WithMaxRetries(uint64(maxRetries), b)

	attempt := 0
	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := f(ctx)
		if err == nil || ctx.Err() != nil || !transient(err) {
			return err
		}
		if attempt <= maxRetries {
			logger.Warn("embedding request failed, retrying",
				zap.String("provider", provider),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}
		return retry.RetryableError(err)
	})
}

// transientStatus reports whether an HTTP status is worth retrying.
func transientStatus(code int) bool {
	return code == 429 || code >= 500
}
