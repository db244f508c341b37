package browser

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/waybillflow/retry"
)

// NavigateWithRetry loads url, retrying transient network failures with
// exponential backoff. Non-network failures surface immediately.
func NavigateWithRetry(ctx context.Context, page Page, url string, maxRetries int, base, jitter time.Duration, logger *zap.Logger) error {
	r := retry.New(&retry.Policy{
		MaxRetries: maxRetries,
		BaseDelay:  base,
		Jitter:     jitter,
		Classify:   retry.IsRetryableNetworkError,
	}, logger)

	return r.Do(ctx, func() error {
		return page.Navigate(ctx, url)
	})
}
