package sources

import (
	"context"
	"math/rand"
	"time"

	"asset-workers/internal/common/errors"
	"asset-workers/internal/common/logger"
	"asset-workers/internal/models"
)

const retryBaseDelay = 500 * time.Millisecond

// Result is the outcome of a resilient lookup. Exactly one of Data and
// Err is set when the source had something to say; both are empty when
// the source simply had no record.
type Result struct {
	Data     *models.DataSourceResult
	Err      error
	Attempts int
}

// WithRetry runs a source lookup with bounded retries and jittered
// exponential backoff. It never panics and never retries errors marked
// non-retryable (bad credentials, validation). A nil result with a nil
// error counts as a completed miss, not a failure.
func WithRetry(ctx context.Context, source Source, searchTerms []string, maxAttempts int, log logger.Logger) Result {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		data, err := source.Lookup(ctx, searchTerms)
		if err == nil {
			return Result{Data: data, Attempts: attempt}
		}

		lastErr = err
		if !errors.IsRetryable(err) {
			log.Warn("Source lookup failed permanently", map[string]interface{}{
				"source":  source.Name(),
				"attempt": attempt,
				"error":   err.Error(),
			})
			return Result{Err: err, Attempts: attempt}
		}

		log.Warn("Source lookup failed, will retry", map[string]interface{}{
			"source":  source.Name(),
			"attempt": attempt,
			"error":   err.Error(),
		})

		if attempt == maxAttempts {
			break
		}

		delay := retryBaseDelay << (attempt - 1)
		delay += time.Duration(rand.Int63n(int64(delay / 2)))
		select {
		case <-ctx.Done():
			return Result{Err: ctx.Err(), Attempts: attempt}
		case <-time.After(delay):
		}
	}

	return Result{Err: lastErr, Attempts: maxAttempts}
}
