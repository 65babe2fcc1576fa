// Package retrypkg re-runs short units of work that failed with a transient error.
package retrypkg

import (
	"context"
	"errors"
)

// Do calls fn until it succeeds, returns an error that is not retryable, or attempts
// are exhausted. The last error is returned unchanged. Attempts below 1 are treated as 1.
//
// The context is checked between attempts; a done context stops the loop with ctx.Err().
func Do(ctx context.Context, attempts int, retryable error, fn func(attempt int) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error

	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(attempt)
		if err == nil || !errors.Is(err, retryable) {
			return err
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}

	return err
}
