package evidence

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// RetryConfig bounds the retry behavior around evidence store calls.
type RetryConfig struct {
	// Attempts is the total number of tries, including the first.
	// Default: 3
	Attempts int `yaml:"attempts"`

	// BaseDelay is the backoff before the second attempt; it doubles for
	// each further attempt. Default: 500ms
	BaseDelay time.Duration `yaml:"base_delay"`

	// MaxDelay caps the backoff between attempts. Default: 5s
	MaxDelay time.Duration `yaml:"max_delay"`
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts:  3,
		BaseDelay: 500 * time.Millisecond,
		MaxDelay:  5 * time.Second,
	}
}

// DoWithRetry issues an HTTP request with bounded retries. The build
// function constructs a fresh request per attempt so bodies are replayable.
//
// Transport errors and 5xx responses are retryable; 4xx responses are not.
// Exhaustion surfaces a *FetchError, never a panic or an untyped error.
func DoWithRetry(ctx context.Context, client *http.Client, cfg RetryConfig, store string, logger *slog.Logger, build func(ctx context.Context) (*http.Request, error)) (*http.Response, error) {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}

	var lastErr error
	lastStatus := 0
	delay := cfg.BaseDelay

	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, &FetchError{Store: store, Kind: FailureRetryable, StatusCode: lastStatus, Err: ctx.Err()}
			case <-time.After(delay):
			}
			delay *= 2
			if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		}

		req, err := build(ctx)
		if err != nil {
			return nil, &FetchError{Store: store, Kind: FailureNonRetryable, Err: err}
		}

		resp, err := client.Do(req)
		if err != nil {
			// Connection failures and timeouts are retryable.
			lastErr = err
			logger.Warn("evidence store request failed",
				"store", store,
				"attempt", attempt,
				"error", err,
			)
			continue
		}

		if resp.StatusCode >= 500 {
			lastStatus = resp.StatusCode
			lastErr = fmt.Errorf("server error: %s", resp.Status)
			drain(resp)
			logger.Warn("evidence store returned server error",
				"store", store,
				"attempt", attempt,
				"status", resp.StatusCode,
			)
			continue
		}

		if resp.StatusCode >= 400 {
			status := resp.StatusCode
			drain(resp)
			return nil, &FetchError{
				Store:      store,
				Kind:       FailureNonRetryable,
				StatusCode: status,
				Err:        fmt.Errorf("client error: %d %s", status, http.StatusText(status)),
			}
		}

		return resp, nil
	}

	return nil, &FetchError{
		Store:      store,
		Kind:       FailureRetryable,
		StatusCode: lastStatus,
		Err:        fmt.Errorf("%d attempts exhausted: %w", cfg.Attempts, lastErr),
	}
}

// drain discards and closes a response body so the connection can be reused.
func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck
	resp.Body.Close()                                    //nolint:errcheck
}
