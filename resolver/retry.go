package resolver

import (
	"context"
	"time"

	"github.com/dpup/driverhub/errors"
	"github.com/dpup/driverhub/library"
	"github.com/sethvargo/go-retry"
	"google.golang.org/grpc/codes"
)

const defaultBackoff = 500 * time.Millisecond

// Retrying retries transient download failures with exponential backoff.
type Retrying struct {
	inner   Downloader
	retries uint64
	backoff time.Duration
}

// WithRetry wraps d so that failed fetches are retried up to retries times.
// Cancellation and missing libraries are returned immediately.
func WithRetry(d Downloader, retries int, backoff time.Duration) *Retrying {
	if retries < 0 {
		retries = 0
	}
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	return &Retrying{inner: d, retries: uint64(retries), backoff: backoff} // #nosec G115 -- retries is non-negative
}

func (r *Retrying) Fetch(ctx context.Context, req *FetchRequest) (map[string]string, error) {
	var out map[string]string
	b := retry.WithMaxRetries(r.retries, retry.NewExponential(r.backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		var err error
		out, err = r.inner.Fetch(ctx, req)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Versions delegates to the wrapped downloader when it can list versions.
func (r *Retrying) Versions(ctx context.Context, lib *library.Library) ([]string, error) {
	if l, ok := r.inner.(VersionLister); ok {
		return l.Versions(ctx, lib)
	}
	return nil, nil
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrDownloadCancelled) {
		return false
	}
	switch errors.Code(err) {
	case codes.NotFound, codes.FailedPrecondition, codes.Canceled:
		return false
	}
	return true
}
