package openphone

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// retryDelay is the fixed pause between attempts on a failed page request.
const retryDelay = time.Second

// Stream walks a cursor-paginated endpoint and sends each decoded record
// as soon as its page is read, so consumers observe partial progress.
//
// Failed requests are retried forever with a fixed 1s delay: a transient
// fault never surfaces to the consumer, and a permanently broken endpoint
// or credential loops until the context is cancelled. Callers needing a
// ceiling must impose one through ctx. The fetch terminates only when a
// page succeeds and carries no continuation cursor.
//
// The error channel receives at most one error, and only for context
// cancellation. Both channels are closed when the stream ends. A stream
// is not restartable; each call re-walks from the first page.
func Stream[T any](ctx context.Context, c Client, endpoint string, params url.Values) (<-chan T, <-chan error) {
	out := make(chan T, 64)
	errCh := make(chan error, 1)

	p := url.Values{}
	for k, vs := range params {
		p[k] = vs
	}

	go func() {
		defer close(out)
		defer close(errCh)

		for {
			page, err := c.GetPage(ctx, endpoint, p)
			if err != nil {
				if ctx.Err() != nil {
					errCh <- eris.Wrapf(ctx.Err(), "openphone: stream %s cancelled", endpoint)
					return
				}
				zap.L().Warn("page request failed, retrying",
					zap.String("endpoint", endpoint),
					zap.Error(err),
				)
				select {
				case <-ctx.Done():
					errCh <- eris.Wrapf(ctx.Err(), "openphone: stream %s cancelled", endpoint)
					return
				case <-time.After(retryDelay):
				}
				continue
			}

			for _, raw := range page.Data {
				var v T
				if err := json.Unmarshal(raw, &v); err != nil {
					zap.L().Warn("skipping undecodable record",
						zap.String("endpoint", endpoint),
						zap.ByteString("payload", raw),
						zap.Error(err),
					)
					continue
				}
				select {
				case out <- v:
				case <-ctx.Done():
					errCh <- eris.Wrapf(ctx.Err(), "openphone: stream %s cancelled", endpoint)
					return
				}
			}

			if page.NextPageToken == "" {
				return
			}
			p.Set("pageToken", page.NextPageToken)
		}
	}()

	return out, errCh
}

// First returns the first record produced by the endpoint and abandons the
// rest of the stream.
func First[T any](ctx context.Context, c Client, endpoint string, params url.Values) (T, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var zero T
	out, errCh := Stream[T](ctx, c, endpoint, params)
	for v := range out {
		cancel()
		drain(out)
		return v, nil
	}
	if err := <-errCh; err != nil {
		return zero, err
	}
	return zero, eris.Errorf("openphone: no records from %s", endpoint)
}

func drain[T any](ch <-chan T) {
	for range ch {
	}
}
