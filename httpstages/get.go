package httpstages

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/dcshock/runqueue/future"
	"github.com/dcshock/runqueue/pipeline"
)

// StatusError reports a response outside the 2xx range.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http get %q: status %d", e.URL, e.Code)
}

// FetchFuture issues a GET for url and returns a future for the fully buffered
// response body ([]byte). Transport failures and 5xx responses are marked with
// pipeline.RetryableErr so they can be retried with pipeline.Retry and
// pipeline.IsRetryable. If client is nil, http.DefaultClient is used.
func FetchFuture(ctx context.Context, client *http.Client, url string) *future.Future {
	if client == nil {
		client = http.DefaultClient
	}
	return future.Go(ctx, func(ctx context.Context) (interface{}, error) {
		return fetch(ctx, client, url)
	})
}

func fetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("http get: new request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, pipeline.RetryableErr(fmt.Errorf("http get %q: %w", url, err))
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		serr := &StatusError{URL: url, Code: resp.StatusCode}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, pipeline.RetryableErr(serr)
		}
		return nil, serr
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("http get %q: read body: %w", url, err)
	}
	return body, nil
}

// Get returns a handler that fetches the fixed url, ignoring its input. The
// handler's value is the pending future, which the run awaits.
func Get(client *http.Client, url string) pipeline.SuccessFunc {
	return func(ctx context.Context, _ *pipeline.Pipeline, _ interface{}) (interface{}, error) {
		return FetchFuture(ctx, client, url), nil
	}
}

// Fetch returns a handler that fetches the URL given as input (a string) and
// produces the response body.
func Fetch(client *http.Client) pipeline.SuccessFunc {
	return func(ctx context.Context, _ *pipeline.Pipeline, input interface{}) (interface{}, error) {
		url, ok := input.(string)
		if !ok {
			return nil, fmt.Errorf("http fetch: input must be URL string, got %T", input)
		}
		return FetchFuture(ctx, client, url), nil
	}
}
