package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/rhuss/tradelens/pkg/debug"
)

// RetryConfig controls retries of temporary upstream failures.
type RetryConfig struct {
	// Attempts is the total number of tries, including the first. Values
	// below 1 mean a single try.
	Attempts int `yaml:"attempts"`

	// Delay is the base delay between tries. It doubles after each try.
	Delay time.Duration `yaml:"delay"`

	// MaxDelay caps the delay between tries.
	MaxDelay time.Duration `yaml:"max_delay"`
}

// DefaultRetryConfig returns the retry policy used when none is configured.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts: 3,
		Delay:    200 * time.Millisecond,
		MaxDelay: 2 * time.Second,
	}
}

// jsonClient performs JSON requests with retries. It is shared by the
// Pinecone, Qdrant and embedding clients.
type jsonClient struct {
	backend string
	http    *http.Client
	retry   RetryConfig
}

func newJSONClient(backend string, hc *http.Client, timeout time.Duration, rc RetryConfig) *jsonClient {
	if hc == nil {
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &jsonClient{backend: backend, http: hc, retry: rc}
}

// do sends in as the JSON body (nil for no body) and decodes a 2xx response
// into out. Non-2xx responses become *UpstreamError.
func (c *jsonClient) do(ctx context.Context, method, url string, header http.Header, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling %s request: %w", c.backend, err)
		}
	}

	attempts := c.retry.Attempts
	if attempts < 1 {
		attempts = 1
	}

	attempt := 0
	return retry.Do(
		func() error {
			attempt++
			return c.once(ctx, method, url, header, body, out, attempt)
		},
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.Delay(c.retry.Delay),
		retry.MaxDelay(c.retry.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil && IsRetryable(err)
		}),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			debug.Log("search", "retrying upstream request",
				"backend", c.backend, "attempt", n+1, "error", err)
		}),
	)
}

func (c *jsonClient) once(ctx context.Context, method, url string, header http.Header, body []byte, out any, attempt int) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return retry.Unrecoverable(fmt.Errorf("creating %s request: %w", c.backend, err))
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	if debug.TraceIsEnabled("search") {
		debug.Trace("search", "upstream request", "backend", c.backend, "method", method,
			"url", url, "attempt", attempt, "body", string(body))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", c.backend, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s response: %w", c.backend, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &UpstreamError{
			Backend:    c.backend,
			StatusCode: resp.StatusCode,
			Body:       debug.Truncate(string(respBody), 512),
		}
	}

	if debug.TraceIsEnabled("search") {
		debug.Trace("search", "upstream response", "backend", c.backend,
			"status", resp.StatusCode, "body", string(respBody))
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &decodeError{err: fmt.Errorf("parsing %s response: %w", c.backend, err)}
	}
	return nil
}
