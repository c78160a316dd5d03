// Package transport sends JSON requests to persistence backends with
// pluggable authentication.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/agentstation/stagehand/pkg/constants"
	"github.com/agentstation/stagehand/pkg/errors"
)

// DefaultHTTPTimeout is the default timeout for HTTP requests.
var DefaultHTTPTimeout = constants.DefaultHTTPTimeout

// Client provides HTTP client functionality with authentication.
type Client struct {
	http       *http.Client
	auth       Authenticator
	credential string
}

// New creates a new transport client with the specified authenticator.
// An empty credential sends no authentication.
func New(auth Authenticator, credential string) *Client {
	if auth == nil {
		auth = &NoAuth{}
	}
	return &Client{
		http:       &http.Client{Timeout: DefaultHTTPTimeout},
		auth:       auth,
		credential: credential,
	}
}

// WithHTTPClient returns a copy of the client that sends through hc.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	clone := *c
	clone.http = hc
	return &clone
}

// Do performs an HTTP request with authentication applied.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.credential != "" {
		c.auth.Apply(req, c.credential)
	}

	// Set common headers
	req.Header.Set("Accept", "application/json")
	if req.Method == http.MethodPost || req.Method == http.MethodPut || req.Method == http.MethodPatch {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req.WithContext(ctx))
	if err != nil {
		return nil, classify(ctx, req.URL.String(), err)
	}
	return resp, nil
}

// SendJSON encodes body as JSON and sends it with the given method.
func (c *Client) SendJSON(ctx context.Context, method, url string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, errors.WrapParse("json", "request", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return nil, errors.WrapResource("create", "request", method+" "+url, err)
	}
	return c.Do(ctx, req)
}

// classify maps transport failures onto the package sentinels.
func classify(ctx context.Context, url string, err error) error {
	switch {
	case stderrors.Is(ctx.Err(), context.Canceled):
		return fmt.Errorf("%w: %w", errors.ErrCanceled, err)
	case stderrors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", errors.ErrTimeout, err)
	}
	var timeout interface{ Timeout() bool }
	if stderrors.As(err, &timeout) && timeout.Timeout() {
		return fmt.Errorf("%w: %w", errors.ErrTimeout, err)
	}
	return &errors.APIError{
		Endpoint: url,
		Message:  "request failed",
		Err:      fmt.Errorf("%w: %w", errors.ErrBackendUnavailable, err),
	}
}
