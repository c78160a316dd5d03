package submit

import (
	"cmp"
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/agentstation/stagehand/internal/transport"
	"github.com/agentstation/stagehand/pkg/errors"
	"github.com/agentstation/stagehand/pkg/logging"
	"github.com/agentstation/stagehand/pkg/staging"
)

// HTTPBackend sends the payload as JSON to an endpoint and reads the fresh
// collection from the response. The response is either a list, an object
// with the list under "items", or empty. Any other body on a 2xx status
// yields an *errors.ResponseError.
type HTTPBackend[K cmp.Ordered, E any] struct {
	endpoint string
	method   string
	client   *transport.Client
	logger   *zerolog.Logger
}

// HTTPOption configures an HTTPBackend.
type HTTPOption func(*httpOptions)

type httpOptions struct {
	method     string
	auth       transport.Authenticator
	credential string
	httpClient *http.Client
	logger     *zerolog.Logger
}

// WithMethod sets the HTTP method. The default is POST.
func WithMethod(method string) HTTPOption {
	return func(o *httpOptions) {
		o.method = method
	}
}

// WithToken authenticates with a bearer token.
func WithToken(token string) HTTPOption {
	return func(o *httpOptions) {
		o.auth = &transport.BearerAuth{}
		o.credential = token
	}
}

// WithAuth authenticates with a custom scheme.
func WithAuth(auth transport.Authenticator, credential string) HTTPOption {
	return func(o *httpOptions) {
		o.auth = auth
		o.credential = credential
	}
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(o *httpOptions) {
		o.httpClient = hc
	}
}

// WithHTTPLogger sets the logger for request events.
func WithHTTPLogger(logger *zerolog.Logger) HTTPOption {
	return func(o *httpOptions) {
		o.logger = logger
	}
}

// NewHTTPBackend creates a backend for endpoint.
func NewHTTPBackend[K cmp.Ordered, E any](endpoint string, opts ...HTTPOption) *HTTPBackend[K, E] {
	o := &httpOptions{method: http.MethodPost}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logging.NewNopLogger()
	}

	client := transport.New(o.auth, o.credential)
	if o.httpClient != nil {
		client = client.WithHTTPClient(o.httpClient)
	}

	return &HTTPBackend[K, E]{
		endpoint: endpoint,
		method:   o.method,
		client:   client,
		logger:   o.logger,
	}
}

// Save implements Backend.
func (b *HTTPBackend[K, E]) Save(ctx context.Context, payload staging.Payload[K, E]) ([]E, error) {
	if b.endpoint == "" {
		return nil, errors.NewConfigError("submit", "no endpoint configured", nil)
	}

	b.logger.Debug().
		Str("endpoint", b.endpoint).
		Str("method", b.method).
		Int("changes", payload.Len()).
		Msg("Sending payload")

	resp, err := b.client.SendJSON(ctx, b.method, b.endpoint, payload)
	if err != nil {
		return nil, err
	}

	accepted := resp.StatusCode >= 200 && resp.StatusCode <= 299
	var body json.RawMessage
	ok, err := transport.DecodeResponse(resp, b.endpoint, &body, b.logger)
	if err != nil {
		if accepted {
			return nil, errors.NewResponseError(b.endpoint, err)
		}
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	items, err := decodeItems[E](body)
	if err != nil {
		return nil, errors.NewResponseError(b.endpoint, err)
	}
	return items, nil
}

// decodeItems reads a list, or an object holding the list under "items".
func decodeItems[E any](body json.RawMessage) ([]E, error) {
	if len(body) > 0 && body[0] == '{' {
		var envelope struct {
			Items []E `json:"items"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, errors.WrapParse("json", "response", err)
		}
		if envelope.Items == nil {
			return nil, nil
		}
		return envelope.Items, nil
	}

	var items []E
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, errors.WrapParse("json", "response", err)
	}
	if items == nil {
		// "null" response
		return nil, nil
	}
	return items, nil
}
