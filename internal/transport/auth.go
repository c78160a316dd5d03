package transport

import (
	"net/http"
	"strings"

	"github.com/agentstation/stagehand/pkg/errors"
)

// Authenticator applies authentication to HTTP requests.
type Authenticator interface {
	Apply(req *http.Request, credential string)
}

// NoAuth implements no authentication.
type NoAuth struct{}

// Apply implements the Authenticator interface for NoAuth.
func (a *NoAuth) Apply(_ *http.Request, _ string) {
	// No authentication applied
}

// BearerAuth implements Bearer token authentication.
type BearerAuth struct{}

// Apply implements the Authenticator interface for BearerAuth.
func (a *BearerAuth) Apply(req *http.Request, credential string) {
	req.Header.Set("Authorization", "Bearer "+credential)
}

// BasicAuth sends the credential as a pre-encoded Basic value.
type BasicAuth struct{}

// Apply implements the Authenticator interface for BasicAuth.
func (a *BasicAuth) Apply(req *http.Request, credential string) {
	req.Header.Set("Authorization", "Basic "+credential)
}

// HeaderAuth implements custom header authentication.
type HeaderAuth struct {
	Header string
}

// Apply implements the Authenticator interface for HeaderAuth.
func (a *HeaderAuth) Apply(req *http.Request, credential string) {
	req.Header.Set(a.Header, credential)
}

// QueryAuth implements credential as query parameter authentication.
type QueryAuth struct {
	Param string
}

// Apply implements the Authenticator interface for QueryAuth.
func (a *QueryAuth) Apply(req *http.Request, credential string) {
	if req.URL == nil {
		return
	}

	// Parse existing query parameters
	query := req.URL.Query()
	query.Set(a.Param, credential)
	req.URL.RawQuery = query.Encode()
}

// ParseScheme returns the authenticator for a configured scheme:
// "" or "bearer", "basic", "none", "header:NAME" or "query:PARAM".
func ParseScheme(scheme string) (Authenticator, error) {
	kind, arg, _ := strings.Cut(scheme, ":")
	switch strings.ToLower(kind) {
	case "", "bearer":
		return &BearerAuth{}, nil
	case "basic":
		return &BasicAuth{}, nil
	case "none":
		return &NoAuth{}, nil
	case "header":
		if arg == "" {
			return nil, errors.NewValidationError("auth_scheme", scheme, "header scheme needs a header name")
		}
		return &HeaderAuth{Header: arg}, nil
	case "query":
		if arg == "" {
			return nil, errors.NewValidationError("auth_scheme", scheme, "query scheme needs a parameter name")
		}
		return &QueryAuth{Param: arg}, nil
	}
	return nil, errors.NewValidationError("auth_scheme", scheme, "unknown authentication scheme")
}
