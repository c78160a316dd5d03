package transport

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/agentstation/stagehand/pkg/constants"
	"github.com/agentstation/stagehand/pkg/errors"
)

// maxErrorMessage bounds how much of an error body ends up in an APIError.
const maxErrorMessage = 512

// DecodeResponse decodes a JSON response into target. Non-2xx responses
// become an *errors.APIError. An empty body leaves target untouched and
// reports false.
func DecodeResponse(resp *http.Response, endpoint string, target any, logger *zerolog.Logger) (bool, error) {
	defer func() {
		if err := resp.Body.Close(); err != nil && logger != nil {
			// Log warning but don't override the main error
			logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Failed to close response body")
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, constants.MaxResponseBytes))
	if err != nil {
		return false, errors.WrapIO("read", "response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, errors.NewAPIError(endpoint, resp.StatusCode, errorMessage(resp, body))
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return false, errors.WrapParse("json", "response", err)
	}
	return true, nil
}

// errorMessage picks a readable message out of an error response.
func errorMessage(resp *http.Response, body []byte) string {
	var envelope struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &envelope) == nil {
		switch {
		case envelope.Message != "":
			return envelope.Message
		case envelope.Error != nil:
			if s, ok := envelope.Error.(string); ok {
				return s
			}
		}
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return http.StatusText(resp.StatusCode)
	}
	if len(msg) > maxErrorMessage {
		msg = msg[:maxErrorMessage] + "..."
	}
	return msg
}
