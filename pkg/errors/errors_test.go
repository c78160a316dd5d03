package errors_test

import (
	"errors"
	"testing"

	pkgerrors "github.com/agentstation/stagehand/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := pkgerrors.New("test error")
	assert.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestNotFoundError(t *testing.T) {
	t.Run("basic error", func(t *testing.T) {
		err := &pkgerrors.NotFoundError{
			Resource: "item",
			ID:       "A",
		}
		assert.Equal(t, "item with ID A not found", err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrNotFound))
	})

	t.Run("numeric id", func(t *testing.T) {
		err := pkgerrors.NewNotFoundError("item", 42)
		assert.Equal(t, "item with ID 42 not found", err.Error())
		assert.True(t, pkgerrors.IsNotFound(err))
	})

	t.Run("wrapped error", func(t *testing.T) {
		base := pkgerrors.NewNotFoundError("session", "draft")
		wrapped := errors.Join(errors.New("failed"), base)
		assert.True(t, pkgerrors.IsNotFound(wrapped))
	})
}

func TestAlreadyExistsError(t *testing.T) {
	err := pkgerrors.NewAlreadyExistsError("session", "po-42")
	assert.Equal(t, "session with ID po-42 already exists", err.Error())
	assert.True(t, pkgerrors.IsAlreadyExists(err))
	assert.False(t, pkgerrors.IsNotFound(err))
}

func TestValidationError(t *testing.T) {
	t.Run("with field", func(t *testing.T) {
		err := &pkgerrors.ValidationError{
			Field:   "id",
			Message: "duplicate id A",
		}
		assert.Equal(t, "validation failed for field id: duplicate id A", err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrInvalidInput))
	})

	t.Run("without field", func(t *testing.T) {
		err := &pkgerrors.ValidationError{
			Message: "invalid configuration",
		}
		assert.Equal(t, "validation failed: invalid configuration", err.Error())
		assert.True(t, pkgerrors.IsValidationError(err))
	})

	t.Run("constructor", func(t *testing.T) {
		err := pkgerrors.NewValidationError("qty", -1, "must be positive")
		assert.Contains(t, err.Error(), "qty")
		assert.Equal(t, -1, err.Value)
	})
}

func TestAPIError(t *testing.T) {
	tests := []struct {
		status int
		target error
	}{
		{429, pkgerrors.ErrRateLimited},
		{401, pkgerrors.ErrUnauthorized},
		{403, pkgerrors.ErrUnauthorized},
		{404, pkgerrors.ErrNotFound},
		{422, pkgerrors.ErrInvalidInput},
		{502, pkgerrors.ErrBackendUnavailable},
	}
	for _, tt := range tests {
		err := pkgerrors.NewAPIError("https://erp.example.com/items", tt.status, "boom")
		assert.True(t, errors.Is(err, tt.target), "status %d", tt.status)
		assert.Contains(t, err.Error(), "https://erp.example.com/items")
	}

	t.Run("no status", func(t *testing.T) {
		baseErr := errors.New("connection refused")
		err := &pkgerrors.APIError{Endpoint: "erp", Message: "request failed", Err: baseErr}
		assert.Equal(t, "API error from erp: request failed", err.Error())
		assert.Equal(t, baseErr, err.Unwrap())
		assert.False(t, pkgerrors.IsBackendUnavailable(err))
	})
}

func TestSubmitError(t *testing.T) {
	apiErr := pkgerrors.NewAPIError("erp", 503, "maintenance")
	err := pkgerrors.NewSubmitError(3, apiErr)
	assert.Contains(t, err.Error(), "3 staged change(s)")
	assert.True(t, pkgerrors.IsBackendUnavailable(err))

	var target *pkgerrors.APIError
	require.True(t, errors.As(err, &target))
	assert.Equal(t, 503, target.StatusCode)
}

func TestResponseError(t *testing.T) {
	parseErr := pkgerrors.NewParseError("json", "response", "invalid character", nil)
	err := pkgerrors.NewResponseError("https://erp.example.com/orders", parseErr)
	assert.Contains(t, err.Error(), "accepted the write")

	var target *pkgerrors.ParseError
	assert.True(t, errors.As(err, &target))
	var submitErr *pkgerrors.SubmitError
	assert.False(t, errors.As(err, &submitErr))
}

func TestConfigError(t *testing.T) {
	err := pkgerrors.NewConfigError("staging", "unknown update mode \"diff\"", nil)
	assert.Contains(t, err.Error(), "staging")
	assert.True(t, pkgerrors.IsValidationError(err))
	assert.Nil(t, err.Unwrap())
}

func TestParseError(t *testing.T) {
	t.Run("with file and position", func(t *testing.T) {
		err := &pkgerrors.ParseError{
			Format:  "yaml",
			File:    "items.yaml",
			Line:    10,
			Column:  5,
			Message: "unexpected token",
		}
		assert.Contains(t, err.Error(), "items.yaml:10:5")
	})

	t.Run("format only", func(t *testing.T) {
		err := &pkgerrors.ParseError{Format: "msgpack", Message: "short buffer"}
		assert.Equal(t, "msgpack parse error: short buffer", err.Error())
		assert.True(t, pkgerrors.IsValidationError(err))
	})

	t.Run("wrap", func(t *testing.T) {
		baseErr := errors.New("EOF")
		wrapped := pkgerrors.WrapParse("json", "items.json", baseErr)
		parseErr, ok := wrapped.(*pkgerrors.ParseError)
		require.True(t, ok)
		assert.Equal(t, "items.json", parseErr.File)
		assert.Equal(t, baseErr, parseErr.Unwrap())
	})
}

func TestWrapHelpers(t *testing.T) {
	assert.Nil(t, pkgerrors.WrapValidation("field", nil))
	assert.Nil(t, pkgerrors.WrapIO("read", "file", nil))
	assert.Nil(t, pkgerrors.WrapResource("load", "session", "x", nil))
	assert.Nil(t, pkgerrors.WrapParse("yaml", "file.yaml", nil))
	assert.Nil(t, pkgerrors.WrapAPI("erp", 200, nil))

	err := pkgerrors.WrapResource("load", "session", "po-42", pkgerrors.ErrNotFound)
	assert.True(t, pkgerrors.IsNotFound(err))
	assert.Contains(t, err.Error(), "failed to load session po-42")

	ioErr := pkgerrors.WrapIO("open", "/tmp/drafts", errors.New("locked"))
	var target *pkgerrors.IOError
	require.True(t, errors.As(ioErr, &target))
	assert.Equal(t, "open", target.Operation)

	api := pkgerrors.WrapAPI("erp", 500, errors.New("down"))
	assert.True(t, pkgerrors.IsBackendUnavailable(api))
}
