// Package submit sends an engine's staged operations to a persistence
// backend and rebases the engine on what the backend returns.
//
// Example usage:
//
//	backend := submit.NewHTTPBackend[string, record.Record]("https://api.example.com/items",
//	    submit.WithToken(os.Getenv("API_TOKEN")))
//	sent, err := submit.New(backend).Submit(ctx, engine)
//	if errors.IsRateLimited(err) {
//	    // the engine is untouched, retry later with the same payload
//	}
package submit

import (
	"cmp"
	"context"

	"github.com/rs/zerolog"

	"github.com/agentstation/stagehand/pkg/errors"
	"github.com/agentstation/stagehand/pkg/logging"
	"github.com/agentstation/stagehand/pkg/staging"
)

// Backend persists a payload in one write and returns the fresh baseline.
// A nil list means the backend does not echo the collection back.
type Backend[K cmp.Ordered, E any] interface {
	Save(ctx context.Context, payload staging.Payload[K, E]) ([]E, error)
}

// BackendFunc allows functions to implement Backend.
type BackendFunc[K cmp.Ordered, E any] func(context.Context, staging.Payload[K, E]) ([]E, error)

// Save implements the Backend interface.
func (f BackendFunc[K, E]) Save(ctx context.Context, payload staging.Payload[K, E]) ([]E, error) {
	return f(ctx, payload)
}

// Submitter drives one save of an engine's staged operations.
type Submitter[K cmp.Ordered, E any] struct {
	backend Backend[K, E]
	logger  *zerolog.Logger
}

// Option configures a Submitter.
type Option func(*options)

type options struct {
	logger *zerolog.Logger
}

// WithLogger sets the logger for submit events.
func WithLogger(logger *zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New creates a Submitter for backend.
func New[K cmp.Ordered, E any](backend Backend[K, E], opts ...Option) *Submitter[K, E] {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logging.NewNopLogger()
	}
	return &Submitter[K, E]{backend: backend, logger: o.logger}
}

// Submit sends the engine's payload. A clean engine makes no call. On success
// the engine is rebased on the returned list, or reset when the backend
// returns none. On failure the engine is left as it was and the error is a
// *errors.SubmitError wrapping the backend error, so resubmitting sends the
// same payload. A backend that accepted the write but whose response is
// unreadable returns an *errors.ResponseError; the engine is reset and that
// error returned. Submit returns the payload it sent.
func (s *Submitter[K, E]) Submit(ctx context.Context, engine *staging.Engine[K, E]) (staging.Payload[K, E], error) {
	payload := engine.Payload()
	if payload.IsEmpty() {
		s.logger.Debug().Msg("Nothing staged, skipping submit")
		return payload, nil
	}

	if err := ctx.Err(); err != nil {
		return payload, errors.NewSubmitError(payload.Len(), err)
	}

	logger := s.logger.With().
		Int("add", len(payload.Add)).
		Int("update", len(payload.Update)).
		Int("remove", len(payload.Remove)).
		Logger()
	logger.Info().Msg("Submitting staged changes")

	fresh, err := s.backend.Save(ctx, payload)
	var unreadable *errors.ResponseError
	if errors.As(err, &unreadable) {
		// the write landed, only the fresh list is missing
		engine.Reset()
		logger.Warn().Err(err).Msg("Backend response unreadable, staged changes cleared")
		return payload, err
	}
	if err != nil {
		logger.Warn().Err(err).Msg("Submit failed, staged changes kept")
		return payload, errors.NewSubmitError(payload.Len(), err)
	}

	if fresh == nil {
		engine.Reset()
		logger.Info().Msg("Submit succeeded, staged changes cleared")
		return payload, nil
	}
	if err := engine.SetBaseline(fresh); err != nil {
		// the write landed, but the returned list is unusable as a baseline
		engine.Reset()
		logger.Warn().Err(err).Msg("Backend returned an invalid baseline")
		return payload, errors.WrapValidation("baseline", err)
	}
	logger.Info().Int("baseline", len(fresh)).Msg("Submit succeeded, baseline refreshed")
	return payload, nil
}
