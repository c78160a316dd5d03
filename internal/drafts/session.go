// Package drafts persists named staging sessions between CLI invocations.
//
// A session is the serialized state of one engine over a list of records:
// its baseline plus every staged operation. Sessions are stored msgpack
// encoded in a badger database, or in memory for tests.
package drafts

import (
	"context"
	"regexp"

	"github.com/agentstation/utc"

	"github.com/agentstation/stagehand/pkg/errors"
	"github.com/agentstation/stagehand/pkg/record"
	"github.com/agentstation/stagehand/pkg/staging"
)

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// Session is a named engine snapshot.
type Session struct {
	Name      string                                  `json:"name" yaml:"name"`
	Endpoint  string                                  `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	CreatedAt utc.Time                                `json:"created_at" yaml:"created_at"`
	UpdatedAt utc.Time                                `json:"updated_at" yaml:"updated_at"`
	State     staging.Snapshot[string, record.Record] `json:"state" yaml:"state"`
}

// NewSession starts a clean session over baseline.
func NewSession(name, endpoint string, baseline []record.Record) (Session, error) {
	if err := ValidateName(name); err != nil {
		return Session{}, err
	}
	now := utc.Now()
	return Session{
		Name:      name,
		Endpoint:  endpoint,
		CreatedAt: now,
		UpdatedAt: now,
		State:     staging.Snapshot[string, record.Record]{Baseline: baseline},
	}, nil
}

// ValidateName checks that name is usable as a session key.
func ValidateName(name string) error {
	if !validName.MatchString(name) {
		return errors.NewValidationError("name", name, "session names use letters, digits, '.', '_' and '-'")
	}
	return nil
}

// Engine rebuilds the session's engine.
func (s Session) Engine(opts ...staging.Option) (*staging.Engine[string, record.Record], error) {
	return staging.FromSnapshot(s.State, record.Key, opts...)
}

// Capture stores the engine state in the session.
func (s *Session) Capture(engine *staging.Engine[string, record.Record]) {
	s.State = engine.Snapshot()
	s.UpdatedAt = utc.Now()
}

// Store persists sessions by name.
type Store interface {
	// Create saves a new session and fails with ErrAlreadyExists when the
	// name is taken.
	Create(ctx context.Context, s Session) error
	// Save creates or replaces a session.
	Save(ctx context.Context, s Session) error
	// Load returns a session or fails with ErrNotFound.
	Load(ctx context.Context, name string) (Session, error)
	// Delete removes a session or fails with ErrNotFound.
	Delete(ctx context.Context, name string) error
	// List returns all sessions sorted by name.
	List(ctx context.Context) ([]Session, error)
	// Close releases the store.
	Close() error
}
