package staging

import (
	"cmp"

	"github.com/rs/zerolog"
)

// UpdateMode controls what an update entry in the payload carries.
type UpdateMode string

const (
	// UpdatePartial sends only the changed fields plus the id.
	UpdatePartial UpdateMode = "partial"
	// UpdateFull sends every field of the merged entity.
	UpdateFull UpdateMode = "full"
)

// Position controls where pending additions appear in Visible.
type Position string

const (
	// Prepend puts pending additions first, newest first.
	Prepend Position = "prepend"
	// Append puts pending additions last, in staging order.
	Append Position = "append"
)

// ParseUpdateMode converts a string to an UpdateMode.
func ParseUpdateMode(s string) (UpdateMode, bool) {
	switch UpdateMode(s) {
	case UpdatePartial, "":
		return UpdatePartial, true
	case UpdateFull:
		return UpdateFull, true
	}
	return "", false
}

// ParsePosition converts a string to a Position.
func ParsePosition(s string) (Position, bool) {
	switch Position(s) {
	case Prepend, "":
		return Prepend, true
	case Append:
		return Append, true
	}
	return "", false
}

// options collects engine settings before the key and entity types are bound.
type options struct {
	ids      any // IDGenerator[K]
	patcher  any // Patcher[E]
	mode     UpdateMode
	position Position
	logger   *zerolog.Logger
}

// Option is a functional option for configuring an Engine.
type Option func(*options)

// WithIDGenerator sets the temporary id generator for staged additions.
func WithIDGenerator[K cmp.Ordered](g IDGenerator[K]) Option {
	return func(o *options) {
		o.ids = g
	}
}

// WithPatcher sets how patches are applied to entities.
func WithPatcher[E any](p Patcher[E]) Option {
	return func(o *options) {
		o.patcher = p
	}
}

// WithUpdateMode sets the update payload contract.
func WithUpdateMode(mode UpdateMode) Option {
	return func(o *options) {
		o.mode = mode
	}
}

// WithAddedPosition sets where pending additions are placed in Visible.
func WithAddedPosition(position Position) Option {
	return func(o *options) {
		o.position = position
	}
}

// WithLogger sets the logger used for staging events.
func WithLogger(logger *zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
