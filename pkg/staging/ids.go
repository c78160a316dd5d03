package staging

import (
	"cmp"
	"strconv"

	"github.com/google/uuid"

	"github.com/agentstation/stagehand/pkg/constants"
)

// IDGenerator produces temporary ids for staged additions.
// Ids only need to be unique among the currently pending additions; the
// engine skips any id that collides with a known one.
type IDGenerator[K cmp.Ordered] interface {
	// Next returns the next candidate id.
	Next() K
	// Reset restarts the sequence. Called when pending state is cleared.
	Reset()
}

// Counter generates monotonically increasing temporary ids.
// String keys look like "tmp-1", signed integer keys count down from -1 so
// they never collide with database sequences.
type Counter[K cmp.Ordered] struct {
	n int
}

// Next implements IDGenerator.
func (c *Counter[K]) Next() K {
	c.n++
	id, _ := counterID[K](c.n)
	return id
}

// Reset implements IDGenerator.
func (c *Counter[K]) Reset() {
	c.n = 0
}

// counterID converts the n-th counter value into a key of type K.
// It reports false for key types the counter cannot represent.
func counterID[K cmp.Ordered](n int) (K, bool) {
	var id K
	switch p := any(&id).(type) {
	case *string:
		*p = constants.TempIDPrefix + strconv.Itoa(n)
	case *int:
		*p = -n
	case *int8:
		*p = int8(-n) //nolint:gosec // wraps only past 127 pending additions
	case *int16:
		*p = int16(-n) //nolint:gosec // see above
	case *int32:
		*p = int32(-n) //nolint:gosec // see above
	case *int64:
		*p = int64(-n)
	default:
		return id, false
	}
	return id, true
}

// uuidGenerator generates random UUID strings.
type uuidGenerator struct{}

// UUIDs returns a generator of random UUIDv4 temporary ids.
func UUIDs() IDGenerator[string] {
	return uuidGenerator{}
}

func (uuidGenerator) Next() string { return uuid.NewString() }

func (uuidGenerator) Reset() {}

// GeneratorFunc adapts a function to IDGenerator. Reset is a no-op.
type GeneratorFunc[K cmp.Ordered] func() K

// Next implements IDGenerator.
func (f GeneratorFunc[K]) Next() K { return f() }

// Reset implements IDGenerator.
func (f GeneratorFunc[K]) Reset() {}
