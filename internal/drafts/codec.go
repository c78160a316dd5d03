package drafts

import (
	"bytes"
	"time"

	"github.com/agentstation/utc"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/agentstation/stagehand/pkg/errors"
	"github.com/agentstation/stagehand/pkg/record"
	"github.com/agentstation/stagehand/pkg/staging"
)

// codecVersion is bumped whenever the stored layout changes.
const codecVersion = 1

// storedSession is the on-disk layout of a session.
type storedSession struct {
	Version   int                                     `msgpack:"v"`
	Name      string                                  `msgpack:"name"`
	Endpoint  string                                  `msgpack:"endpoint,omitempty"`
	CreatedAt time.Time                               `msgpack:"created_at"`
	UpdatedAt time.Time                               `msgpack:"updated_at"`
	State     staging.Snapshot[string, record.Record] `msgpack:"state"`
}

func encodeSession(s Session) ([]byte, error) {
	data, err := msgpack.Marshal(&storedSession{
		Version:   codecVersion,
		Name:      s.Name,
		Endpoint:  s.Endpoint,
		CreatedAt: s.CreatedAt.Time,
		UpdatedAt: s.UpdatedAt.Time,
		State:     s.State,
	})
	if err != nil {
		return nil, errors.WrapParse("msgpack", s.Name, err)
	}
	return data, nil
}

func decodeSession(data []byte) (Session, error) {
	var stored storedSession
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	// numbers come back as int64, uint64 or float64 instead of the
	// smallest fitting type
	dec.UseLooseInterfaceDecoding(true)
	if err := dec.Decode(&stored); err != nil {
		return Session{}, errors.WrapParse("msgpack", "session", err)
	}
	if stored.Version != codecVersion {
		return Session{}, errors.NewParseError("msgpack", stored.Name, "unsupported session version", nil)
	}
	return Session{
		Name:      stored.Name,
		Endpoint:  stored.Endpoint,
		CreatedAt: utc.New(stored.CreatedAt),
		UpdatedAt: utc.New(stored.UpdatedAt),
		State:     stored.State,
	}, nil
}
