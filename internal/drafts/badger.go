package drafts

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/agentstation/stagehand/pkg/constants"
	"github.com/agentstation/stagehand/pkg/errors"
	"github.com/agentstation/stagehand/pkg/logging"
)

// keyPrefix namespaces session keys in the database.
const keyPrefix = "session/"

// BadgerStore keeps sessions in a badger database.
type BadgerStore struct {
	db     *badger.DB
	dir    string
	logger *zerolog.Logger
}

type badgerConfig struct {
	inMemory bool
	logger   *zerolog.Logger
}

// BadgerOption customizes how badger is opened.
type BadgerOption func(*badgerConfig)

// WithInMemory keeps the database in memory. The directory is ignored.
func WithInMemory() BadgerOption {
	return func(cfg *badgerConfig) {
		cfg.inMemory = true
	}
}

// WithStoreLogger routes store and badger warnings to logger.
func WithStoreLogger(logger *zerolog.Logger) BadgerOption {
	return func(cfg *badgerConfig) {
		cfg.logger = logger
	}
}

// OpenBadger opens or creates the session database in dir.
func OpenBadger(dir string, options ...BadgerOption) (*BadgerStore, error) {
	cfg := badgerConfig{}
	for _, option := range options {
		if option != nil {
			option(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = logging.NewNopLogger()
	}

	opts := badger.DefaultOptions(dir)
	if cfg.inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
		dir = ""
	} else if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
		return nil, errors.WrapIO("create", dir, err)
	}
	opts.Logger = &badgerLogger{logger: cfg.logger}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.WrapIO("open", dir, err)
	}

	cfg.logger.Debug().Str("dir", dir).Bool("in_memory", cfg.inMemory).Msg("Opened draft store")
	return &BadgerStore{db: db, dir: dir, logger: cfg.logger}, nil
}

func sessionKey(name string) []byte {
	return []byte(keyPrefix + name)
}

// Create implements Store.
func (b *BadgerStore) Create(ctx context.Context, s Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encodeSession(s)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(sessionKey(s.Name))
		switch {
		case err == nil:
			return errors.NewAlreadyExistsError("session", s.Name)
		case !stderrors.Is(err, badger.ErrKeyNotFound):
			return errors.WrapResource("get", "session", s.Name, err)
		}
		return txn.Set(sessionKey(s.Name), data)
	})
}

// Save implements Store.
func (b *BadgerStore) Save(ctx context.Context, s Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateName(s.Name); err != nil {
		return err
	}
	data, err := encodeSession(s)
	if err != nil {
		return err
	}
	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(sessionKey(s.Name), data)
	}); err != nil {
		return errors.WrapResource("save", "session", s.Name, err)
	}
	return nil
}

// Load implements Store.
func (b *BadgerStore) Load(ctx context.Context, name string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(name))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return Session{}, errors.NewNotFoundError("session", name)
	}
	if err != nil {
		return Session{}, errors.WrapResource("load", "session", name, err)
	}
	return decodeSession(data)
}

// Delete implements Store.
func (b *BadgerStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(sessionKey(name)); err != nil {
			return err
		}
		return txn.Delete(sessionKey(name))
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return errors.NewNotFoundError("session", name)
	}
	if err != nil {
		return errors.WrapResource("delete", "session", name, err)
	}
	return nil
}

// List implements Store. Badger iterates keys in byte order, so sessions
// come back sorted by name.
func (b *BadgerStore) List(ctx context.Context) ([]Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var sessions []Session
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			s, err := decodeSession(data)
			if err != nil {
				// one corrupt entry should not hide the others
				b.logger.Warn().Err(err).Str("key", string(item.Key())).Msg("Skipping unreadable session")
				continue
			}
			sessions = append(sessions, s)
		}
		return nil
	})
	if err != nil {
		return nil, errors.WrapResource("list", "session", "", err)
	}
	return sessions, nil
}

// Close implements Store.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}

// badgerLogger adapts zerolog to badger's logger interface.
type badgerLogger struct {
	logger *zerolog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error().Str("component", "badger").Msg(trimMessage(format, args))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn().Str("component", "badger").Msg(trimMessage(format, args))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Trace().Str("component", "badger").Msg(trimMessage(format, args))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Trace().Str("component", "badger").Msg(trimMessage(format, args))
}

func trimMessage(format string, args []any) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}
