package probecache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/OneOfOne/xxhash"
	"github.com/dgraph-io/badger/v3"

	"acrscan/internal/logging"
	"acrscan/internal/services"
)

// DefaultTTL bounds how long a cached reply is trusted.
const DefaultTTL = 30 * 24 * time.Hour

// Store is a badger-backed reply cache. It is safe for concurrent use.
type Store struct {
	db     *badger.DB
	ttl    time.Duration
	logger *slog.Logger
}

// Open opens or creates the cache under dir.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, services.Wrap(services.ErrConfiguration, "probecache", "open", "cache directory is empty", nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "probecache", "open", "create "+dir, err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	opts := badger.DefaultOptions(dir).WithLogger(badgerLogger{logger: logger})
	return open(opts, logger)
}

// OpenInMemory returns a cache that lives only as long as the process.
func OpenInMemory(logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	return open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil), logger)
}

func open(opts badger.Options, logger *slog.Logger) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "probecache", "open", opts.Dir, err)
	}
	return &Store{db: db, ttl: DefaultTTL, logger: logger}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the cached reply for key.
func (s *Store) Get(key Key) ([]byte, bool, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key.bytes())
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, services.Wrap(services.ErrExternalTool, "probecache", "get", key.String(), err)
	}
	return value, true, nil
}

// Put stores a reply for key.
func (s *Store) Put(key Key, value []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key.bytes(), append([]byte(nil), value...))
		if s.ttl > 0 {
			entry = entry.WithTTL(s.ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "probecache", "put", key.String(), err)
	}
	return nil
}

// Purge drops every entry.
func (s *Store) Purge() error {
	if err := s.db.DropAll(); err != nil {
		return services.Wrap(services.ErrExternalTool, "probecache", "purge", "", err)
	}
	return nil
}

// Count returns the number of live entries.
func (s *Store) Count() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// Key identifies one window of one version of a source file.
type Key uint64

// NewKey hashes the account namespace, the source identity and the window
// bounds. Replies from different ACRCloud projects never share a key.
func NewKey(namespace, path string, size int64, modTime time.Time, offsetMs, lengthMs int64) Key {
	h := xxhash.New64()
	_, _ = h.Write([]byte(namespace))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(filepath.Clean(path)))
	var buf [8]byte
	for _, v := range []int64{size, modTime.UnixNano(), offsetMs, lengthMs} {
		binary.BigEndian.PutUint64(buf[:], uint64(v))
		_, _ = h.Write(buf[:])
	}
	return Key(h.Sum64())
}

// KeyForFile stats path and returns the key of one of its windows.
func KeyForFile(namespace, path string, offsetMs, lengthMs int64) (Key, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return 0, err
	}
	return NewKey(namespace, abs, info.Size(), info.ModTime(), offsetMs, lengthMs), nil
}

func (k Key) bytes() []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, uint64(k))
	return out
}

func (k Key) String() string {
	return fmt.Sprintf("%016x", uint64(k))
}

// badgerLogger forwards badger's own diagnostics to slog. Info and debug
// chatter is demoted to debug.
type badgerLogger struct {
	logger *slog.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)), logging.String(logging.FieldComponent, "badger"))
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), logging.String(logging.FieldComponent, "badger"))
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), logging.String(logging.FieldComponent, "badger"))
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), logging.String(logging.FieldComponent, "badger"))
}
