package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/kjannette/openarb-backend/internal/ledger"
)

var snapshotKey = []byte("ledger/snapshot")

// SnapshotStore keeps the latest ledger snapshot as one JSON value in Badger.
type SnapshotStore struct {
	db *badger.DB
}

func Open(path string) (*SnapshotStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("kvstore: path is required")
	}
	db, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	return &SnapshotStore{db: db}, nil
}

func (s *SnapshotStore) Name() string { return "badger" }

func (s *SnapshotStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SnapshotStore) Ping(ctx context.Context) error {
	if s.db.IsClosed() {
		return errors.New("kvstore: closed")
	}
	return nil
}

// Save replaces the stored snapshot. An invalid snapshot is refused and the
// previous one stays in place.
func (s *SnapshotStore) Save(ctx context.Context, snap ledger.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("invalid snapshot: %w", err)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey, data)
	})
}

// Load returns the stored snapshot, or nil when nothing was ever saved.
func (s *SnapshotStore) Load(ctx context.Context) (*ledger.Snapshot, error) {
	var snap *ledger.Snapshot
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var decoded ledger.Snapshot
			if err := json.Unmarshal(val, &decoded); err != nil {
				return fmt.Errorf("decode snapshot: %w", err)
			}
			snap = &decoded
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}
