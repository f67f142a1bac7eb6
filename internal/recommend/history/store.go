// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

// Package history stores the recent item history of every user in BadgerDB so
// the serving engine can recommend from a user id alone.
package history

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

const keyPrefix = "history:"

// maxConflictRetries bounds Append retries after a transaction conflict.
const maxConflictRetries = 5

// ErrUserNotFound is returned by Get for a user without a stored history.
var ErrUserNotFound = errors.New("user history not found")

// Options configures Open.
type Options struct {
	// Path is the badger directory. Ignored when InMemory is set.
	Path string `koanf:"path" json:"path"`

	// InMemory keeps everything in memory; used in tests.
	InMemory bool `koanf:"in_memory" json:"in_memory"`

	// MaxLength is the number of most recent items kept per user.
	MaxLength int `koanf:"max_length" json:"max_length" validate:"min=1"`
}

// Store is a badger-backed map from user id to recent items, oldest first.
type Store struct {
	db     *badger.DB
	maxLen int
}

// Open opens (or creates) the store.
func Open(opts Options) (*Store, error) {
	if opts.MaxLength < 1 {
		return nil, fmt.Errorf("history.max_length must be positive, got %d", opts.MaxLength)
	}
	if !opts.InMemory && opts.Path == "" {
		return nil, errors.New("history.path is required unless history.in_memory is set")
	}
	bopts := badger.DefaultOptions(opts.Path).WithLogger(nil)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	return &Store{db: db, maxLen: opts.MaxLength}, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

func key(userID string) []byte { return []byte(keyPrefix + userID) }

// truncate keeps the most recent maxLen items.
func (s *Store) truncate(items []string) []string {
	if len(items) > s.maxLen {
		items = items[len(items)-s.maxLen:]
	}
	return items
}

// Put replaces the history of a user.
func (s *Store) Put(ctx context.Context, userID string, items []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(s.truncate(items))
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(userID), data)
	})
}

// Get returns the stored history of a user, oldest first.
func (s *Store) Get(ctx context.Context, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var items []string
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		items, err = read(txn, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func read(txn *badger.Txn, userID string) ([]string, error) {
	item, err := txn.Get(key(userID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%s: %w", userID, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	var items []string
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &items)
	})
	return items, err
}

// Append adds items to the end of a user's history, creating it if needed,
// and drops the oldest entries beyond the maximum length.
func (s *Store) Append(ctx context.Context, userID string, items ...string) error {
	if len(items) == 0 {
		return nil
	}
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if err = ctx.Err(); err != nil {
			return err
		}
		err = s.db.Update(func(txn *badger.Txn) error {
			current, err := read(txn, userID)
			if err != nil && !errors.Is(err, ErrUserNotFound) {
				return err
			}
			data, err := json.Marshal(s.truncate(append(current, items...)))
			if err != nil {
				return fmt.Errorf("marshal history: %w", err)
			}
			return txn.Set(key(userID), data)
		})
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("append history for %s: %w", userID, err)
}

// Delete removes a user's history. Deleting a missing user is not an error.
func (s *Store) Delete(_ context.Context, userID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(userID))
	})
}

// ImportDataset writes every history in one batch, replacing existing
// entries, and returns the number of users written.
func (s *Store) ImportDataset(ctx context.Context, histories map[string][]string) (int, error) {
	users := make([]string, 0, len(histories))
	for u := range histories {
		users = append(users, u)
	}
	sort.Strings(users)

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for i, u := range users {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		data, err := json.Marshal(s.truncate(histories[u]))
		if err != nil {
			return 0, fmt.Errorf("marshal history for %s: %w", u, err)
		}
		if err := wb.Set(key(u), data); err != nil {
			return 0, fmt.Errorf("write history for %s: %w", u, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("flush history import: %w", err)
	}
	return len(users), nil
}

// Count returns the number of stored users.
func (s *Store) Count(ctx context.Context) (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if n%1000 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			n++
		}
		return nil
	})
	return n, err
}
