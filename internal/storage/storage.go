// Package storage wraps the JSON-file datastore behind the opaque
// key-value contract the rest of the bot relies on. No schema is enforced
// here; callers own the meaning of their keys.
package storage

import (
	"fmt"

	"komandir/datastore"
)

type Storage struct {
	ds *datastore.DataStore
}

// New opens (or creates) the store at the given path.
func New(filePath string) (*Storage, error) {
	ds, err := datastore.New(filePath)
	if err != nil {
		return nil, err
	}
	return &Storage{ds: ds}, nil
}

// Close flushes and shuts down the underlying store.
func (s *Storage) Close() error {
	return s.ds.Close()
}

// Get returns the value for a key.
func (s *Storage) Get(key string) (any, bool) {
	return s.ds.Get(key)
}

// Set stores a value under a key.
func (s *Storage) Set(key string, value any) {
	s.ds.Set(key, value)
}

// Delete removes a key.
func (s *Storage) Delete(key string) {
	s.ds.Delete(key)
}

// Has reports whether a key exists.
func (s *Storage) Has(key string) bool {
	_, ok := s.ds.Get(key)
	return ok
}

// All returns a copy of everything stored.
func (s *Storage) All() map[string]any {
	return s.ds.Snapshot()
}

// Add increments a numeric key by delta and returns the new value. A
// missing key starts at zero. JSON numbers round-trip as float64, so that
// is the numeric type here.
func (s *Storage) Add(key string, delta float64) (float64, error) {
	current, err := s.number(key)
	if err != nil {
		return 0, err
	}
	next := current + delta
	s.ds.Set(key, next)
	return next, nil
}

// Subtract decrements a numeric key by delta and returns the new value.
func (s *Storage) Subtract(key string, delta float64) (float64, error) {
	return s.Add(key, -delta)
}

func (s *Storage) number(key string) (float64, error) {
	raw, ok := s.ds.Get(key)
	if !ok {
		return 0, nil
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	return 0, fmt.Errorf("key %q does not hold a number", key)
}
