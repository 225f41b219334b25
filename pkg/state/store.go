// Package state implements the on-disk document store: an exclusive,
// stale-PID-aware file lock guarding an atomically-replaced JSON document,
// per the state store contract.
package state

import (
	"os"

	"github.com/meshwire/wgmesh/pkg/meshapi"
	"github.com/meshwire/wgmesh/pkg/model"
)

// Store owns one PersistedState document on disk at Path.
type Store struct {
	Path string
	lock *fileLock
}

// NewStore returns a Store bound to path; it does not touch the filesystem.
func NewStore(path string) *Store {
	return &Store{Path: path, lock: newFileLock(path)}
}

// Load acquires the lock, reads and validates the document, releases the
// lock, and returns it. A missing file yields a fresh empty document
// without treating the absence as an error.
func (s *Store) Load() (model.PersistedState, error) {
	if err := s.lock.acquire(); err != nil {
		return model.PersistedState{}, err
	}
	defer s.lock.release()
	return s.loadLocked()
}

func (s *Store) loadLocked() (model.PersistedState, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.NewPersistedState(), nil
		}
		return model.PersistedState{}, meshapi.Wrap(meshapi.KindInternal, "read state file", err)
	}
	return decodeAndValidate(data)
}

// Update acquires the lock, loads the document, invokes fn (which may
// mutate the document in place), persists it, releases the lock, and
// returns whatever fn returned. If fn returns an error the document is
// never written.
func Update[T any](s *Store, fn func(doc *model.PersistedState) (T, error)) (T, error) {
	var zero T
	if err := s.lock.acquire(); err != nil {
		return zero, err
	}
	defer s.lock.release()

	doc, err := s.loadLocked()
	if err != nil {
		return zero, err
	}

	result, err := fn(&doc)
	if err != nil {
		return zero, err
	}

	if err := atomicWrite(s.Path, doc); err != nil {
		return zero, err
	}
	return result, nil
}
