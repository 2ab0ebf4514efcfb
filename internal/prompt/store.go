package prompt

import (
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Store holds the active template [Set] and swaps it atomically on reload.
// Readers grab the current snapshot once per request with [Store.Current]
// and keep using it even if a reload happens mid-request.
type Store struct {
	dir       string
	current   atomic.Pointer[Set]
	onWarning func(LoadWarning)
}

// StoreOption configures a [Store].
type StoreOption func(*Store)

// WithWarningHook registers fn to be called for every load warning, after it
// has been logged. It is used to feed metrics.
func WithWarningHook(fn func(LoadWarning)) StoreOption {
	return func(s *Store) { s.onWarning = fn }
}

// NewStore loads dir and returns a store serving it.
func NewStore(dir string, opts ...StoreOption) (*Store, error) {
	s := &Store{dir: dir}
	for _, o := range opts {
		o(s)
	}
	if _, err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewStaticStore returns a store serving set. Reload is a no-op on it.
func NewStaticStore(set *Set) *Store {
	s := &Store{}
	s.current.Store(set)
	return s
}

// Current returns the active snapshot.
func (s *Store) Current() *Set {
	return s.current.Load()
}

// Dir returns the directory the store loads from.
func (s *Store) Dir() string { return s.dir }

// Reload re-reads the template directory and swaps in the new set. When the
// directory cannot be read the current set is kept and an error is returned.
func (s *Store) Reload() ([]LoadWarning, error) {
	if s.dir == "" {
		return nil, nil
	}
	set, warnings, err := Load(s.dir)
	if err != nil {
		return nil, fmt.Errorf("prompt: reload: %w", err)
	}
	for _, w := range warnings {
		slog.Warn("prompt: template load warning", "file", w.File, "kind", string(w.Kind), "err", w.Err)
		if s.onWarning != nil {
			s.onWarning(w)
		}
	}
	s.current.Store(set)
	slog.Info("prompt: templates loaded", "dir", s.dir, "count", set.Len(), "categories", set.Categories())
	return warnings, nil
}
