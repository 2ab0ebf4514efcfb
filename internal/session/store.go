package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrWong99/glyphcmd/pkg/command"
)

// Store persists game state per session ID. A session that was never
// written reads as [DefaultState] and is created on that first read.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the state of id, creating the default state on first access.
	Get(ctx context.Context, id string) (State, error)

	// Put replaces the state of id.
	Put(ctx context.Context, id string, st State) error

	// Update applies fn to the state of id and stores the result atomically
	// with respect to other Update calls on the same session. fn may be
	// called more than once.
	Update(ctx context.Context, id string, fn func(*State)) (State, error)

	// Clear forgets id. The next Get starts over from the default state.
	// Clearing an unknown session is not an error.
	Clear(ctx context.Context, id string) error
}

// ContextFor returns the recognition vocabulary of session id.
func ContextFor(ctx context.Context, s Store, id string) (command.Vocabulary, error) {
	st, err := s.Get(ctx, id)
	if err != nil {
		return command.Vocabulary{}, err
	}
	return st.Vocabulary(), nil
}

// UpdatePosition moves the player of session id.
func UpdatePosition(ctx context.Context, s Store, id string, p Position) (State, error) {
	return s.Update(ctx, id, func(st *State) { st.PlayerPosition = p })
}

// AddObject adds or replaces an object in session id.
func AddObject(ctx context.Context, s Store, id string, o Object) (State, error) {
	return s.Update(ctx, id, func(st *State) { st.PutObject(o) })
}

// RemoveObject removes an object from session id.
func RemoveObject(ctx context.Context, s Store, id, objectID string) (State, error) {
	return s.Update(ctx, id, func(st *State) { st.RemoveObject(objectID) })
}

// AddNPC adds or replaces an NPC in session id.
func AddNPC(ctx context.Context, s Store, id string, n NPC) (State, error) {
	return s.Update(ctx, id, func(st *State) { st.PutNPC(n) })
}

// RemoveNPC removes an NPC from session id.
func RemoveNPC(ctx context.Context, s Store, id, npcID string) (State, error) {
	return s.Update(ctx, id, func(st *State) { st.RemoveNPC(npcID) })
}

// MemStore is an in-process [Store]. State is lost on restart.
type MemStore struct {
	mu       sync.Mutex
	sessions map[string]State
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{sessions: make(map[string]State)}
}

// getLocked must be called with m.mu held.
func (m *MemStore) getLocked(id string) State {
	st, ok := m.sessions[id]
	if !ok {
		st = DefaultState()
		m.sessions[id] = st
		slog.Info("session: created default game state", "session_id", id)
	}
	return st
}

// Get implements [Store].
func (m *MemStore) Get(_ context.Context, id string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(id).Clone(), nil
}

// Put implements [Store].
func (m *MemStore) Put(_ context.Context, id string, st State) error {
	if id == "" {
		return fmt.Errorf("session: empty session id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = st.Clone()
	return nil
}

// Update implements [Store].
func (m *MemStore) Update(_ context.Context, id string, fn func(*State)) (State, error) {
	if id == "" {
		return State{}, fmt.Errorf("session: empty session id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.getLocked(id).Clone()
	fn(&st)
	m.sessions[id] = st
	return st.Clone(), nil
}

// Clear implements [Store].
func (m *MemStore) Clear(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; ok {
		delete(m.sessions, id)
		slog.Info("session: cleared game state", "session_id", id)
	}
	return nil
}

// Len returns the number of sessions held.
func (m *MemStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
