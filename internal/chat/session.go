// Package chat holds per-session conversation state and the orchestrator that
// drives the tool-calling exchange with the chat model. Sessions live in
// memory for the lifetime of the process; an optional transcript store
// persists committed turns for later inspection.
package chat

import (
	"sync"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
)

// Session is one conversation's committed history. Only user and final
// assistant turns are ever committed; assistant tool-call turns and tool
// results are scratch state that never outlives the exchange that produced
// them.
type Session struct {
	// exchange serializes whole exchanges on this session, so a concurrent
	// request waits for the in-flight one to commit before building its
	// context. mu guards the turns slice itself.
	exchange sync.Mutex

	mu    sync.Mutex
	id    string
	turns []*schema.Message
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Turns returns a copy of the committed history.
func (s *Session) Turns() []*schema.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*schema.Message, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len returns the number of committed turns.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// commit appends turns atomically. Called by the orchestrator once an
// exchange has fully succeeded.
func (s *Session) commit(turns ...*schema.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, turns...)
}

// Store maps session identifiers to live sessions. Unknown identifiers are
// minted on first use, so a client may either present its own id or let the
// server assign one.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewStore returns an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Get returns the session for id, creating it if absent. An empty id mints a
// fresh session with a generated identifier.
func (st *Store) Get(id string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	if id == "" {
		id = uuid.NewString()
	}
	s, ok := st.sessions[id]
	if !ok {
		s = &Session{id: id}
		st.sessions[id] = s
	}
	return s
}

// Reset discards the session with the given id. It reports whether a session
// existed.
func (st *Store) Reset(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	_, ok := st.sessions[id]
	delete(st.sessions, id)
	return ok
}

// ResetAll discards every session and returns how many were dropped.
func (st *Store) ResetAll() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	n := len(st.sessions)
	st.sessions = make(map[string]*Session)
	return n
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
