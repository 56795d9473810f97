package server

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Amr-9/btcvanity/internal/job"
)

// Session is one WebSocket connection and the job controller serving it.
type Session struct {
	ID         uuid.UUID
	RemoteAddr string
	Created    time.Time

	Controller *job.Controller
}

// SessionStore tracks the open sessions of a server. It owns every
// controller it holds and closes them on CloseAll.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Open registers a new session for the given controller.
func (s *SessionStore) Open(remoteAddr string,
	controller *job.Controller) *Session {

	sess := &Session{
		ID:         uuid.New(),
		RemoteAddr: remoteAddr,
		Created:    time.Now(),
		Controller: controller,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	return sess
}

// Get returns the session with the given id.
func (s *SessionStore) Get(id uuid.UUID) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	return sess, ok
}

// Close removes the session and closes its controller, stopping any search
// it runs. Closing an unknown session is a no-op.
func (s *SessionStore) Close(id uuid.UUID) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		sess.Controller.Close()
	}
}

// CloseAll closes every session.
func (s *SessionStore) CloseAll() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[uuid.UUID]*Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Controller.Close()
	}
}

// Len returns the number of open sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}

// List returns the open sessions, oldest first.
func (s *SessionStore) List() []*Session {
	s.mu.RLock()
	list := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		list = append(list, sess)
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].Created.Before(list[j].Created)
	})

	return list
}
