package session

import "sync"

// Store keeps one session per user in memory. It replaces the process-wide
// session table with an injected repository: handlers receive a Store and
// never touch a shared map directly.
type Store struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{sessions: make(map[int64]*Session)}
}

// Mutate runs fn against the user's session under the store lock, creating
// the session if necessary. This is the only mutation path; it serializes
// all operations touching one user's state.
func (s *Store) Mutate(userID int64, fn func(*Session) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		sess = NewSession(userID)
		s.sessions[userID] = sess
	}
	return fn(sess)
}

// Peek returns a copy of the user's session and whether it exists.
func (s *Store) Peek(userID int64) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[userID]
	if !ok {
		return Session{}, false
	}
	cp := *sess
	cp.Files = append([]FileRef(nil), sess.Files...)
	cp.Posted = append([]PostRef(nil), sess.Posted...)
	if sess.Progress != nil {
		p := *sess.Progress
		cp.Progress = &p
	}
	return cp, true
}

// Delete removes the session entirely.
func (s *Store) Delete(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

// InProgress reports whether the user has an active upload flow. It feeds
// the text/document router's FSM check.
func (s *Store) InProgress(userID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	return ok && sess.Active()
}
