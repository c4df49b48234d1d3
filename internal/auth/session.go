package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the server-side state of one browser session. UserID is zero for
// anonymous visitors that only carry flash messages.
type Session struct {
	ID        string
	UserID    int64
	Flashes   []string
	ExpiresAt time.Time
}

const (
	// AnonymousTTL bounds the lifetime of flash-only sessions.
	AnonymousTTL = 10 * time.Minute
	// MaxAnonymousSessions caps flash-only sessions. The one closest to
	// expiry is evicted when a new one would exceed it.
	MaxAnonymousSessions = 10000
)

// SessionStore is an in-memory map from session id to Session. Expired
// sessions are ignored on read and purged on write. Anonymous sessions live at
// most AnonymousTTL and are dropped once their flashes are read.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	anonTTL  time.Duration
	maxAnon  int
	anon     int
	now      func() time.Time
}

// NewSessionStore creates a store whose sessions live for ttl.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		anonTTL:  min(ttl, AnonymousTTL),
		maxAnon:  MaxAnonymousSessions,
		now:      time.Now,
	}
}

// Create starts a new session for userID. A zero userID starts an anonymous
// session.
func (s *SessionStore) Create(userID int64) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeLocked()
	ttl := s.ttl
	if userID == 0 {
		ttl = s.anonTTL
		if s.anon >= s.maxAnon {
			s.evictAnonLocked()
		}
		s.anon++
	}
	sess := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		ExpiresAt: s.now().Add(ttl),
	}
	s.sessions[sess.ID] = sess
	return *sess
}

// Get returns a copy of the live session with id.
func (s *SessionStore) Get(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.liveLocked(id)
	if !ok {
		return Session{}, false
	}
	out := *sess
	out.Flashes = append([]string(nil), sess.Flashes...)
	return out, true
}

// Delete removes the session with id, if any.
func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(id)
}

// AddFlash appends a message to a live session.
func (s *SessionStore) AddFlash(id, msg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.liveLocked(id)
	if !ok {
		return false
	}
	sess.Flashes = append(sess.Flashes, msg)
	return true
}

// PopFlashes returns and clears the pending messages of a session.
func (s *SessionStore) PopFlashes(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.liveLocked(id)
	if !ok {
		return nil
	}
	flashes := sess.Flashes
	sess.Flashes = nil
	if sess.UserID == 0 {
		s.deleteLocked(id)
	}
	return flashes
}

// Len reports the number of stored sessions, expired ones included.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// TTL is the lifetime given to new sessions.
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

func (s *SessionStore) liveLocked(id string) (*Session, bool) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	if !s.now().Before(sess.ExpiresAt) {
		s.deleteLocked(id)
		return nil, false
	}
	return sess, true
}

func (s *SessionStore) deleteLocked(id string) {
	sess, ok := s.sessions[id]
	if !ok {
		return
	}
	if sess.UserID == 0 {
		s.anon--
	}
	delete(s.sessions, id)
}

func (s *SessionStore) purgeLocked() {
	now := s.now()
	for id, sess := range s.sessions {
		if !now.Before(sess.ExpiresAt) {
			s.deleteLocked(id)
		}
	}
}

func (s *SessionStore) evictAnonLocked() {
	var oldest *Session
	for _, sess := range s.sessions {
		if sess.UserID == 0 && (oldest == nil || sess.ExpiresAt.Before(oldest.ExpiresAt)) {
			oldest = sess
		}
	}
	if oldest != nil {
		s.deleteLocked(oldest.ID)
	}
}
