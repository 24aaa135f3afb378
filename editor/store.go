// ABOUTME: In-memory session store with TTL cleanup and capacity limits.
// ABOUTME: Each session owns one canvas store and its generation machine; eviction closes the machine.

package editor

import (
	"sync"
	"time"

	"github.com/2389-research/flowcanvas/canvas"
	"github.com/2389-research/flowcanvas/generation"
	"github.com/google/uuid"
)

// Session is one open canvas.
type Session struct {
	ID        string
	Canvas    *canvas.Store
	Machine   *generation.Machine
	CreatedAt time.Time

	mu         sync.Mutex
	name       string
	documentID string
	lastAccess time.Time
}

// Document returns the saved document this session is bound to and its name.
func (s *Session) Document() (id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.documentID, s.name
}

// BindDocument records the document the session was loaded from or saved to.
func (s *Session) BindDocument(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documentID = id
	s.name = name
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastAccess = now
	s.mu.Unlock()
}

// LastAccess returns when the session was last used.
func (s *Session) LastAccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess
}

func (s *Session) close() {
	if s.Machine != nil {
		s.Machine.Close()
	}
}

// Factory builds the canvas and machine for a new session.
type Factory func() (*canvas.Store, *generation.Machine)

// DefaultFactory builds an isolated store driven by the simulated generator.
func DefaultFactory() (*canvas.Store, *generation.Machine) {
	store := canvas.New()
	return store, generation.New(store, generation.Simulated{})
}

// Store holds the open sessions.
type Store struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	maxSessions int
	ttl         time.Duration
	factory     Factory
	now         func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithFactory sets how sessions are built.
func WithFactory(f Factory) StoreOption {
	return func(s *Store) {
		if f != nil {
			s.factory = f
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates a new session store
func NewStore(maxSessions int, ttl time.Duration, opts ...StoreOption) *Store {
	s := &Store{
		sessions:    make(map[string]*Session),
		maxSessions: maxSessions,
		ttl:         ttl,
		factory:     DefaultFactory,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create opens a new empty session, evicting the least recently used one
// when the store is full.
func (s *Store) Create(name string) *Session {
	cv, machine := s.factory()
	now := s.now()
	sess := &Session{
		ID:         uuid.New().String(),
		Canvas:     cv,
		Machine:    machine,
		CreatedAt:  now,
		name:       name,
		lastAccess: now,
	}

	var evicted *Session
	s.mu.Lock()
	if s.maxSessions > 0 && len(s.sessions) >= s.maxSessions {
		var oldestID string
		var oldestTime time.Time
		for id, other := range s.sessions {
			if t := other.LastAccess(); oldestTime.IsZero() || t.Before(oldestTime) {
				oldestID = id
				oldestTime = t
			}
		}
		evicted = s.sessions[oldestID]
		delete(s.sessions, oldestID)
	}
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	if evicted != nil {
		evicted.close()
	}
	return sess
}

// Get retrieves a session by ID and updates its last access time.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	sess.touch(s.now())
	return sess, true
}

// Delete closes and forgets a session.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok {
		sess.close()
	}
	return ok
}

// Len returns the number of open sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Cleanup closes sessions idle for longer than the TTL and returns how many.
func (s *Store) Cleanup() int {
	cutoff := s.now().Add(-s.ttl)
	var expired []*Session

	s.mu.Lock()
	for id, sess := range s.sessions {
		if sess.LastAccess().Before(cutoff) {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		sess.close()
	}
	return len(expired)
}

// StartCleanup starts a background cleanup goroutine and returns a stop function
func (s *Store) StartCleanup(interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				s.Cleanup()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}

// Close closes every session.
func (s *Store) Close() {
	s.mu.Lock()
	all := make([]*Session, 0, len(s.sessions))
	for id, sess := range s.sessions {
		all = append(all, sess)
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	for _, sess := range all {
		sess.close()
	}
}
