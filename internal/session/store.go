package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vetter/internal/history"
	"vetter/internal/models"
)

const defaultIdleTTL = time.Hour

// Session is one browser's conversation. Its History is only touched through
// Do so that at most one event handler works on it at a time.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu        sync.Mutex
	history   *history.History
	flash     string
	updatedAt time.Time

	// guarded by Store.mu
	lastUsed time.Time
}

// Snapshot is a copy of a session's state taken under its lock.
type Snapshot struct {
	ID        string
	Messages  []models.Message
	Errors    []string
	Processed int
	Count     int
	Pending   bool
	UpdatedAt time.Time
}

// Do runs fn with exclusive access to the session's History.
func (s *Session) Do(fn func(h *history.History)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.history)
	s.updatedAt = time.Now()
}

// Snapshot copies the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		ID:        s.ID,
		Messages:  s.history.Messages(),
		Errors:    s.history.Errors(),
		Processed: s.history.Processed(),
		Count:     s.history.Count(),
		Pending:   s.history.ShouldQuery(),
		UpdatedAt: s.updatedAt,
	}
}

// SetFlash stores a one-shot notice for the next render. Not to be called
// from inside Do.
func (s *Session) SetFlash(msg string) {
	s.mu.Lock()
	s.flash = msg
	s.mu.Unlock()
}

// TakeFlash returns and clears the pending notice.
func (s *Session) TakeFlash() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := s.flash
	s.flash = ""
	return msg
}

// Store keeps sessions in memory and drops the ones left idle past the TTL.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	seed     []models.Message
	ttl      time.Duration
	logger   *zap.SugaredLogger
	now      func() time.Time
}

// NewStore builds a Store whose sessions start from the seed messages.
func NewStore(ttl time.Duration, logger *zap.SugaredLogger, seed ...models.Message) *Store {
	if ttl <= 0 {
		ttl = defaultIdleTTL
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Store{
		sessions: make(map[string]*Session),
		seed:     seed,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// Create starts a new session with a fresh History.
func (s *Store) Create() *Session {
	now := s.now()
	sess := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		history:   history.New(s.seed...),
		updatedAt: now,
		lastUsed:  now,
	}
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	s.logger.Debugw("session created", "session_id", sess.ID)
	return sess
}

// Get returns a live session and marks it as used.
func (s *Store) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	sess.lastUsed = s.now()
	return sess, true
}

// Ensure returns the session for id, creating a new one when it is unknown or
// expired. The boolean reports whether a session was created.
func (s *Store) Ensure(id string) (*Session, bool) {
	if sess, ok := s.Get(id); ok {
		return sess, false
	}
	return s.Create(), true
}

// Delete forgets a session. It reports whether the session existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok {
		s.logger.Debugw("session deleted", "session_id", id)
	}
	return ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Run purges idle sessions until ctx is done.
func (s *Store) Run(ctx context.Context) {
	interval := s.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.purgeExpired(); n > 0 {
				s.logger.Infow("purged idle sessions", "count", n, "remaining", s.Len())
			}
		}
	}
}

// purgeExpired removes sessions idle for at least the TTL. Sessions whose
// lock is held are in use and are kept.
func (s *Store) purgeExpired() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	purged := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.lastUsed) < s.ttl {
			continue
		}
		if !sess.mu.TryLock() {
			continue
		}
		delete(s.sessions, id)
		sess.mu.Unlock()
		purged++
	}
	return purged
}
