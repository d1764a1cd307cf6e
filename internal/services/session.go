package services

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	sessionShardCount = 16

	DefaultSessionIdleTimeout = 30 * time.Minute
)

// Session is the in-memory state of one conversation. JobID and Transcript
// may only be read or written inside SessionManager.WithSession.
type Session struct {
	ID         string
	JobID      *uint
	Transcript Transcript

	mu       sync.Mutex
	lastUsed time.Time
	evicted  bool
}

type sessionShard struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// SessionManager maps session ids to conversation state. Different sessions
// proceed in parallel; calls for the same session run one at a time.
type SessionManager struct {
	shards      [sessionShardCount]*sessionShard
	idleTimeout time.Duration
	now         func() time.Time
	log         *zap.Logger

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewSessionManager(idleTimeout time.Duration, log *zap.Logger) *SessionManager {
	if idleTimeout <= 0 {
		idleTimeout = DefaultSessionIdleTimeout
	}

	m := &SessionManager{
		idleTimeout: idleTimeout,
		now:         time.Now,
		log:         log,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	for i := range m.shards {
		m.shards[i] = &sessionShard{sessions: make(map[string]*Session)}
	}
	return m
}

func (m *SessionManager) shard(id string) *sessionShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return m.shards[h.Sum32()%sessionShardCount]
}

func (m *SessionManager) getOrCreate(id string) *Session {
	sh := m.shard(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	s, ok := sh.sessions[id]
	if !ok {
		s = &Session{ID: id, lastUsed: m.now()}
		sh.sessions[id] = s
		m.log.Debug("🆕 session created", zap.String("session_id", id))
	}
	return s
}

// WithSession runs fn while holding the session's lock, creating the session
// on first use. The error from fn is returned unchanged.
func (m *SessionManager) WithSession(ctx context.Context, id string, fn func(s *Session) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s := m.getOrCreate(id)
		s.mu.Lock()
		if s.evicted {
			// Evicted between lookup and lock; the next lookup creates a fresh one.
			s.mu.Unlock()
			continue
		}

		s.lastUsed = m.now()
		err := fn(s)
		s.lastUsed = m.now()
		s.mu.Unlock()
		return err
	}
}

// Clear empties the transcript of a live session. It reports whether the
// session was in memory.
func (m *SessionManager) Clear(id string) bool {
	sh := m.shard(id)
	sh.mu.Lock()
	s, ok := sh.sessions[id]
	sh.mu.Unlock()
	if !ok {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.evicted {
		return false
	}
	s.Transcript = nil
	return true
}

// Len returns the number of sessions held in memory.
func (m *SessionManager) Len() int {
	n := 0
	for _, sh := range m.shards {
		sh.mu.Lock()
		n += len(sh.sessions)
		sh.mu.Unlock()
	}
	return n
}

// EvictIdle drops sessions unused for longer than the idle timeout. Sessions
// busy in a turn are skipped.
func (m *SessionManager) EvictIdle() int {
	cutoff := m.now().Add(-m.idleTimeout)
	evicted := 0

	for _, sh := range m.shards {
		sh.mu.Lock()
		for id, s := range sh.sessions {
			if !s.mu.TryLock() {
				continue
			}
			if s.lastUsed.Before(cutoff) {
				s.evicted = true
				delete(sh.sessions, id)
				evicted++
			}
			s.mu.Unlock()
		}
		sh.mu.Unlock()
	}

	if evicted > 0 {
		m.log.Info("🧹 Evicted idle sessions", zap.Int("count", evicted))
	}
	return evicted
}

// Start runs EvictIdle every interval until Stop is called.
func (m *SessionManager) Start(interval time.Duration) {
	if interval <= 0 {
		interval = m.idleTimeout / 2
	}
	if !m.started.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer close(m.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-m.stop:
				return
			case <-ticker.C:
				m.EvictIdle()
			}
		}
	}()
}

// Stop ends the eviction loop started by Start.
func (m *SessionManager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
	if m.started.Load() {
		<-m.done
	}
}
