package importer

// limiter.go caps the number of concurrently open import sessions.
//
// Each session pins its file text in memory until mapping completes, so an
// unbounded registry is a memory exhaustion risk. The limiter is a semaphore:
// a slot is taken when a session is created and returned when the session is
// confirmed, discarded, or evicted. WaitForDrain supports graceful shutdown.

import (
	"context"
	"sync"
	"time"
)

// DefaultMaxSessions is the default cap on open import sessions.
const DefaultMaxSessions = 20

// SessionLimiter bounds concurrent import sessions using a semaphore.
type SessionLimiter struct {
	semaphore chan struct{}

	mu     sync.RWMutex
	active int
}

// NewSessionLimiter creates a limiter allowing at most maxSessions open sessions.
func NewSessionLimiter(maxSessions int) *SessionLimiter {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	return &SessionLimiter{
		semaphore: make(chan struct{}, maxSessions),
	}
}

// TryAcquire takes a slot without blocking. Returns false when the limit is
// reached; callers surface that as ErrTooManySessions.
func (l *SessionLimiter) TryAcquire() bool {
	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return true
	default:
		return false
	}
}

// Release returns a previously acquired slot.
// Must be called exactly once per successful TryAcquire.
func (l *SessionLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()
	<-l.semaphore
}

// Active returns the number of open sessions.
func (l *SessionLimiter) Active() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// MaxSessions returns the configured cap.
func (l *SessionLimiter) MaxSessions() int {
	return cap(l.semaphore)
}

// WaitForDrain blocks until all sessions are closed or ctx is cancelled.
func (l *SessionLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if l.Active() == 0 {
				return nil
			}
		}
	}
}
