package repository

import (
	"crypto/subtle"
	"sync"

	"github.com/google/uuid"
)

// InMemorySessionRepository implements SessionRepository. The service has a
// single operator session: opening a new one replaces the old one.
type InMemorySessionRepository struct {
	mu       sync.RWMutex
	token    string
	host     string
	username string
}

// NewInMemorySessionRepository creates a repository with no open session.
func NewInMemorySessionRepository() *InMemorySessionRepository {
	return &InMemorySessionRepository{}
}

// Open starts a new session and returns its token.
func (r *InMemorySessionRepository) Open(host, username string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.token = uuid.New().String()
	r.host = host
	r.username = username
	return r.token
}

// Close ends the session.
func (r *InMemorySessionRepository) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.token = ""
	r.host = ""
	r.username = ""
}

// Valid reports whether token belongs to the open session.
func (r *InMemorySessionRepository) Valid(token string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.token == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(r.token)) == 1
}

// Host returns the host of the open session.
func (r *InMemorySessionRepository) Host() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.host
}
