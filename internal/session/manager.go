// Package session tracks whether the operator holds an authenticated session
// with the export service.
package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/iconidentify/ovagrab/internal/domain"
	"github.com/iconidentify/ovagrab/pkg/ovaclient"
)

// Backend is the part of the export service API the session needs.
type Backend interface {
	Connect(ctx context.Context, host, username, password string) (string, error)
	Disconnect(ctx context.Context) (string, error)
}

// Credentials identify the vCenter endpoint and the operator.
type Credentials struct {
	Host     string
	Username string
	Password string
}

// Info describes the current session. The password is never kept.
type Info struct {
	Connected   bool
	Host        string
	Username    string
	Message     string
	ConnectedAt time.Time
}

// Manager gates every other operation on an open session.
type Manager struct {
	backend Backend
	logger  *slog.Logger

	mu   sync.RWMutex
	info Info
}

// NewManager creates a new session manager.
func NewManager(backend Backend, logger *slog.Logger) *Manager {
	return &Manager{
		backend: backend,
		logger:  logger,
	}
}

// Connect sends the credentials to the service. On failure the manager stays
// disconnected and the returned error carries the server's message verbatim.
func (m *Manager) Connect(ctx context.Context, creds Credentials) (Info, error) {
	creds.Host = strings.TrimSpace(creds.Host)
	creds.Username = strings.TrimSpace(creds.Username)
	if creds.Host == "" || creds.Username == "" || creds.Password == "" {
		return Info{}, domain.NewOpError(domain.ErrConnect, "connect", "", domain.ErrMissingCredentials)
	}

	msg, err := m.backend.Connect(ctx, creds.Host, creds.Username, creds.Password)
	if err != nil {
		m.logger.Warn("connect failed", "host", creds.Host, "user", creds.Username, "error", err)
		return Info{}, domain.NewOpError(domain.ErrConnect, "connect", ovaclient.Message(err), err)
	}

	info := Info{
		Connected:   true,
		Host:        creds.Host,
		Username:    creds.Username,
		Message:     msg,
		ConnectedAt: time.Now(),
	}

	m.mu.Lock()
	m.info = info
	m.mu.Unlock()

	m.logger.Info("connected", "host", creds.Host, "user", creds.Username)
	return info, nil
}

// Disconnect closes the session. It is a no-op when already disconnected.
// On failure the session is kept so the operator can retry.
func (m *Manager) Disconnect(ctx context.Context) (string, error) {
	if !m.Connected() {
		return "", nil
	}

	msg, err := m.backend.Disconnect(ctx)
	if err != nil {
		m.logger.Error("disconnect failed", "error", err)
		return "", domain.NewOpError(domain.ErrDisconnect, "disconnect", ovaclient.Message(err), err)
	}

	m.mu.Lock()
	host := m.info.Host
	m.info = Info{}
	m.mu.Unlock()

	m.logger.Info("disconnected", "host", host)
	return msg, nil
}

// Connected reports whether a session is open.
func (m *Manager) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.info.Connected
}

// Info returns a copy of the session description.
func (m *Manager) Info() Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.info
}

// Require returns domain.ErrNotConnected unless a session is open.
func (m *Manager) Require() error {
	if !m.Connected() {
		return domain.ErrNotConnected
	}
	return nil
}

// Invalidate drops the local session without contacting the service, for
// when the service reports that it no longer knows the session.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.info.Connected {
		m.logger.Warn("session invalidated by backend", "host", m.info.Host)
	}
	m.info = Info{}
}
