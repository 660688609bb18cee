package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/iconidentify/ovagrab/internal/domain"
	"github.com/iconidentify/ovagrab/pkg/ovaclient"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockBackend implements Backend for testing.
type mockBackend struct {
	connectErr      error
	disconnectErr   error
	connectCalls    int
	disconnectCalls int
	lastHost        string
}

func (m *mockBackend) Connect(ctx context.Context, host, username, password string) (string, error) {
	m.connectCalls++
	m.lastHost = host
	if m.connectErr != nil {
		return "", m.connectErr
	}
	return "Connected to " + host, nil
}

func (m *mockBackend) Disconnect(ctx context.Context) (string, error) {
	m.disconnectCalls++
	if m.disconnectErr != nil {
		return "", m.disconnectErr
	}
	return "Disconnected", nil
}

func TestManager_Connect_Success(t *testing.T) {
	backend := &mockBackend{}
	m := NewManager(backend, testLogger())

	info, err := m.Connect(context.Background(), Credentials{Host: " vc01 ", Username: "admin", Password: "pw"})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if !info.Connected || info.Host != "vc01" {
		t.Errorf("info = %+v", info)
	}
	if info.Message != "Connected to vc01" {
		t.Errorf("Message = %q", info.Message)
	}
	if !m.Connected() {
		t.Error("manager should be connected")
	}
	if err := m.Require(); err != nil {
		t.Errorf("Require() = %v", err)
	}
}

func TestManager_Connect_MissingCredentials(t *testing.T) {
	backend := &mockBackend{}
	m := NewManager(backend, testLogger())

	_, err := m.Connect(context.Background(), Credentials{Host: "vc01", Username: "admin"})
	if !errors.Is(err, domain.ErrConnect) {
		t.Errorf("expected ErrConnect, got %v", err)
	}
	if !errors.Is(err, domain.ErrMissingCredentials) {
		t.Errorf("expected ErrMissingCredentials in chain, got %v", err)
	}
	if backend.connectCalls != 0 {
		t.Error("backend should not be called without credentials")
	}
}

func TestManager_Connect_ServerMessageVerbatim(t *testing.T) {
	backend := &mockBackend{connectErr: &ovaclient.APIError{StatusCode: 401, Message: "Could not connect to vCenter. Check the credentials."}}
	m := NewManager(backend, testLogger())

	_, err := m.Connect(context.Background(), Credentials{Host: "vc01", Username: "admin", Password: "bad"})
	if !errors.Is(err, domain.ErrConnect) {
		t.Fatalf("expected ErrConnect, got %v", err)
	}
	if got := domain.UserMessage(err); got != "Could not connect to vCenter. Check the credentials." {
		t.Errorf("UserMessage = %q", got)
	}
	if m.Connected() {
		t.Error("manager should stay disconnected")
	}
	if !errors.Is(m.Require(), domain.ErrNotConnected) {
		t.Error("Require should return ErrNotConnected")
	}
}

func TestManager_Disconnect(t *testing.T) {
	backend := &mockBackend{}
	m := NewManager(backend, testLogger())
	m.Connect(context.Background(), Credentials{Host: "vc01", Username: "admin", Password: "pw"})

	msg, err := m.Disconnect(context.Background())
	if err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}
	if msg != "Disconnected" {
		t.Errorf("msg = %q", msg)
	}
	if m.Connected() {
		t.Error("manager should be disconnected")
	}
	if m.Info() != (Info{}) {
		t.Errorf("Info should be cleared, got %+v", m.Info())
	}
}

func TestManager_Disconnect_Idempotent(t *testing.T) {
	backend := &mockBackend{}
	m := NewManager(backend, testLogger())

	for i := 0; i < 2; i++ {
		if _, err := m.Disconnect(context.Background()); err != nil {
			t.Fatalf("Disconnect #%d failed: %v", i, err)
		}
	}
	if backend.disconnectCalls != 0 {
		t.Errorf("backend called %d times while disconnected", backend.disconnectCalls)
	}
}

func TestManager_Disconnect_FailureKeepsSession(t *testing.T) {
	backend := &mockBackend{disconnectErr: errors.New("request failed: connection refused")}
	m := NewManager(backend, testLogger())
	m.Connect(context.Background(), Credentials{Host: "vc01", Username: "admin", Password: "pw"})

	_, err := m.Disconnect(context.Background())
	if !errors.Is(err, domain.ErrDisconnect) {
		t.Fatalf("expected ErrDisconnect, got %v", err)
	}
	if !m.Connected() {
		t.Error("session should be kept after a failed disconnect")
	}
}

func TestManager_Invalidate(t *testing.T) {
	m := NewManager(&mockBackend{}, testLogger())
	m.Connect(context.Background(), Credentials{Host: "vc01", Username: "admin", Password: "pw"})

	m.Invalidate()

	if m.Connected() {
		t.Error("session should be dropped")
	}
}
