package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/iconidentify/ovagrab/internal/api/middleware"
	"github.com/iconidentify/ovagrab/internal/repository"
	"github.com/iconidentify/ovagrab/pkg/ovaclient"
)

// SessionHandler handles connect and disconnect.
type SessionHandler struct {
	sessions repository.SessionRepository
	queue    repository.ExportQueueRepository
	username string
	password string
	logger   *slog.Logger
}

// NewSessionHandler creates a new session handler. Empty username or
// password accept any value.
func NewSessionHandler(
	sessions repository.SessionRepository,
	queue repository.ExportQueueRepository,
	username, password string,
	logger *slog.Logger,
) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		queue:    queue,
		username: username,
		password: password,
		logger:   logger,
	}
}

// Connect handles POST /api/connect.
func (h *SessionHandler) Connect(w http.ResponseWriter, r *http.Request) {
	var req ovaclient.ConnectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	host := strings.TrimSpace(req.VCenterHost)
	if host == "" || req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "All fields are required")
		return
	}

	if (h.username != "" && req.Username != h.username) || (h.password != "" && req.Password != h.password) {
		h.logger.Warn("connect rejected", "host", host, "user", req.Username)
		writeError(w, http.StatusUnauthorized, "Could not connect to vCenter. Check the credentials.")
		return
	}

	token := h.sessions.Open(host, req.Username)
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	h.logger.Info("operator connected", "host", host, "user", req.Username)
	writeJSON(w, http.StatusOK, ok(fmt.Sprintf("Connected to %s", host)))
}

// Disconnect handles POST /api/disconnect. Pending and current exports are
// dropped; history is kept.
func (h *SessionHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	host := h.sessions.Host()
	h.sessions.Close()

	if err := h.queue.Reset(r.Context()); err != nil {
		h.logger.Error("failed to reset export queue", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:   middleware.SessionCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	h.logger.Info("operator disconnected", "host", host)
	writeJSON(w, http.StatusOK, ok("Disconnected"))
}
