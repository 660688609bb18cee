package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/iconidentify/ovagrab/internal/domain"
	"github.com/iconidentify/ovagrab/internal/repository"
)

// testLogger returns a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// failingQueue is an ExportQueueRepository whose every call fails.
type failingQueue struct {
	repository.ExportQueueRepository
	err error
}

func newFailingQueue() *failingQueue {
	return &failingQueue{err: errors.New("queue unavailable")}
}

func (q *failingQueue) Enqueue(ctx context.Context, jobs []domain.JobRecord) (int, error) {
	return 0, q.err
}

func (q *failingQueue) Cancel(ctx context.Context) (int, error) {
	return 0, q.err
}

func (q *failingQueue) Reset(ctx context.Context) error {
	return q.err
}

func (q *failingQueue) Snapshot(ctx context.Context, historyLimit int) (domain.QueueSnapshot, error) {
	return domain.QueueSnapshot{}, q.err
}

func (q *failingQueue) Stats(ctx context.Context) (*repository.QueueStats, error) {
	return nil, q.err
}

func jsonRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

// wireError mirrors the error payload.
type wireError struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
