// Package ovaclient talks to the OVA export service over its HTTP/JSON API.
package ovaclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iconidentify/ovagrab/internal/domain"
)

// Client communicates with the export service. The service keeps its session
// in a cookie, so one Client corresponds to one operator session.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// Options configures a Client.
type Options struct {
	Timeout    time.Duration
	UserAgent  string
	HTTPClient *http.Client
}

// envelope is the common part of every response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (e envelope) failure() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

// ConnectRequest is the body of POST /api/connect.
type ConnectRequest struct {
	VCenterHost string `json:"vcenter_host"`
	Username    string `json:"username"`
	Password    string `json:"password"`
}

// ListVMsResponse is the response of GET /api/vms.
type ListVMsResponse struct {
	VMs           []domain.VirtualMachine `json:"vms"`
	FilterOptions domain.FilterOptions    `json:"filter_options"`
	Total         int                     `json:"total"`
}

// ExportRequest is the body of POST /api/export.
type ExportRequest struct {
	VMNames              []string `json:"vm_names"`
	PoweroffBeforeExport bool     `json:"poweroff_before_export"`
}

// ExportResponse is the response of POST /api/export.
type ExportResponse struct {
	Message   string `json:"message"`
	QueueSize int    `json:"queue_size"`
}

// PowerOffRequest is the body of POST /api/poweroff.
type PowerOffRequest struct {
	VMName string `json:"vm_name"`
}

// StatusResponse is the response of GET /api/status.
type StatusResponse struct {
	CurrentDownload *domain.JobRecord  `json:"current_download"`
	Queue           []domain.JobRecord `json:"queue"`
	QueueSize       *int               `json:"queue_size,omitempty"`
	History         []domain.JobRecord `json:"history"`
}

// NewClient creates a new export service client.
func NewClient(baseURL string, opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Minute
		}
		jar, _ := cookiejar.New(nil)
		httpClient = &http.Client{
			Timeout: timeout,
			Jar:     jar,
		}
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "ovagrab"
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: httpClient,
	}
}

// BaseURL returns the base URL of the export service.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Connect opens a session against a vCenter host. It returns the server's
// confirmation message.
func (c *Client) Connect(ctx context.Context, host, username, password string) (string, error) {
	body := ConnectRequest{VCenterHost: host, Username: username, Password: password}
	var resp envelope
	if err := c.doRequest(ctx, http.MethodPost, "/api/connect", body, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Disconnect closes the session.
func (c *Client) Disconnect(ctx context.Context) (string, error) {
	var resp envelope
	if err := c.doRequest(ctx, http.MethodPost, "/api/disconnect", nil, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// ListVMs returns the inventory narrowed by filter and the option sets of the
// unfiltered inventory.
func (c *Client) ListVMs(ctx context.Context, filter domain.FilterState) (*ListVMsResponse, error) {
	path := "/api/vms"
	if params := filter.Params(); len(params) > 0 {
		q := url.Values{}
		for k, v := range params {
			q.Set(k, v)
		}
		path += "?" + q.Encode()
	}

	var resp struct {
		envelope
		ListVMsResponse
	}
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.VMs == nil {
		resp.VMs = []domain.VirtualMachine{}
	}
	return &resp.ListVMsResponse, nil
}

// Export submits VMs to the export queue.
func (c *Client) Export(ctx context.Context, names []string, poweroffBefore bool) (*ExportResponse, error) {
	body := ExportRequest{VMNames: names, PoweroffBeforeExport: poweroffBefore}
	var resp struct {
		envelope
		QueueSize int `json:"queue_size"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "/api/export", body, &resp); err != nil {
		return nil, err
	}
	return &ExportResponse{Message: resp.Message, QueueSize: resp.QueueSize}, nil
}

// Cancel clears the pending queue and cancels the current export.
func (c *Client) Cancel(ctx context.Context) (string, error) {
	var resp envelope
	if err := c.doRequest(ctx, http.MethodPost, "/api/cancel", nil, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// PowerOff powers off a single VM.
func (c *Client) PowerOff(ctx context.Context, name string) (string, error) {
	var resp envelope
	if err := c.doRequest(ctx, http.MethodPost, "/api/poweroff", PowerOffRequest{VMName: name}, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Status returns the export queue state. Missing lists decode as empty.
func (c *Client) Status(ctx context.Context) (*domain.QueueSnapshot, error) {
	var resp struct {
		envelope
		StatusResponse
	}
	if err := c.doRequest(ctx, http.MethodGet, "/api/status", nil, &resp); err != nil {
		return nil, err
	}

	snap := &domain.QueueSnapshot{
		Current:   resp.CurrentDownload,
		Queue:     resp.Queue,
		History:   resp.History,
		FetchedAt: time.Now(),
	}
	if snap.Queue == nil {
		snap.Queue = []domain.JobRecord{}
	}
	if snap.History == nil {
		snap.History = []domain.JobRecord{}
	}
	if resp.QueueSize != nil {
		snap.QueueSize = *resp.QueueSize
	} else {
		snap.QueueSize = len(snap.Queue)
	}
	return snap, nil
}

// doRequest performs an HTTP request and decodes the JSON response into
// result. result must embed envelope so success:false can be detected.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, result interface{ failed() (string, bool) }) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", uuid.New().String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		if resp.StatusCode >= 400 {
			return &APIError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("request failed with status %d: %s", resp.StatusCode, truncate(string(respBody), 200))}
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if msg, failed := result.failed(); failed || resp.StatusCode >= 400 {
		if msg == "" {
			msg = fmt.Sprintf("request failed with status %d", resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	return nil
}

func (e *envelope) failed() (string, bool) {
	return e.failure(), !e.Success
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
