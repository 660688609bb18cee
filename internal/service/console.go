package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/iconidentify/ovagrab/internal/domain"
	"github.com/iconidentify/ovagrab/internal/export"
	"github.com/iconidentify/ovagrab/internal/inventory"
	"github.com/iconidentify/ovagrab/internal/selection"
	"github.com/iconidentify/ovagrab/internal/session"
	"github.com/iconidentify/ovagrab/internal/worker"
	"github.com/iconidentify/ovagrab/pkg/ovaclient"
)

// Backend is the full export service API. *ovaclient.Client implements it.
type Backend interface {
	session.Backend
	inventory.Lister
	export.Backend
	worker.StatusFetcher
}

// Recorder archives finished jobs. *journal.Journal implements it.
type Recorder interface {
	Record(ctx context.Context, host string, jobs []domain.JobRecord) (int, error)
}

// ConsoleConfig configures the console.
type ConsoleConfig struct {
	PollInterval time.Duration
	PollTimeout  time.Duration

	// Journal, when set, receives the history of every applied snapshot.
	Journal Recorder

	// OnQueueUpdate and OnQueueError are called from the poller goroutine.
	OnQueueUpdate func(domain.QueueSnapshot)
	OnQueueError  func(error)
}

// ConnectResult reports a successful connect. The initial inventory load
// may still have failed; that does not undo the connection.
type ConnectResult struct {
	Session    session.Info
	Inventory  inventory.RefreshResult
	RefreshErr error
}

// Console is the client state: one session, one inventory, one selection,
// one export builder and one queue poller.
type Console struct {
	session   *session.Manager
	inventory *inventory.Engine
	selection *selection.Set
	exporter  *export.Builder
	poller    *worker.Poller

	journal       Recorder
	onQueueUpdate func(domain.QueueSnapshot)
	onQueueError  func(error)
	logger        *slog.Logger
}

// NewConsole creates a new console talking to backend.
func NewConsole(backend Backend, cfg ConsoleConfig, logger *slog.Logger) *Console {
	c := &Console{
		session:       session.NewManager(backend, logger.With("component", "session")),
		inventory:     inventory.NewEngine(backend, logger.With("component", "inventory")),
		selection:     selection.NewSet(),
		exporter:      export.NewBuilder(backend, logger.With("component", "export")),
		journal:       cfg.Journal,
		onQueueUpdate: cfg.OnQueueUpdate,
		onQueueError:  cfg.OnQueueError,
		logger:        logger,
	}

	c.poller = worker.NewPoller(worker.PollerConfig{
		Interval: cfg.PollInterval,
		Timeout:  cfg.PollTimeout,
		OnUpdate: c.handleQueueUpdate,
		OnError:  c.handleQueueError,
	}, backend, logger.With("component", "poller"))

	return c
}

// Connect opens the session, loads the unfiltered inventory, starts queue
// polling and fetches the queue state once right away.
func (c *Console) Connect(ctx context.Context, creds session.Credentials) (ConnectResult, error) {
	info, err := c.session.Connect(ctx, creds)
	if err != nil {
		return ConnectResult{}, err
	}

	c.inventory.Reset()
	res, refreshErr := c.inventory.Refresh(ctx)
	if refreshErr != nil {
		c.logger.Warn("initial inventory load failed", "error", refreshErr)
	}

	c.poller.Start()
	c.pollSoon(ctx)

	return ConnectResult{
		Session:    info,
		Inventory:  res,
		RefreshErr: refreshErr,
	}, nil
}

// Disconnect closes the session. Only after the service confirms are the
// poller stopped, the inventory dropped and the selection cleared.
func (c *Console) Disconnect(ctx context.Context) (string, error) {
	msg, err := c.session.Disconnect(ctx)
	if err != nil {
		return "", err
	}

	c.poller.Stop()
	c.poller.Reset()
	c.inventory.Reset()
	c.selection.ClearAll()
	return msg, nil
}

// Connected reports whether a session is open.
func (c *Console) Connected() bool {
	return c.session.Connected()
}

// Session returns the session description.
func (c *Console) Session() session.Info {
	return c.session.Info()
}

// SetFilter changes one filter dimension. Call Refresh to apply it.
func (c *Console) SetFilter(dim domain.FilterDimension, value string) error {
	return c.inventory.SetFilter(dim, value)
}

// ClearFilters removes every filter constraint.
func (c *Console) ClearFilters() {
	c.inventory.ClearFilters()
}

// Refresh reloads the inventory with the current filter.
func (c *Console) Refresh(ctx context.Context) (inventory.RefreshResult, error) {
	if err := c.require(domain.ErrFetch, "list vms"); err != nil {
		return inventory.RefreshResult{}, err
	}

	res, err := c.inventory.Refresh(ctx)
	if err != nil {
		c.checkSession(err)
		return inventory.RefreshResult{}, err
	}
	return res, nil
}

// VMs returns the last loaded inventory.
func (c *Console) VMs() []domain.VirtualMachine {
	return c.inventory.VMs()
}

// Options returns the filter option sets of the last load.
func (c *Console) Options() domain.FilterOptions {
	return c.inventory.Options()
}

// Filters returns the filter in effect.
func (c *Console) Filters() domain.FilterState {
	return c.inventory.Filters()
}

// Toggle marks or unmarks one VM for export.
func (c *Console) Toggle(name string, selected bool) {
	c.selection.Toggle(name, selected)
}

// SelectVisible selects every VM of the current inventory view.
func (c *Console) SelectVisible() {
	c.selection.SelectAll(c.inventory.Names())
}

// ClearSelection deselects everything.
func (c *Console) ClearSelection() {
	c.selection.ClearAll()
}

// IsSelected reports whether name is marked for export.
func (c *Console) IsSelected(name string) bool {
	return c.selection.Has(name)
}

// Selected returns the selected names in sorted order.
func (c *Console) Selected() []string {
	return c.selection.Names()
}

// Export submits the whole selection as one batch. On success the selection
// is cleared and the queue is polled at once.
func (c *Console) Export(ctx context.Context, poweroffBefore bool) (export.Ack, error) {
	if err := c.require(domain.ErrSubmit, "export"); err != nil {
		return export.Ack{}, err
	}

	ack, err := c.exporter.Submit(ctx, c.selection.Names(), poweroffBefore)
	if err != nil {
		c.checkSession(err)
		return export.Ack{}, err
	}

	c.selection.ClearAll()
	c.pollSoon(ctx)
	return ack, nil
}

// CancelDownloads cancels the running export and drops the pending queue.
// Polling continues.
func (c *Console) CancelDownloads(ctx context.Context) (string, error) {
	if err := c.require(domain.ErrSubmit, "cancel"); err != nil {
		return "", err
	}

	msg, err := c.exporter.CancelAll(ctx)
	if err != nil {
		c.checkSession(err)
		return "", err
	}
	c.pollSoon(ctx)
	return msg, nil
}

// PowerOff powers off one VM and reloads the inventory so the new power
// state shows.
func (c *Console) PowerOff(ctx context.Context, name string) (string, error) {
	if err := c.require(domain.ErrSubmit, "poweroff"); err != nil {
		return "", err
	}

	msg, err := c.exporter.PowerOff(ctx, name)
	if err != nil {
		c.checkSession(err)
		return "", err
	}

	if _, err := c.inventory.Refresh(ctx); err != nil {
		c.checkSession(err)
		c.logger.Warn("inventory reload after power off failed", "vm", name, "error", err)
	}
	return msg, nil
}

// StartPolling (re)starts queue polling.
func (c *Console) StartPolling() {
	c.poller.Start()
}

// StopPolling stops queue polling.
func (c *Console) StopPolling() {
	c.poller.Stop()
}

// Polling reports whether the queue poller is active.
func (c *Console) Polling() bool {
	return c.poller.Running()
}

// PollNow fetches the queue state immediately.
func (c *Console) PollNow(ctx context.Context) (domain.QueueSnapshot, error) {
	return c.poller.PollNow(ctx)
}

// Snapshot returns the last good queue snapshot.
func (c *Console) Snapshot() (domain.QueueSnapshot, bool) {
	return c.poller.Snapshot()
}

// PollerStats returns the poller counters.
func (c *Console) PollerStats() worker.PollerStats {
	return c.poller.Stats()
}

// Close stops polling and waits for the poll loop to exit. It does not
// disconnect the session.
func (c *Console) Close() {
	c.poller.Stop()
	c.poller.Wait()
}

func (c *Console) require(kind error, op string) error {
	if err := c.session.Require(); err != nil {
		return domain.NewOpError(kind, op, "", err)
	}
	return nil
}

// checkSession drops the local session when the service says it has none.
func (c *Console) checkSession(err error) {
	if ovaclient.IsUnauthorized(err) {
		c.session.Invalidate()
	}
}

func (c *Console) pollSoon(ctx context.Context) {
	if _, err := c.poller.PollNow(ctx); err != nil {
		c.logger.Debug("immediate status poll skipped", "error", err)
	}
}

func (c *Console) handleQueueUpdate(snap domain.QueueSnapshot) {
	if c.journal != nil && len(snap.History) > 0 {
		host := c.session.Info().Host
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if _, err := c.journal.Record(ctx, host, snap.History); err != nil {
			c.logger.Warn("failed to journal export history", "error", err)
		}
		cancel()
	}

	if c.onQueueUpdate != nil {
		c.onQueueUpdate(snap)
	}
}

func (c *Console) handleQueueError(err error) {
	if c.onQueueError != nil {
		c.onQueueError(err)
	}
}
