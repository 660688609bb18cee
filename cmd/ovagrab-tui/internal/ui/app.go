// Package ui provides the terminal user interface for ovagrab.
package ui

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/iconidentify/ovagrab/internal/config"
	"github.com/iconidentify/ovagrab/internal/domain"
	"github.com/iconidentify/ovagrab/internal/service"
	"github.com/iconidentify/ovagrab/pkg/ovaclient"
)

// Panel represents a UI panel type.
type Panel int

const (
	PanelConnect Panel = iota
	PanelVMs
	PanelQueue
	PanelHelp
)

// App is the main TUI application.
type App struct {
	app          *tview.Application
	pages        *tview.Pages
	cfg          *config.Config
	console      *service.Console
	logger       *slog.Logger
	currentPanel Panel
	ctx          context.Context
	cancel       context.CancelFunc

	// UI components
	mainFlex    *tview.Flex
	header      *tview.TextView
	footer      *tview.TextView
	statusBar   *tview.TextView
	connectView *tview.Flex
	connectForm *tview.Form
	vmsView     *tview.Flex
	filterForm  *tview.Form
	vmTable     *tview.Table
	queueView   *tview.Flex
	currentBox  *tview.TextView
	pendingList *tview.TextView
	historyBox  *tview.Table
	helpView    *tview.TextView

	// State
	snapMu      sync.RWMutex
	snapshot    domain.QueueSnapshot
	pollErr     error
	syncingForm bool
}

// NewApp creates a new TUI application. journal may be nil.
func NewApp(cfg *config.Config, journal service.Recorder, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		app:    tview.NewApplication(),
		pages:  tview.NewPages(),
		cfg:    cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	client := ovaclient.NewClient(cfg.Backend.BaseURL, ovaclient.Options{
		Timeout:   cfg.Backend.Timeout,
		UserAgent: cfg.Backend.UserAgent,
	})

	consoleCfg := service.ConsoleConfig{
		PollInterval:  cfg.Poll.Interval,
		PollTimeout:   cfg.Poll.Timeout,
		Journal:       journal,
		OnQueueUpdate: a.onQueueUpdate,
		OnQueueError:  a.onQueueError,
	}
	a.console = service.NewConsole(client, consoleCfg, logger)

	a.setupUI()
	return a, nil
}

// setupUI initializes all UI components.
func (a *App) setupUI() {
	// Header
	a.header = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.header.SetBackgroundColor(tcell.ColorDarkBlue)

	// Footer with keybindings
	a.footer = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText("[yellow]F1[white]:Connect [yellow]F2[white]:VMs [yellow]F3[white]:Queue [yellow]F10[white]:Help [yellow]Ctrl+D[white]:Disconnect [yellow]Ctrl+Q[white]:Quit")
	a.footer.SetBackgroundColor(tcell.ColorDarkBlue)

	// Status bar
	a.statusBar = tview.NewTextView().
		SetDynamicColors(true)
	a.statusBar.SetBackgroundColor(tcell.ColorDarkGreen)

	// Create panels
	a.createConnectPanel()
	a.createVMsPanel()
	a.createQueuePanel()
	a.createHelpPanel()

	// Add panels to pages
	a.pages.AddPage("connect", a.connectView, true, true)
	a.pages.AddPage("vms", a.vmsView, true, false)
	a.pages.AddPage("queue", a.queueView, true, false)
	a.pages.AddPage("help", a.helpView, true, false)

	// Main layout
	a.mainFlex = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.header, 3, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false).
		AddItem(a.footer, 1, 0, false)

	a.app.SetInputCapture(a.handleGlobalKeys)
	a.app.SetRoot(a.mainFlex, true)
	a.app.SetFocus(a.connectForm)
	a.updateHeader()
}

// handleGlobalKeys handles global keyboard shortcuts. Rune keys belong to
// the focused panel so typing in the connect form is never intercepted.
func (a *App) handleGlobalKeys(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyF1:
		a.switchPanel(PanelConnect)
		return nil
	case tcell.KeyF2:
		a.switchPanel(PanelVMs)
		return nil
	case tcell.KeyF3:
		a.switchPanel(PanelQueue)
		return nil
	case tcell.KeyF10:
		a.switchPanel(PanelHelp)
		return nil
	case tcell.KeyCtrlD:
		a.setStatus("Disconnecting...")
		go a.disconnect()
		return nil
	case tcell.KeyCtrlQ:
		a.Stop()
		return nil
	}
	return event
}

// switchPanel switches to the specified panel.
func (a *App) switchPanel(panel Panel) {
	a.currentPanel = panel

	switch panel {
	case PanelConnect:
		a.pages.SwitchToPage("connect")
		a.app.SetFocus(a.connectForm)
	case PanelVMs:
		a.pages.SwitchToPage("vms")
		a.app.SetFocus(a.vmTable)
	case PanelQueue:
		a.pages.SwitchToPage("queue")
		a.app.SetFocus(a.historyBox)
	case PanelHelp:
		a.pages.SwitchToPage("help")
		a.app.SetFocus(a.helpView)
	}

	a.updateHeader()
}

// updateHeader updates the header with the panel name and session.
func (a *App) updateHeader() {
	var panelName string
	switch a.currentPanel {
	case PanelConnect:
		panelName = "Connect"
	case PanelVMs:
		panelName = "Virtual Machines"
	case PanelQueue:
		panelName = "Download Queue"
	case PanelHelp:
		panelName = "Help"
	}

	session := "[red]not connected"
	if info := a.console.Session(); info.Connected {
		session = fmt.Sprintf("[green]%s@%s", info.Username, info.Host)
	}

	a.header.SetText(fmt.Sprintf("\n[white::b]ovagrab[white] - [yellow]%s[white] | Service: [green]%s[white] | vCenter: %s",
		panelName, a.cfg.Backend.BaseURL, session))
}

// setStatus sets the status bar text. Call only from the UI goroutine.
func (a *App) setStatus(msg string) {
	a.statusBar.SetText(fmt.Sprintf(" %s | %s", msg, time.Now().Format("15:04:05")))
}

// updateStatusBar updates the status bar from a background goroutine.
func (a *App) updateStatusBar(msg string) {
	a.app.QueueUpdateDraw(func() {
		a.setStatus(msg)
	})
}

// showError reports a failed operation in the status bar and the log.
func (a *App) showError(op string, err error) {
	a.logger.Warn("operation failed", "op", op, "error", err)
	a.updateStatusBar(fmt.Sprintf("[red]%s", domain.UserMessage(err)))
}

// Run starts the TUI application and blocks until it stops.
func (a *App) Run() error {
	a.setStatus("Enter the vCenter host and credentials, then press Connect")
	return a.app.Run()
}

// Stop stops the TUI application. The session is left to expire on the
// service; queued exports keep running there.
func (a *App) Stop() {
	a.cancel()
	a.console.StopPolling()
	a.app.Stop()
}

// disconnect closes the session and returns to the connect panel.
func (a *App) disconnect() {
	if !a.console.Connected() {
		a.updateStatusBar("[yellow]Not connected")
		return
	}

	ctx, cancel := context.WithTimeout(a.ctx, 30*time.Second)
	defer cancel()

	msg, err := a.console.Disconnect(ctx)
	if err != nil {
		a.showError("disconnect", err)
		return
	}

	a.snapMu.Lock()
	a.snapshot = domain.QueueSnapshot{}
	a.pollErr = nil
	a.snapMu.Unlock()

	a.app.QueueUpdateDraw(func() {
		a.updateVMTable()
		a.updateFilterForm()
		a.updateQueueView()
		a.switchPanel(PanelConnect)
	})
	a.updateStatusBar(fmt.Sprintf("[green]%s", msg))
}

// onQueueUpdate runs on the poller goroutine.
func (a *App) onQueueUpdate(snap domain.QueueSnapshot) {
	a.snapMu.Lock()
	a.snapshot = snap
	a.pollErr = nil
	a.snapMu.Unlock()

	a.app.QueueUpdateDraw(a.updateQueueView)
}

// onQueueError runs on the poller goroutine. The last good snapshot stays
// on screen.
func (a *App) onQueueError(err error) {
	a.snapMu.Lock()
	a.pollErr = err
	a.snapMu.Unlock()

	a.logger.Debug("queue poll failed", "error", err)
	a.app.QueueUpdateDraw(a.updateQueueView)
}

func (a *App) queueState() (domain.QueueSnapshot, error) {
	a.snapMu.RLock()
	defer a.snapMu.RUnlock()
	return a.snapshot, a.pollErr
}
