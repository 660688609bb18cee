package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/iconidentify/ovagrab/internal/domain"
)

// createQueuePanel creates the download queue panel.
func (a *App) createQueuePanel() {
	a.currentBox = tview.NewTextView().
		SetDynamicColors(true)
	a.currentBox.SetBorder(true).SetTitle(" Current Download ")

	a.pendingList = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	a.pendingList.SetBorder(true).SetTitle(" Queue ")

	a.historyBox = tview.NewTable().
		SetBorders(false).
		SetSelectable(true, false).
		SetFixed(1, 0)
	a.historyBox.SetBorder(true).SetTitle(" History - x:cancel downloads s:start/stop polling u:update now ")

	headers := []string{"VM", "STATUS", "BATCH", "DETAIL"}
	for i, h := range headers {
		cell := tview.NewTableCell(h).
			SetTextColor(tcell.ColorYellow).
			SetSelectable(false).
			SetExpansion(1)
		if i == len(headers)-1 {
			cell.SetExpansion(3)
		}
		a.historyBox.SetCell(0, i, cell)
	}

	a.historyBox.SetInputCapture(a.handleQueueKeys)

	topRow := tview.NewFlex().
		AddItem(a.currentBox, 0, 2, false).
		AddItem(a.pendingList, 0, 1, false)

	a.queueView = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(topRow, 9, 0, false).
		AddItem(a.historyBox, 0, 1, true)

	a.updateQueueView()
}

// handleQueueKeys handles the queue panel key bindings.
func (a *App) handleQueueKeys(event *tcell.EventKey) *tcell.EventKey {
	if event.Key() != tcell.KeyRune {
		return event
	}

	switch event.Rune() {
	case 'x', 'X':
		a.confirmCancel()
		return nil
	case 's', 'S':
		if a.console.Polling() {
			a.console.StopPolling()
			a.setStatus("[yellow]Queue polling stopped")
		} else if a.console.Connected() {
			a.console.StartPolling()
			a.setStatus("[green]Queue polling started")
		}
		a.updateQueueView()
		return nil
	case 'u', 'U':
		a.pollNow()
		return nil
	}
	return event
}

// confirmCancel asks before cancelling every export.
func (a *App) confirmCancel() {
	modal := tview.NewModal().
		SetText("Cancel the running export and drop the queue?").
		AddButtons([]string{"Cancel downloads", "Keep"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			a.pages.RemovePage("cancel-confirm")
			a.app.SetFocus(a.historyBox)
			if buttonIndex != 0 {
				return
			}

			a.setStatus("Cancelling...")
			go func() {
				ctx, cancel := context.WithTimeout(a.ctx, 30*time.Second)
				defer cancel()

				msg, err := a.console.CancelDownloads(ctx)
				if err != nil {
					a.showError("cancel", err)
					return
				}
				a.updateStatusBar(fmt.Sprintf("[green]%s", msg))
			}()
		})

	a.pages.AddPage("cancel-confirm", modal, true, true)
	a.app.SetFocus(modal)
}

// pollNow fetches the queue state outside the ticker.
func (a *App) pollNow() {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, 30*time.Second)
		defer cancel()

		if _, err := a.console.PollNow(ctx); err != nil {
			a.showError("status", err)
		}
	}()
}

// updateQueueView redraws the queue panel from the last snapshot. Call only
// from the UI goroutine.
func (a *App) updateQueueView() {
	snap, pollErr := a.queueState()

	// Current download
	var cur strings.Builder
	if job := snap.Current; job != nil {
		cur.WriteString(fmt.Sprintf("[white::b]%s[white]\n", tview.Escape(job.VMName)))
		cur.WriteString(fmt.Sprintf("Status: [%s]%s[white]\n", statusColor(job.Status), job.Status))
		if job.HasProgress() {
			cur.WriteString(fmt.Sprintf("%s %3d%%\n", progressBar(job.Percent(), 30), job.Percent()))
		}
		if job.Message != "" {
			cur.WriteString(fmt.Sprintf("[dim]%s[white]\n", tview.Escape(job.Message)))
		}
		if job.PoweroffBefore {
			cur.WriteString("[dim]power off before export[white]\n")
		}
	} else {
		cur.WriteString("[dim]No download running[white]\n")
	}

	switch {
	case pollErr != nil:
		cur.WriteString(fmt.Sprintf("\n[red]Status update failed: %s[white]", tview.Escape(domain.UserMessage(pollErr))))
	case !a.console.Polling():
		cur.WriteString("\n[yellow]Polling stopped[white]")
	case !snap.FetchedAt.IsZero():
		cur.WriteString(fmt.Sprintf("\n[dim]Updated %s[white]", snap.FetchedAt.Format("15:04:05")))
	}
	a.currentBox.SetText(cur.String())

	// Pending
	var pending strings.Builder
	if len(snap.Queue) == 0 {
		pending.WriteString("[dim]Queue empty[white]")
	}
	for i, job := range snap.Queue {
		pending.WriteString(fmt.Sprintf("%2d. %s\n", i+1, tview.Escape(job.VMName)))
	}
	a.pendingList.SetText(pending.String())
	a.pendingList.SetTitle(fmt.Sprintf(" Queue (%d) ", snap.QueueSize))

	// History, newest first
	for row := a.historyBox.GetRowCount() - 1; row > 0; row-- {
		a.historyBox.RemoveRow(row)
	}
	for i := len(snap.History) - 1; i >= 0; i-- {
		job := snap.History[i]
		row := len(snap.History) - i
		a.historyBox.SetCell(row, 0, tview.NewTableCell(job.VMName).SetExpansion(1))
		a.historyBox.SetCell(row, 1, tview.NewTableCell(string(job.Status)).
			SetExpansion(1).
			SetTextColor(tcellStatusColor(job.Status)))
		a.historyBox.SetCell(row, 2, tview.NewTableCell(job.Timestamp).SetExpansion(1))
		a.historyBox.SetCell(row, 3, tview.NewTableCell(job.Detail()).SetExpansion(3))
	}
	if len(snap.History) == 0 {
		a.historyBox.SetCell(1, 0, tview.NewTableCell("No finished exports").
			SetTextColor(tcell.ColorYellow).
			SetSelectable(false))
	}
}
