package ui

import (
	"github.com/rivo/tview"
)

// createHelpPanel creates the help panel.
func (a *App) createHelpPanel() {
	a.helpView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	a.helpView.SetBorder(true).SetTitle(" Help ")

	helpText := `[yellow::b]ovagrab - OVA export console[white]

Connect to a vCenter through the export service, pick virtual machines and
queue them for export as OVA files. The download queue refreshes on its own
while connected.

[yellow::b]GLOBAL NAVIGATION[white]
[cyan]F1[white]           Connect        - vCenter host and credentials
[cyan]F2[white]           VMs            - Inventory, filters and selection
[cyan]F3[white]           Queue          - Current download, queue and history
[cyan]F10[white]          Help           - This help screen
[cyan]Ctrl+D[white]       Disconnect     - Close the session, clear the selection
[cyan]Ctrl+Q[white]       Quit           - Exit (exports keep running on the service)

[yellow::b]VMS PANEL[white]
[cyan]Space[white]        Select or deselect the highlighted VM
[cyan]a[white]            Select every VM shown
[cyan]n[white]            Clear the selection
[cyan]e[white]            Export the selection (optionally powering VMs off first)
[cyan]p[white]            Power off the highlighted VM
[cyan]f[white]            Move to the filter bar ([cyan]Escape[white] returns)
[cyan]c[white]            Clear every filter
[cyan]r[white]            Reload the inventory

The selection survives filter changes: VMs hidden by a filter stay selected.
Filter choices always list every value of the unfiltered inventory. A value
that disappears from the inventory is cleared on the next reload.

[yellow::b]QUEUE PANEL[white]
[cyan]x[white]            Cancel the running export and drop the queue
[cyan]s[white]            Stop or restart queue polling
[cyan]u[white]            Update the queue now

When an update fails the last good state stays on screen with the error.

[yellow::b]ENVIRONMENT VARIABLES[white]
[cyan]OVAGRAB_BASE_URL[white]        Export service URL (default: http://localhost:5000)
[cyan]OVAGRAB_VCENTER_HOST[white]    Prefilled vCenter host
[cyan]OVAGRAB_USERNAME[white]        Prefilled username
[cyan]OVAGRAB_POLL_INTERVAL[white]   Queue refresh interval (default: 2s)
[cyan]OVAGRAB_JOURNAL_PATH[white]    SQLite file archiving finished exports
[cyan]OVAGRAB_LOG_FILE[white]        Log file (logs are discarded otherwise)
[cyan]OVAGRAB_LOG_LEVEL[white]       debug, info, warn or error

[dim]Press F1, F2 or F3 to return to a panel[white]
`

	a.helpView.SetText(helpText)
}
