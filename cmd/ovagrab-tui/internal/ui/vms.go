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

const allOption = "(all)"

var filterLabels = map[domain.FilterDimension]string{
	domain.FilterHost:       "Host",
	domain.FilterCluster:    "Cluster",
	domain.FilterPowerState: "Power",
	domain.FilterFolder:     "Folder",
}

// createVMsPanel creates the filter bar and the VM table.
func (a *App) createVMsPanel() {
	a.filterForm = tview.NewForm().SetHorizontal(true)
	for _, dim := range domain.FilterDimensions {
		drop := tview.NewDropDown().
			SetLabel(filterLabels[dim]).
			SetFieldWidth(20)
		drop.SetOptions([]string{allOption}, func(text string, index int) {
			a.onFilterSelected(dim, text)
		})
		a.filterForm.AddFormItem(drop)
	}
	a.filterForm.AddButton("Clear", func() {
		a.console.ClearFilters()
		a.updateFilterForm()
		a.refreshInventory()
	})
	a.filterForm.SetBorder(true).SetTitle(" Filters - Escape returns to the table ")
	a.filterForm.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape {
			a.app.SetFocus(a.vmTable)
			return nil
		}
		return event
	})

	a.vmTable = tview.NewTable().
		SetBorders(false).
		SetSelectable(true, false).
		SetFixed(1, 0)
	a.vmTable.SetBorder(true).SetTitle(" VMs - Space:select a:all n:none e:export p:power off f:filters c:clear filters r:refresh ")
	a.vmTable.SetSelectedStyle(tcell.StyleDefault.
		Foreground(tcell.ColorWhite).
		Background(tcell.ColorDarkCyan))

	headers := []string{"", "NAME", "POWER", "HOST", "CLUSTER", "FOLDER", "CPU", "MEMORY", "STORAGE", "GUEST OS"}
	for i, h := range headers {
		cell := tview.NewTableCell(h).
			SetTextColor(tcell.ColorYellow).
			SetSelectable(false).
			SetExpansion(1)
		if i == 1 || i == len(headers)-1 {
			cell.SetExpansion(2)
		}
		a.vmTable.SetCell(0, i, cell)
	}

	a.vmTable.SetInputCapture(a.handleVMKeys)

	a.vmsView = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.filterForm, 3, 0, false).
		AddItem(a.vmTable, 0, 1, true)
}

// handleVMKeys handles the VM table key bindings.
func (a *App) handleVMKeys(event *tcell.EventKey) *tcell.EventKey {
	if event.Key() != tcell.KeyRune {
		return event
	}

	switch event.Rune() {
	case ' ':
		if name := a.selectedVM(); name != "" {
			a.console.Toggle(name, !a.console.IsSelected(name))
			a.updateVMTable()
		}
		return nil
	case 'a', 'A':
		a.console.SelectVisible()
		a.updateVMTable()
		return nil
	case 'n', 'N':
		a.console.ClearSelection()
		a.updateVMTable()
		return nil
	case 'e', 'E':
		a.confirmExport()
		return nil
	case 'p', 'P':
		if name := a.selectedVM(); name != "" {
			a.confirmPowerOff(name)
		}
		return nil
	case 'f', 'F':
		a.app.SetFocus(a.filterForm)
		return nil
	case 'c', 'C':
		a.console.ClearFilters()
		a.updateFilterForm()
		a.refreshInventory()
		return nil
	case 'r', 'R':
		a.refreshInventory()
		return nil
	}
	return event
}

// selectedVM returns the name of the highlighted row.
func (a *App) selectedVM() string {
	row, _ := a.vmTable.GetSelection()
	if row <= 0 {
		return ""
	}
	cell := a.vmTable.GetCell(row, 1)
	if cell == nil {
		return ""
	}
	name, _ := cell.GetReference().(string)
	return name
}

// onFilterSelected applies a dropdown change.
func (a *App) onFilterSelected(dim domain.FilterDimension, text string) {
	if a.syncingForm {
		return
	}

	value := text
	if text == allOption {
		value = ""
	}
	if a.console.Filters().Get(dim) == value {
		return
	}
	if err := a.console.SetFilter(dim, value); err != nil {
		a.setStatus(fmt.Sprintf("[red]%s", domain.UserMessage(err)))
		return
	}
	a.refreshInventory()
}

// refreshInventory reloads the VM list with the current filter.
func (a *App) refreshInventory() {
	a.setStatus("Loading VMs...")

	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, 60*time.Second)
		defer cancel()

		res, err := a.console.Refresh(ctx)
		if err != nil {
			a.showError("list vms", err)
			a.app.QueueUpdateDraw(a.updateHeader)
			return
		}

		a.app.QueueUpdateDraw(func() {
			a.updateFilterForm()
			a.updateVMTable()
		})

		msg := fmt.Sprintf("[green]%d VM(s)", res.Total)
		if len(res.Cleared) > 0 {
			names := make([]string, len(res.Cleared))
			for i, dim := range res.Cleared {
				names[i] = filterLabels[dim]
			}
			msg += fmt.Sprintf(" [yellow]| filter no longer available, cleared: %s", strings.Join(names, ", "))
		}
		a.updateStatusBar(msg)
	}()
}

// updateFilterForm rebuilds the dropdowns from the current options.
func (a *App) updateFilterForm() {
	a.syncingForm = true
	defer func() { a.syncingForm = false }()

	options := a.console.Options()
	filters := a.console.Filters()

	for i, dim := range domain.FilterDimensions {
		drop, ok := a.filterForm.GetFormItem(i).(*tview.DropDown)
		if !ok {
			continue
		}

		values := append([]string{allOption}, options.Values(dim)...)
		current := 0
		for j, v := range values {
			if j > 0 && v == filters.Get(dim) {
				current = j
			}
		}

		drop.SetOptions(values, func(text string, index int) {
			a.onFilterSelected(dim, text)
		})
		drop.SetCurrentOption(current)
	}
}

// updateVMTable redraws the table from the console's inventory.
func (a *App) updateVMTable() {
	for row := a.vmTable.GetRowCount() - 1; row > 0; row-- {
		a.vmTable.RemoveRow(row)
	}

	vms := a.console.VMs()
	for i, vm := range vms {
		row := i + 1

		mark := "[ ]"
		markColor := tcell.ColorWhite
		if a.console.IsSelected(vm.Name) {
			mark = "[x]"
			markColor = tcell.ColorGreen
		}
		a.vmTable.SetCell(row, 0, tview.NewTableCell(tview.Escape(mark)).SetTextColor(markColor))
		a.vmTable.SetCell(row, 1, tview.NewTableCell(vm.Name).
			SetExpansion(2).
			SetTextColor(tcell.ColorWhite).
			SetReference(vm.Name))
		a.vmTable.SetCell(row, 2, tview.NewTableCell(vm.PowerState).
			SetExpansion(1).
			SetTextColor(powerColor(vm.PowerState)))
		a.vmTable.SetCell(row, 3, tview.NewTableCell(vm.Host).SetExpansion(1))
		a.vmTable.SetCell(row, 4, tview.NewTableCell(vm.Cluster).SetExpansion(1))
		a.vmTable.SetCell(row, 5, tview.NewTableCell(vm.Folder).SetExpansion(1))
		a.vmTable.SetCell(row, 6, tview.NewTableCell(fmt.Sprintf("%d", vm.NumCPU)).SetExpansion(1))
		a.vmTable.SetCell(row, 7, tview.NewTableCell(formatMemory(vm.MemoryMB)).SetExpansion(1))
		a.vmTable.SetCell(row, 8, tview.NewTableCell(formatStorage(vm.StorageGB)).SetExpansion(1))
		a.vmTable.SetCell(row, 9, tview.NewTableCell(vm.GuestOS).SetExpansion(2))
	}

	if len(vms) == 0 {
		text := "No VMs loaded"
		if a.console.Connected() {
			text = "No VMs match the filter"
		}
		a.vmTable.SetCell(1, 1, tview.NewTableCell(text).
			SetTextColor(tcell.ColorYellow).
			SetSelectable(false))
	}

	a.vmTable.SetTitle(fmt.Sprintf(" VMs (%d, %d selected) - Space:select a:all n:none e:export p:power off f:filters c:clear filters r:refresh ",
		len(vms), len(a.console.Selected())))
}

// confirmExport asks how to export the selection.
func (a *App) confirmExport() {
	names := a.console.Selected()
	if len(names) == 0 {
		a.setStatus("[yellow]Select at least one VM first")
		return
	}

	modal := tview.NewModal().
		SetText(fmt.Sprintf("Export %d VM(s)?\n\n%s", len(names), truncateList(names, 8))).
		AddButtons([]string{"Power off and export", "Export running", "Cancel"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			a.pages.RemovePage("export-confirm")
			a.app.SetFocus(a.vmTable)
			switch buttonIndex {
			case 0:
				a.submitExport(true)
			case 1:
				a.submitExport(false)
			}
		})

	a.pages.AddPage("export-confirm", modal, true, true)
	a.app.SetFocus(modal)
}

// submitExport sends the selection in the background.
func (a *App) submitExport(poweroffBefore bool) {
	a.setStatus("Submitting export...")

	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, 60*time.Second)
		defer cancel()

		ack, err := a.console.Export(ctx, poweroffBefore)
		if err != nil {
			a.showError("export", err)
			return
		}

		a.app.QueueUpdateDraw(a.updateVMTable)
		a.updateStatusBar(fmt.Sprintf("[green]%s[white] | queue: %d", ack.Message, ack.QueueSize))
	}()
}

// confirmPowerOff asks before powering off one VM.
func (a *App) confirmPowerOff(name string) {
	modal := tview.NewModal().
		SetText(fmt.Sprintf("Power off %s?", name)).
		AddButtons([]string{"Power off", "Cancel"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			a.pages.RemovePage("poweroff-confirm")
			a.app.SetFocus(a.vmTable)
			if buttonIndex != 0 {
				return
			}

			a.setStatus(fmt.Sprintf("Powering off %s...", name))
			go func() {
				ctx, cancel := context.WithTimeout(a.ctx, 120*time.Second)
				defer cancel()

				msg, err := a.console.PowerOff(ctx, name)
				if err != nil {
					a.showError("poweroff", err)
					return
				}
				a.app.QueueUpdateDraw(a.updateVMTable)
				a.updateStatusBar(fmt.Sprintf("[green]%s", msg))
			}()
		})

	a.pages.AddPage("poweroff-confirm", modal, true, true)
	a.app.SetFocus(modal)
}
