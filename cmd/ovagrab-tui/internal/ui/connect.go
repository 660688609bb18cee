package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rivo/tview"

	"github.com/iconidentify/ovagrab/internal/session"
)

const (
	labelHost     = "vCenter host"
	labelUser     = "Username"
	labelPassword = "Password"
)

// createConnectPanel creates the connection form.
func (a *App) createConnectPanel() {
	a.connectForm = tview.NewForm().
		AddInputField(labelHost, a.cfg.Backend.Host, 40, nil, nil).
		AddInputField(labelUser, a.cfg.Backend.Username, 40, nil, nil).
		AddPasswordField(labelPassword, "", 40, '*', nil)

	a.connectForm.AddButton("Connect", a.submitConnect)
	a.connectForm.AddButton("Quit", a.Stop)
	a.connectForm.SetBorder(true).SetTitle(" Connect to vCenter ")

	// Center the form
	a.connectView = tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(a.connectForm, 11, 0, true).
			AddItem(nil, 0, 1, false), 60, 0, true).
		AddItem(nil, 0, 1, false)
}

// submitConnect reads the form and connects in the background.
func (a *App) submitConnect() {
	creds := session.Credentials{
		Host:     strings.TrimSpace(a.connectForm.GetFormItemByLabel(labelHost).(*tview.InputField).GetText()),
		Username: strings.TrimSpace(a.connectForm.GetFormItemByLabel(labelUser).(*tview.InputField).GetText()),
		Password: a.connectForm.GetFormItemByLabel(labelPassword).(*tview.InputField).GetText(),
	}

	a.setStatus(fmt.Sprintf("Connecting to %s...", creds.Host))

	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, 60*time.Second)
		defer cancel()

		res, err := a.console.Connect(ctx, creds)
		if err != nil {
			a.showError("connect", err)
			return
		}

		a.app.QueueUpdateDraw(func() {
			a.connectForm.GetFormItemByLabel(labelPassword).(*tview.InputField).SetText("")
			a.updateFilterForm()
			a.updateVMTable()
			a.switchPanel(PanelVMs)
		})

		if res.RefreshErr != nil {
			a.showError("list vms", res.RefreshErr)
			return
		}
		a.updateStatusBar(fmt.Sprintf("[green]%s[white] | %d VM(s)", res.Session.Message, res.Inventory.Total))
	}()
}
