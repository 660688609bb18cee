package cli

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/iconidentify/ovagrab/internal/service"
)

var exportCmd = &cobra.Command{
	Use:   "export <vm>...",
	Short: "Queue VMs for OVA export",
	Long: `Connect and queue the named VMs as one export batch. VMs are powered
off before export unless --no-poweroff is given. With --watch the queue is
followed until it drains.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExport,
}

var (
	exportNoPoweroff bool
	exportWatch      bool
)

var poweroffCmd = &cobra.Command{
	Use:   "poweroff <vm>",
	Short: "Power off one VM",
	Args:  cobra.ExactArgs(1),
	RunE:  runPoweroff,
}

func init() {
	exportCmd.Flags().BoolVar(&exportNoPoweroff, "no-poweroff", false, "Export running VMs without powering them off")
	exportCmd.Flags().BoolVarP(&exportWatch, "watch", "w", false, "Follow the queue until it drains")
}

// consolePoller adapts the console's polling controls for a watch.
type consolePoller struct {
	*service.Console
}

func (c consolePoller) Start() { c.StartPolling() }
func (c consolePoller) Stop()  { c.StopPolling() }

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	w := newWatcher(true)
	console, res, err := connect(ctx, service.ConsoleConfig{
		Journal:       recorder(),
		OnQueueUpdate: w.update,
		OnQueueError:  w.fail,
	})
	if err != nil {
		return err
	}
	defer console.Close()
	if !exportWatch {
		console.StopPolling()
	}

	if res.RefreshErr == nil {
		known := make([]string, 0, len(res.Inventory.VMs))
		for _, vm := range res.Inventory.VMs {
			known = append(known, vm.Name)
		}
		for _, name := range args {
			if !slices.Contains(known, name) {
				fmt.Fprintf(os.Stderr, "warning: %s is not in the inventory\n", name)
			}
		}
	}

	for _, name := range args {
		console.Toggle(name, true)
	}

	ack, err := console.Export(ctx, !exportNoPoweroff)
	if err != nil {
		return err
	}
	fmt.Printf("%s (queue size %d)\n", ack.Message, ack.QueueSize)

	if !exportWatch {
		return nil
	}
	return w.run(ctx, consolePoller{console})
}

func runPoweroff(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	console, _, err := connect(ctx, service.ConsoleConfig{})
	if err != nil {
		return err
	}
	defer console.Close()
	console.StopPolling()

	msg, err := console.PowerOff(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Println(msg)
	return nil
}
