package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iconidentify/ovagrab/internal/domain"
	"github.com/iconidentify/ovagrab/internal/service"
)

var vmsCmd = &cobra.Command{
	Use:   "vms",
	Short: "List the VMs of the vCenter",
	Long: `Connect and list the VMs, optionally filtered by host, cluster, power
state and folder. The available filter values are printed below the table.`,
	Args: cobra.NoArgs,
	RunE: runVMs,
}

var (
	vmsFilter  domain.FilterState
	vmsJSON    bool
	vmsOptions bool
)

func init() {
	vmsCmd.Flags().StringVar(&vmsFilter.Host, "host", "", "Only VMs on this ESXi host")
	vmsCmd.Flags().StringVar(&vmsFilter.Cluster, "cluster", "", "Only VMs in this cluster")
	vmsCmd.Flags().StringVar(&vmsFilter.PowerState, "power-state", "", "Only VMs in this power state (poweredOn, poweredOff, suspended)")
	vmsCmd.Flags().StringVar(&vmsFilter.Folder, "folder", "", "Only VMs in this folder")
	vmsCmd.Flags().BoolVar(&vmsJSON, "json", false, "Print JSON")
	vmsCmd.Flags().BoolVar(&vmsOptions, "options", true, "Print the available filter values")
}

func runVMs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	console, _, err := connect(ctx, service.ConsoleConfig{})
	if err != nil {
		return err
	}
	defer console.Close()
	console.StopPolling()

	for dim, value := range vmsFilter.Params() {
		if err := console.SetFilter(domain.FilterDimension(dim), value); err != nil {
			return err
		}
	}

	res, err := console.Refresh(ctx)
	if err != nil {
		return err
	}

	for _, dim := range res.Cleared {
		fmt.Fprintf(os.Stderr, "warning: %s %q not found, filter ignored\n", dim, vmsFilter.Get(dim))
	}

	if vmsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			VMs           []domain.VirtualMachine `json:"vms"`
			FilterOptions domain.FilterOptions    `json:"filter_options"`
			Total         int                     `json:"total"`
		}{res.VMs, res.Options, res.Total})
	}

	printVMs(os.Stdout, res.VMs)
	if vmsOptions {
		fmt.Println()
		printOptions(os.Stdout, res.Options)
	}
	return nil
}
