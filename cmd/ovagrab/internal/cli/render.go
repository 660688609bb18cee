package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/iconidentify/ovagrab/internal/domain"
	"github.com/iconidentify/ovagrab/internal/journal"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// printVMs writes the inventory as a table.
func printVMs(w io.Writer, vms []domain.VirtualMachine) {
	if len(vms) == 0 {
		fmt.Fprintln(w, "No VMs found")
		return
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "NAME\tPOWER\tHOST\tCLUSTER\tFOLDER\tCPU\tMEMORY\tSTORAGE\tGUEST OS")
	for _, vm := range vms {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			vm.Name, vm.PowerState, vm.Host, vm.Cluster, vm.Folder, vm.NumCPU,
			humanize.IBytes(uint64(vm.MemoryMB)*1024*1024),
			humanize.IBytes(uint64(vm.StorageGB*(1<<30))),
			vm.GuestOS)
	}
	tw.Flush()
	fmt.Fprintf(w, "%d VM(s)\n", len(vms))
}

// printOptions writes the filter values available for each dimension.
func printOptions(w io.Writer, opts domain.FilterOptions) {
	tw := newTable(w)
	for _, dim := range domain.FilterDimensions {
		values := opts.Values(dim)
		list := "-"
		if len(values) > 0 {
			list = strings.Join(values, ", ")
		}
		fmt.Fprintf(tw, "--%s\t%s\n", strings.ReplaceAll(string(dim), "_", "-"), list)
	}
	tw.Flush()
}

// renderSnapshot formats the queue state.
func renderSnapshot(snap domain.QueueSnapshot) string {
	var b strings.Builder

	if job := snap.Current; job != nil {
		fmt.Fprintf(&b, "Current: %s [%s]", job.VMName, job.Status)
		if job.HasProgress() {
			fmt.Fprintf(&b, " %d%%", job.Percent())
		}
		if job.Message != "" {
			fmt.Fprintf(&b, " %s", job.Message)
		}
		b.WriteString("\n")
	} else {
		b.WriteString("Current: none\n")
	}

	fmt.Fprintf(&b, "Queue (%d):", snap.QueueSize)
	if len(snap.Queue) == 0 {
		b.WriteString(" empty")
	}
	for _, job := range snap.Queue {
		fmt.Fprintf(&b, " %s", job.VMName)
	}
	b.WriteString("\n")

	if len(snap.History) > 0 {
		b.WriteString("History:\n")
		tw := newTable(&b)
		for i := len(snap.History) - 1; i >= 0; i-- {
			job := snap.History[i]
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", job.VMName, job.Status, job.Timestamp, job.Detail())
		}
		tw.Flush()
	}

	return b.String()
}

func printSnapshot(w io.Writer, snap domain.QueueSnapshot) {
	io.WriteString(w, renderSnapshot(snap))
}

// printJournal writes archived exports, newest first.
func printJournal(w io.Writer, entries []journal.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No exports recorded")
		return
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "SEEN\tHOST\tVM\tSTATUS\tBATCH\tDETAIL")
	for _, e := range entries {
		detail := e.FilePath
		if e.Status == domain.JobStatusFailed {
			detail = e.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			humanize.Time(e.RecordedAt), e.Host, e.VMName, e.Status, e.BatchTime, detail)
	}
	tw.Flush()
}
