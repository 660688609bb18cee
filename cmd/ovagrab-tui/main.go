// ovagrab TUI - terminal console for exporting vCenter VMs as OVA files
// through the export service.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/iconidentify/ovagrab/cmd/ovagrab-tui/internal/ui"
	"github.com/iconidentify/ovagrab/internal/config"
	"github.com/iconidentify/ovagrab/internal/journal"
	"github.com/iconidentify/ovagrab/internal/service"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// The screen belongs to tview; logs go to a file or nowhere.
	logger, closer, err := cfg.Log.NewLogger(io.Discard)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error setting up logging: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	var recorder service.Recorder
	if cfg.Journal.Path != "" {
		j, err := journal.Open(cfg.Journal.Path, logger.With("component", "journal"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening journal: %v\n", err)
			os.Exit(1)
		}
		defer j.Close()
		recorder = j
	}

	app, err := ui.NewApp(cfg, recorder, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing TUI: %v\n", err)
		os.Exit(1)
	}

	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}
}
