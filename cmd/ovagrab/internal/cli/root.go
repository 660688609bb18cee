// Package cli provides the command-line interface for ovagrab.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/iconidentify/ovagrab/internal/config"
	"github.com/iconidentify/ovagrab/pkg/ovaclient"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

var (
	configPath  string
	baseURL     string
	vcenterHost string
	username    string
	verbose     bool

	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer = nopCloser{}
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

var rootCmd = &cobra.Command{
	Use:   "ovagrab",
	Short: "ovagrab - export vCenter VMs as OVA files",
	Long: `ovagrab drives an OVA export service: list and filter the VMs of a
vCenter, queue them for export, watch the download queue and cancel it.

The service keeps one session per operator. Commands that need the inventory
connect first; the password comes from OVAGRAB_PASSWORD or a prompt.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		return setup()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if err := closeJournal(); err != nil {
			logger.Warn("failed to close journal", "error", err)
		}
		return logCloser.Close()
	},
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		return fmt.Errorf("command failed: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "", "Export service URL (overrides OVAGRAB_BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&vcenterHost, "vcenter", "", "vCenter host (overrides OVAGRAB_VCENTER_HOST)")
	rootCmd.PersistentFlags().StringVarP(&username, "user", "u", "", "vCenter username (overrides OVAGRAB_USERNAME)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(vmsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(poweroffCmd)
	rootCmd.AddCommand(disconnectCmd)
	rootCmd.AddCommand(historyCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ovagrab %s (built %s)\n", Version, BuildTime)
	},
}

// setup loads the configuration and applies the flag overrides.
func setup() error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if baseURL != "" {
		c.Backend.BaseURL = baseURL
	}
	if vcenterHost != "" {
		c.Backend.Host = vcenterHost
	}
	if username != "" {
		c.Backend.Username = username
	}
	if verbose {
		c.Log.Level = "debug"
		c.Log.Format = "text"
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	// Only warnings reach the terminal unless asked for more.
	if !verbose && c.Log.File == "" {
		c.Log.Level = "warn"
	}
	l, closer, err := c.Log.NewLogger(os.Stderr)
	if err != nil {
		return err
	}

	cfg = c
	logger = l
	logCloser = closer
	return nil
}

func newClient() *ovaclient.Client {
	return ovaclient.NewClient(cfg.Backend.BaseURL, ovaclient.Options{
		Timeout:   cfg.Backend.Timeout,
		UserAgent: cfg.Backend.UserAgent,
	})
}
