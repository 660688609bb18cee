package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/iconidentify/ovagrab/internal/service"
	"github.com/iconidentify/ovagrab/internal/session"
)

// passwordEnv names the variable checked before prompting.
const passwordEnv = "OVAGRAB_PASSWORD"

var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Close the session on the export service",
	Long: `Close the operator session. The service drops the queued and running
exports; its history is kept.`,
	Args: cobra.NoArgs,
	RunE: runDisconnect,
}

func runDisconnect(cmd *cobra.Command, args []string) error {
	msg, err := newClient().Disconnect(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Println(msg)
	return nil
}

// connect opens a console session with the configured credentials. The
// caller closes the console; the session is left open on the service so
// queued exports keep running.
func connect(ctx context.Context, opts service.ConsoleConfig) (*service.Console, service.ConnectResult, error) {
	if cfg.Backend.Host == "" {
		return nil, service.ConnectResult{}, errors.New("vCenter host required (--vcenter or OVAGRAB_VCENTER_HOST)")
	}
	if cfg.Backend.Username == "" {
		return nil, service.ConnectResult{}, errors.New("username required (--user or OVAGRAB_USERNAME)")
	}

	password, err := readPassword(cfg.Backend.Username, cfg.Backend.Host)
	if err != nil {
		return nil, service.ConnectResult{}, fmt.Errorf("read password: %w", err)
	}

	if opts.PollInterval == 0 {
		opts.PollInterval = cfg.Poll.Interval
	}
	if opts.PollTimeout == 0 {
		opts.PollTimeout = cfg.Poll.Timeout
	}

	console := service.NewConsole(newClient(), opts, logger)
	res, err := console.Connect(ctx, session.Credentials{
		Host:     cfg.Backend.Host,
		Username: cfg.Backend.Username,
		Password: password,
	})
	if err != nil {
		console.Close()
		return nil, service.ConnectResult{}, err
	}

	logger.Debug("connected", "host", res.Session.Host, "message", res.Session.Message)
	return console, res, nil
}

// readPassword takes the password from the environment or prompts without
// echo. Piped input is read as one line.
func readPassword(user, host string) (string, error) {
	if pw, ok := os.LookupEnv(passwordEnv); ok {
		return pw, nil
	}

	fmt.Fprintf(os.Stderr, "Password for %s@%s: ", user, host)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		password, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(password), nil
	}

	reader := bufio.NewReader(os.Stdin)
	password, err := reader.ReadString('\n')
	if err != nil && password == "" {
		return "", err
	}
	return strings.TrimRight(password, "\r\n"), nil
}
