package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/iconidentify/ovagrab/internal/domain"
	"github.com/iconidentify/ovagrab/internal/worker"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the download queue",
	Long: `Show the running export, the queue and the recent history. With --watch
the queue is polled until interrupted, or until it drains with --until-idle.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel the running export and drop the queue",
	Args:  cobra.NoArgs,
	RunE:  runCancel,
}

var (
	statusWatch     bool
	statusUntilIdle bool
	statusInterval  time.Duration
)

// errQueueIdle ends a watch once the queue has drained.
var errQueueIdle = errors.New("queue idle")

func init() {
	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "Keep polling and print every change")
	statusCmd.Flags().BoolVar(&statusUntilIdle, "until-idle", false, "With --watch, stop once nothing is running or queued")
	statusCmd.Flags().DurationVar(&statusInterval, "interval", 0, "Polling interval (default: OVAGRAB_POLL_INTERVAL)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := newClient()

	if !statusWatch {
		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Backend.Timeout)
		defer cancel()

		snap, err := client.Status(ctx)
		if err != nil {
			return err
		}
		recordHistory(ctx, *snap)
		printSnapshot(os.Stdout, *snap)
		return nil
	}

	interval := statusInterval
	if interval <= 0 {
		interval = cfg.Poll.Interval
	}

	w := newWatcher(statusUntilIdle)
	poller := worker.NewPoller(worker.PollerConfig{
		Interval: interval,
		Timeout:  cfg.Poll.Timeout,
		OnUpdate: func(snap domain.QueueSnapshot) {
			recordHistory(context.Background(), snap)
			w.update(snap)
		},
		OnError: w.fail,
	}, client, logger.With("component", "poller"))

	return w.run(cmd.Context(), poller)
}

func runCancel(cmd *cobra.Command, args []string) error {
	msg, err := newClient().Cancel(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Println(msg)
	return nil
}

// queuePoller is what a watch drives: *worker.Poller or *service.Console.
type queuePoller interface {
	PollNow(ctx context.Context) (domain.QueueSnapshot, error)
}

// watcher prints queue snapshots as they arrive.
type watcher struct {
	untilIdle bool
	updates   chan domain.QueueSnapshot
	errs      chan error
}

func newWatcher(untilIdle bool) *watcher {
	return &watcher{
		untilIdle: untilIdle,
		updates:   make(chan domain.QueueSnapshot, 1),
		errs:      make(chan error, 1),
	}
}

// update hands a snapshot to the printer, replacing one not yet printed.
func (w *watcher) update(snap domain.QueueSnapshot) {
	select {
	case w.updates <- snap:
		return
	default:
	}
	select {
	case <-w.updates:
	default:
	}
	select {
	case w.updates <- snap:
	default:
	}
}

func (w *watcher) fail(err error) {
	select {
	case w.errs <- err:
	default:
	}
}

// run starts p, prints until interrupted and stops p. p must already be
// configured to call update and fail.
func (w *watcher) run(ctx context.Context, p interface {
	queuePoller
	Start()
	Stop()
}) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	p.Start()
	defer p.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if _, err := p.PollNow(gctx); err != nil {
			logger.Debug("initial status poll failed", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		return w.print(gctx)
	})

	err := g.Wait()
	if errors.Is(err, errQueueIdle) {
		return nil
	}
	return err
}

func (w *watcher) print(ctx context.Context) error {
	var last string
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-w.errs:
			fmt.Fprintf(os.Stderr, "%s status update failed: %s\n", time.Now().Format("15:04:05"), domain.UserMessage(err))
		case snap := <-w.updates:
			text := renderSnapshot(snap)
			if text != last {
				fmt.Printf("--- %s\n%s", snap.FetchedAt.Local().Format("15:04:05"), text)
				last = text
			}
			if w.untilIdle && snap.IsIdle() {
				return errQueueIdle
			}
		}
	}
}
