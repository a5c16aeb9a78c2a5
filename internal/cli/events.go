package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/yolodolo42/greeter/internal/greeting"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recent greeting changes",
	Args:  cobra.NoArgs,
	RunE:  runEvents,
}

func init() {
	rootCmd.AddCommand(eventsCmd)

	eventsCmd.Flags().Int("limit", greeting.RecentLimit, "Number of recent events to show")
	eventsCmd.Flags().Bool("watch", false, "Keep streaming new events")
}

func printEvent(w io.Writer, ev greeting.Event, unit string) {
	badge := ""
	if ev.Premium {
		badge = "  ✨ Premium"
	}
	fmt.Fprintf(w, "#%d  %s%s\n", ev.BlockNumber, greeting.ShortAddress(ev.Setter), badge)
	fmt.Fprintf(w, "    %q\n", ev.NewGreeting)
	if sent := greeting.FormatSent(ev.Value, unit); sent != "" {
		fmt.Fprintf(w, "    %s\n", sent)
	}
}

func runEvents(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	watch, _ := cmd.Flags().GetBool("watch")
	if limit <= 0 {
		return fmt.Errorf("--limit must be positive")
	}

	sess, closeFn, err := commandSession()
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	histCtx, cancelHist := context.WithTimeout(ctx, 2*time.Minute)
	events, head, err := sess.contract.History(histCtx, sess.settings.FromBlock)
	cancelHist()
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	out := cmd.OutOrStdout()
	unit := sess.settings.DisplayUnit
	recent := greeting.Recent(events, limit)
	if len(recent) == 0 {
		fmt.Fprintln(out, "No greetings yet. Be the first!")
	}
	for _, ev := range recent {
		printEvent(out, ev, unit)
	}

	if !watch {
		return nil
	}

	sink := make(chan greeting.Event, 16)
	errCh := make(chan error, 1)
	go func() {
		errCh <- sess.contract.Watch(ctx, head+1, sink)
	}()

	for {
		select {
		case ev := <-sink:
			printEvent(out, ev, unit)
		case err := <-errCh:
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}
