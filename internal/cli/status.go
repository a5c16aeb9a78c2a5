package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yolodolo42/greeter/internal/greeting"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current greeting and counters",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// commandSession opens a session for a one-shot command. The returned
// function closes the chain connections.
func commandSession() (*session, func(), error) {
	s, err := loadSettings(viper.GetViper())
	if err != nil {
		return nil, nil, err
	}

	log, err := consoleLogger(s.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	client := s.newChainClient()
	chainName, err := resolveChain(s, client, false)
	if err != nil {
		client.Close()
		return nil, nil, err
	}

	sess, err := openSession(s, client, chainName, log)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return sess, client.Close, nil
}

func runStatus(cmd *cobra.Command, _ []string) error {
	sess, closeFn, err := commandSession()
	if err != nil {
		return err
	}
	defer closeFn()

	account, _, err := sess.account()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	snap, err := sess.contract.Snapshot(ctx, account)
	if err != nil {
		sess.log.Warn().Err(err).Msg("some contract reads failed")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Network:   %s (chain %d)\n", sess.chainCfg.Name, sess.chainCfg.ChainIDInt)
	fmt.Fprintf(out, "Contract:  %s\n", sess.contract.Address().Hex())
	fmt.Fprintln(out, "─────────────────────────────────────────────────────────")

	text := greeting.DisplayGreeting(snap.Greeting)
	if snap.Premium != nil && *snap.Premium {
		text += "  ✨ Premium"
	}
	fmt.Fprintf(out, "Greeting:  %s\n", text)
	fmt.Fprintf(out, "Total:     %s\n", greeting.FormatCounter(snap.TotalCounter))

	if account != nil {
		fmt.Fprintf(out, "Yours:     %s (%s)\n", greeting.FormatCounter(snap.UserCounter), greeting.ShortAddress(*account))
	}
	return nil
}
