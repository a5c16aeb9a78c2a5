package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yolodolo42/greeter/internal/greeting"
	"github.com/yolodolo42/greeter/internal/wallet"
)

var setCmd = &cobra.Command{
	Use:   "set <greeting>",
	Short: "Update the greeting",
	Long: `Send setGreeting from the connected account and wait for it to be mined.

Attach native currency with --value to make the greeting premium.`,
	Args: cobra.ExactArgs(1),
	RunE: runSet,
}

func init() {
	rootCmd.AddCommand(setCmd)

	setCmd.Flags().String("value", "", "Amount of native currency to send with the greeting (e.g. 0.01)")
}

func runSet(cmd *cobra.Command, args []string) error {
	valueDraft, _ := cmd.Flags().GetString("value")

	sess, closeFn, err := commandSession()
	if err != nil {
		return err
	}
	defer closeFn()

	sub, err := greeting.ParseDraft(args[0], valueDraft, sess.chainCfg.Decimals)
	if err != nil {
		return err
	}

	account, km, err := sess.account()
	if err != nil {
		return err
	}
	if account == nil {
		return fmt.Errorf("%w: use 'greeter wallet create' or 'greeter wallet import' first", wallet.ErrNoAccount)
	}

	transactor, release, err := sess.unlock(km, *account)
	if err != nil {
		return err
	}
	defer release()

	ctx, cancel := signalContext(cmd)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, 3*time.Minute)
	defer cancelTimeout()

	receipt, err := transactor.SetGreeting(ctx, sub.Text, sub.Value)
	if err != nil {
		sess.log.Error().Err(err).Msg("error setting greeting")
		if receipt != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Transaction: %s\n", receipt.TxHash.Hex())
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("timed out waiting for the transaction: %w", err)
		}
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Greeting updated successfully!")
	fmt.Fprintf(out, "Transaction: %s\n", receipt.TxHash.Hex())
	fmt.Fprintf(out, "Block:       %d\n", receipt.BlockNumber.Uint64())
	if url := sess.chainCfg.TxURL(receipt.TxHash.Hex()); url != "" {
		fmt.Fprintf(out, "Explorer:    %s\n", url)
	}
	return nil
}
