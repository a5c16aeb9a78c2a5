package cli

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yolodolo42/greeter/internal/chain"
	"github.com/yolodolo42/greeter/internal/dashboard"
	"github.com/yolodolo42/greeter/internal/ui"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "greeter",
		Short: "Terminal client for the on-chain greeting contract",
		Long: `greeter shows and updates the greeting stored in a greeting contract.

Run without a sub-command to open the interactive dashboard: current
greeting, counters, an update form and recent activity. The sub-commands
expose the same operations for scripting.`,
		SilenceUsage: true,
		RunE:         runDashboard,
	}
)

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.greeter/config.yaml)")
	flags.String("chain", "", "Chain profile to use (intuition, intuition-testnet)")
	flags.String("contract", "", "Greeting contract address")
	flags.String("account", "", "Keystore account to connect (default: first account)")
	flags.String("data-dir", "", "Directory for the keystore, receipts and logs")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	_ = viper.BindPFlag("chain", flags.Lookup("chain"))
	_ = viper.BindPFlag("contract_address", flags.Lookup("contract"))
	_ = viper.BindPFlag("account", flags.Lookup("account"))
	_ = viper.BindPFlag("data_dir", flags.Lookup("data-dir"))
	_ = viper.BindPFlag("log_level", flags.Lookup("log-level"))

	rootCmd.Flags().Bool("read-only", false, "Browse without unlocking a wallet")
}

func initConfig() {
	home, err := os.UserHomeDir()
	cobra.CheckErr(err)
	setDefaults(viper.GetViper(), home)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		configDir := filepath.Join(home, ".greeter")
		if err := os.MkdirAll(configDir, 0700); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create config directory: %v\n", err)
		}

		viper.AddConfigPath(configDir)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("GREETER")
	viper.AutomaticEnv()
	_ = viper.BindEnv("password")

	// Silently ignore missing config file - it's optional
	_ = viper.ReadInConfig()
}

// signalContext is cancelled on interrupt or termination.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// resolveChain returns the configured chain, asks for one on an interactive
// terminal, or falls back to the testnet.
func resolveChain(s *Settings, client *chain.Client, interactive bool) (string, error) {
	if s.Chain != "" {
		return s.Chain, nil
	}
	if !interactive {
		return defaultChain, nil
	}

	names := client.ListChains()
	items := make([]ui.SelectorItem, 0, len(names))
	for _, name := range names {
		cfg, err := client.GetChainConfig(name)
		if err != nil {
			continue
		}
		desc := fmt.Sprintf("chain %d · %s", cfg.ChainIDInt, cfg.NativeCurrency)
		if cfg.IsTestnet {
			desc += " · testnet"
		}
		items = append(items, ui.SelectorItem{
			ID:          name,
			Label:       cfg.Name,
			Description: desc,
			Current:     name == defaultChain,
		})
	}
	return ui.Pick("Select network", items)
}

func runDashboard(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings(viper.GetViper())
	if err != nil {
		return err
	}

	logFile, err := openLogFile(s.LogFile)
	if err != nil {
		return err
	}
	defer logFile.Close()

	log, err := newLogger(s.LogLevel, logFile)
	if err != nil {
		return err
	}

	client := s.newChainClient()
	defer client.Close()

	chainName, err := resolveChain(s, client, isInteractive())
	if errors.Is(err, ui.ErrCancelled) {
		return nil
	}
	if err != nil {
		return err
	}

	sess, err := openSession(s, client, chainName, log)
	if err != nil {
		return err
	}

	account, km, err := sess.account()
	if err != nil {
		return err
	}

	cfg := dashboard.Config{
		Chain:        sess.chainCfg,
		Account:      account,
		Source:       sess.contract,
		Feed:         sess.contract,
		FromBlock:    s.FromBlock,
		Unit:         s.DisplayUnit,
		PollInterval: s.PollInterval,
		Logger:       sess.log,
	}

	readOnly, _ := cmd.Flags().GetBool("read-only")
	if account != nil {
		addr := *account
		cfg.Balance = func(ctx context.Context) (*big.Int, error) {
			return client.GetBalance(ctx, chainName, addr)
		}

		if !readOnly {
			transactor, release, err := sess.unlock(km, addr)
			if err != nil {
				return err
			}
			defer release()
			cfg.Submitter = transactor
		}
	} else {
		sess.log.Info().Msg("no wallet found, dashboard is read-only")
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	sess.log.Info().
		Str("contract", sess.contract.Address().Hex()).
		Bool("read_only", cfg.Submitter == nil).
		Msg("starting dashboard")

	return dashboard.Run(ctx, cfg)
}
