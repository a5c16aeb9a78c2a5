package cli

import (
	"fmt"
	"math/big"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"github.com/yolodolo42/greeter/internal/chain"
)

// Settings is the decoded configuration shared by every command.
type Settings struct {
	Chain           string                        `mapstructure:"chain"`
	ContractAddress string                        `mapstructure:"contract_address"`
	Account         string                        `mapstructure:"account"`
	FromBlock       uint64                        `mapstructure:"from_block"`
	EventBatchSize  uint64                        `mapstructure:"event_batch_size"`
	PollInterval    time.Duration                 `mapstructure:"poll_interval"`
	MaxValue        string                        `mapstructure:"max_value"`
	DisplayUnit     string                        `mapstructure:"display_unit"`
	LogLevel        string                        `mapstructure:"log_level"`
	LogFile         string                        `mapstructure:"log_file"`
	DataDir         string                        `mapstructure:"data_dir"`
	Chains          map[string]*chain.ChainConfig `mapstructure:"chains"`
}

const defaultChain = chain.IntuitionTestnet

func setDefaults(v *viper.Viper, home string) {
	v.SetDefault("chain", "")
	v.SetDefault("contract_address", "")
	v.SetDefault("account", "")
	v.SetDefault("from_block", 0)
	v.SetDefault("event_batch_size", 2000)
	v.SetDefault("poll_interval", 4*time.Second)
	v.SetDefault("max_value", "")
	v.SetDefault("display_unit", "ETH")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("data_dir", filepath.Join(home, ".greeter"))
}

// loadSettings decodes and checks the configuration held by v.
func loadSettings(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if s.LogFile == "" {
		s.LogFile = filepath.Join(s.DataDir, "greeter.log")
	}
	for _, cfg := range s.Chains {
		if cfg != nil {
			cfg.Normalize()
		}
	}

	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) validate() error {
	if s.DataDir == "" {
		return fmt.Errorf("data_dir must be set")
	}
	if s.ContractAddress != "" && !common.IsHexAddress(s.ContractAddress) {
		return fmt.Errorf("invalid contract_address: %s", s.ContractAddress)
	}
	if s.Account != "" && !common.IsHexAddress(s.Account) {
		return fmt.Errorf("invalid account: %s", s.Account)
	}
	if s.EventBatchSize == 0 {
		return fmt.Errorf("event_batch_size must be positive")
	}
	if s.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	for name, cfg := range s.Chains {
		if cfg == nil || len(cfg.RPCURLs) == 0 {
			return fmt.Errorf("chain %s: rpc_urls must be set", name)
		}
		if cfg.ChainIDInt <= 0 {
			return fmt.Errorf("chain %s: chain_id must be positive", name)
		}
	}
	if s.MaxValue != "" {
		if _, err := chain.ParseUnits(s.MaxValue, 18); err != nil {
			return fmt.Errorf("invalid max_value %q: %w", s.MaxValue, err)
		}
	}
	return nil
}

// newChainClient returns a client that knows the default profiles plus
// every profile from the config.
func (s *Settings) newChainClient() *chain.Client {
	client := chain.NewClient()
	for name, cfg := range s.Chains {
		client.AddChain(name, cfg)
	}
	return client
}

// checkChain reports an unknown chain name before anything is dialed.
func (s *Settings) checkChain(client *chain.Client, name string) error {
	if _, err := client.GetChainConfig(name); err != nil {
		return fmt.Errorf("%w (available: %v)", err, client.ListChains())
	}
	return nil
}

func (s *Settings) contract() (common.Address, error) {
	if s.ContractAddress == "" {
		return common.Address{}, fmt.Errorf("contract_address is not set (use --contract or GREETER_CONTRACT_ADDRESS)")
	}
	return common.HexToAddress(s.ContractAddress), nil
}

// maxValueWei returns the spend cap in base units, or nil when unlimited.
func (s *Settings) maxValueWei(decimals uint8) (*big.Int, error) {
	if s.MaxValue == "" {
		return nil, nil
	}
	return chain.ParseUnits(s.MaxValue, decimals)
}
