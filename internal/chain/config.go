package chain

import "math/big"

// ChainConfig holds configuration for an EVM chain.
// Invariant: ChainID and ChainIDInt must always represent the same value.
// ChainIDInt exists for YAML serialization (big.Int doesn't serialize cleanly).
// ChainID is used at runtime for RPC calls and transaction signing.
type ChainConfig struct {
	Name           string   `yaml:"name" mapstructure:"name"`
	ChainID        *big.Int `yaml:"-" mapstructure:"-"`              // Runtime use (signing, RPC validation)
	ChainIDInt     int64    `yaml:"chain_id" mapstructure:"chain_id"` // YAML serialization
	RPCURLs        []string `yaml:"rpc_urls" mapstructure:"rpc_urls"`
	WSURLs         []string `yaml:"ws_urls" mapstructure:"ws_urls"`
	ExplorerURL    string   `yaml:"explorer_url" mapstructure:"explorer_url"`
	NativeCurrency string   `yaml:"native_currency" mapstructure:"native_currency"`
	Decimals       uint8    `yaml:"decimals" mapstructure:"decimals"`
	IsTestnet      bool     `yaml:"is_testnet" mapstructure:"is_testnet"`
}

const (
	Intuition        = "intuition"
	IntuitionTestnet = "intuition-testnet"
)

// DefaultChains returns the default chain configurations. Every call builds
// fresh values, so callers may modify what they get without affecting others.
//
// Both Intuition networks publish chain ID 1155.
func DefaultChains() map[string]*ChainConfig {
	return map[string]*ChainConfig{
		Intuition: {
			Name:           "Intuition",
			ChainID:        big.NewInt(1155),
			ChainIDInt:     1155,
			RPCURLs:        []string{"https://rpc.intuition.systems/http"},
			WSURLs:         []string{"wss://rpc.intuition.systems/ws"},
			ExplorerURL:    "https://explorer.intuition.systems",
			NativeCurrency: "TRUST",
			Decimals:       18,
			IsTestnet:      false,
		},
		IntuitionTestnet: {
			Name:           "Intuition Testnet",
			ChainID:        big.NewInt(1155),
			ChainIDInt:     1155,
			RPCURLs:        []string{"https://testnet.rpc.intuition.systems/http"},
			WSURLs:         []string{"wss://testnet.rpc.intuition.systems/ws"},
			ExplorerURL:    "https://testnet.explorer.intuition.systems",
			NativeCurrency: "tTRUST",
			Decimals:       18,
			IsTestnet:      true,
		},
	}
}

// Normalize fills ChainID from ChainIDInt and defaults Decimals to 18.
// Used for configs decoded from YAML.
func (c *ChainConfig) Normalize() {
	if c.ChainID == nil {
		c.ChainID = big.NewInt(c.ChainIDInt)
	}
	if c.Decimals == 0 {
		c.Decimals = 18
	}
}

// TxURL returns the explorer link for a transaction hash, or "" when the
// chain has no explorer.
func (c *ChainConfig) TxURL(hash string) string {
	if c.ExplorerURL == "" {
		return ""
	}
	return c.ExplorerURL + "/tx/" + hash
}
