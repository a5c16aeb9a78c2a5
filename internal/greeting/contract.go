// Package greeting binds the on-chain greeting contract: state reads, the
// setGreeting write and GreetingChange events.
package greeting

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/yolodolo42/greeter/internal/chain"
)

// Snapshot is the contract state as last read. A nil field has not been
// read successfully yet.
type Snapshot struct {
	Greeting     *string
	TotalCounter *big.Int
	UserCounter  *big.Int
	Premium      *bool
}

// Contract reads and watches one deployed greeting contract.
type Contract struct {
	client  *chain.Client
	chain   string
	address common.Address
	opts    Options
}

// Options tune event retrieval.
type Options struct {
	BatchSize    uint64        // blocks per eth_getLogs request
	PollInterval time.Duration // live polling period when no websocket is available
	Logger       *zerolog.Logger
}

// NewContract binds the contract at address on chainName.
func NewContract(client *chain.Client, chainName string, address common.Address, opts Options) (*Contract, error) {
	if _, err := client.GetChainConfig(chainName); err != nil {
		return nil, err
	}
	if address == (common.Address{}) {
		return nil, fmt.Errorf("contract address is required")
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}
	return &Contract{client: client, chain: chainName, address: address, opts: opts}, nil
}

// Address returns the contract address.
func (c *Contract) Address() common.Address {
	return c.address
}

// Chain returns the chain name the contract lives on.
func (c *Contract) Chain() string {
	return c.chain
}

func (c *Contract) call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := parsedABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	out, err := c.client.CallContract(ctx, c.chain, ethereum.CallMsg{To: &c.address, Data: data})
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	values, err := parsedABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unpack %s: expected 1 value, got %d", method, len(values))
	}
	return values, nil
}

// Greeting returns the current greeting text.
func (c *Contract) Greeting(ctx context.Context) (string, error) {
	values, err := c.call(ctx, "greeting")
	if err != nil {
		return "", err
	}
	return *abiConvert[string](values[0]), nil
}

// TotalCounter returns the number of greetings set by anyone.
func (c *Contract) TotalCounter(ctx context.Context) (*big.Int, error) {
	values, err := c.call(ctx, "totalCounter")
	if err != nil {
		return nil, err
	}
	return *abiConvert[*big.Int](values[0]), nil
}

// UserGreetingCounter returns the number of greetings set by user.
func (c *Contract) UserGreetingCounter(ctx context.Context, user common.Address) (*big.Int, error) {
	values, err := c.call(ctx, "userGreetingCounter", user)
	if err != nil {
		return nil, err
	}
	return *abiConvert[*big.Int](values[0]), nil
}

// Premium reports whether the current greeting was paid for.
func (c *Contract) Premium(ctx context.Context) (bool, error) {
	values, err := c.call(ctx, "premium")
	if err != nil {
		return false, err
	}
	return *abiConvert[bool](values[0]), nil
}

// Snapshot reads the contract state concurrently. The per-user counter is
// only read when account is set. Fields that could not be read stay nil and
// their errors are joined into the returned error.
func (c *Contract) Snapshot(ctx context.Context, account *common.Address) (Snapshot, error) {
	var (
		snap                                       Snapshot
		errGreeting, errTotal, errUser, errPremium error
	)

	var g errgroup.Group
	g.Go(func() error {
		v, err := c.Greeting(ctx)
		if err == nil {
			snap.Greeting = &v
		}
		errGreeting = err
		return nil
	})
	g.Go(func() error {
		v, err := c.TotalCounter(ctx)
		if err == nil {
			snap.TotalCounter = v
		}
		errTotal = err
		return nil
	})
	if account != nil {
		user := *account
		g.Go(func() error {
			v, err := c.UserGreetingCounter(ctx, user)
			if err == nil {
				snap.UserCounter = v
			}
			errUser = err
			return nil
		})
	}
	g.Go(func() error {
		v, err := c.Premium(ctx)
		if err == nil {
			snap.Premium = &v
		}
		errPremium = err
		return nil
	})
	_ = g.Wait()

	return snap, errors.Join(errGreeting, errTotal, errUser, errPremium)
}

// abiConvert converts an unpacked ABI value into T.
func abiConvert[T any](v any) *T {
	return abi.ConvertType(v, new(T)).(*T)
}
