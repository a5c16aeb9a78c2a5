package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/yolodolo42/greeter/internal/chain"
	"github.com/yolodolo42/greeter/internal/greeting"
	"github.com/yolodolo42/greeter/internal/store"
	"github.com/yolodolo42/greeter/internal/wallet"
)

// session holds the connections one command works with.
type session struct {
	settings  *Settings
	client    *chain.Client
	chainName string
	chainCfg  *chain.ChainConfig
	contract  *greeting.Contract
	log       zerolog.Logger
}

func openSession(s *Settings, client *chain.Client, chainName string, log zerolog.Logger) (*session, error) {
	if err := s.checkChain(client, chainName); err != nil {
		return nil, err
	}
	chainCfg, err := client.GetChainConfig(chainName)
	if err != nil {
		return nil, err
	}

	address, err := s.contract()
	if err != nil {
		return nil, err
	}

	contract, err := greeting.NewContract(client, chainName, address, greeting.Options{
		BatchSize:    s.EventBatchSize,
		PollInterval: s.PollInterval,
		Logger:       &log,
	})
	if err != nil {
		return nil, err
	}

	return &session{
		settings:  s,
		client:    client,
		chainName: chainName,
		chainCfg:  chainCfg,
		contract:  contract,
		log:       log.With().Str("chain", chainName).Logger(),
	}, nil
}

// account returns the connected account, or nil when the keystore is empty.
func (s *session) account() (*common.Address, *wallet.KeystoreManager, error) {
	km, err := wallet.NewKeystoreManager(s.settings.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize keystore: %w", err)
	}

	addr, err := km.ResolveAccount(s.settings.Account)
	if errors.Is(err, wallet.ErrNoAccount) {
		return nil, km, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return &addr, km, nil
}

// unlock decrypts the account key and returns a Transactor for it along
// with a function that locks the key and closes the receipt store.
func (s *session) unlock(km *wallet.KeystoreManager, addr common.Address) (*greeting.Transactor, func(), error) {
	password, err := accountPassword(addr)
	if err != nil {
		return nil, nil, err
	}

	signer, err := km.GetSigner(addr, password)
	if err != nil {
		return nil, nil, err
	}

	maxValue, err := s.settings.maxValueWei(s.chainCfg.Decimals)
	if err != nil {
		signer.Lock()
		return nil, nil, err
	}

	receipts, err := store.OpenReceiptStore(s.settings.DataDir)
	if err != nil {
		signer.Lock()
		return nil, nil, err
	}

	t := greeting.NewTransactor(s.contract, signer, maxValue, receipts, s.log)
	release := func() {
		signer.Lock()
		if err := receipts.Close(); err != nil {
			s.log.Warn().Err(err).Msg("closing receipt store")
		}
	}
	return t, release, nil
}

// accountPassword reads GREETER_PASSWORD, falling back to a terminal
// prompt.
func accountPassword(addr common.Address) (string, error) {
	if password := viper.GetString("password"); password != "" {
		return password, nil
	}
	if !isInteractive() {
		return "", fmt.Errorf("%w: set GREETER_PASSWORD or run interactively", wallet.ErrAccountLocked)
	}
	password, err := readPassword(fmt.Sprintf("Password for %s: ", addr.Hex()))
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return password, nil
}

func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(password), nil
}
