package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountLocked   = errors.New("account is locked")
	ErrInvalidKey      = errors.New("invalid private key")
	ErrNoAccount       = errors.New("no wallet found")
)

// KeystoreSigner implements Signer with a key decrypted from the keystore.
type KeystoreSigner struct {
	// mu protects key from concurrent access so signing cannot race with
	// Lock, which zeros the key material.
	mu      sync.RWMutex
	account accounts.Account
	key     *ecdsa.PrivateKey // nil when locked
}

// KeystoreManager manages the keystore directory and accounts
type KeystoreManager struct {
	ks  *keystore.KeyStore
	dir string
}

// NewKeystoreManager opens (creating if needed) dataDir/keystore.
func NewKeystoreManager(dataDir string) (*KeystoreManager, error) {
	keystoreDir := filepath.Join(dataDir, "keystore")
	if err := os.MkdirAll(keystoreDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create keystore directory: %w", err)
	}

	ks := keystore.NewKeyStore(keystoreDir, keystore.StandardScryptN, keystore.StandardScryptP)

	return &KeystoreManager{
		ks:  ks,
		dir: keystoreDir,
	}, nil
}

// Dir returns the keystore directory.
func (km *KeystoreManager) Dir() string {
	return km.dir
}

// CreateAccount creates a new account with the given password
func (km *KeystoreManager) CreateAccount(password string) (accounts.Account, error) {
	return km.ks.NewAccount(password)
}

// ImportKey imports a hex private key and encrypts it with the password
func (km *KeystoreManager) ImportKey(privateKeyHex string, password string) (accounts.Account, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return accounts.Account{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	return km.ks.ImportECDSA(privateKey, password)
}

// ListAccounts returns all accounts in the keystore
func (km *KeystoreManager) ListAccounts() []accounts.Account {
	return km.ks.Accounts()
}

// ResolveAccount picks the connected account: the preferred hex address
// when given, otherwise the first keystore account.
func (km *KeystoreManager) ResolveAccount(preferred string) (common.Address, error) {
	if preferred != "" {
		if !common.IsHexAddress(preferred) {
			return common.Address{}, fmt.Errorf("invalid account address: %s", preferred)
		}
		addr := common.HexToAddress(preferred)
		if _, err := km.find(addr); err != nil {
			return common.Address{}, err
		}
		return addr, nil
	}

	accs := km.ks.Accounts()
	if len(accs) == 0 {
		return common.Address{}, ErrNoAccount
	}
	return accs[0].Address, nil
}

func (km *KeystoreManager) find(address common.Address) (accounts.Account, error) {
	for _, acc := range km.ks.Accounts() {
		if acc.Address == address {
			return acc, nil
		}
	}
	return accounts.Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, address.Hex())
}

// GetSigner decrypts the key for address and returns an unlocked signer.
func (km *KeystoreManager) GetSigner(address common.Address, password string) (*KeystoreSigner, error) {
	acc, err := km.find(address)
	if err != nil {
		return nil, err
	}

	keyJSON, err := os.ReadFile(acc.URL.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	key, err := keystore.DecryptKey(keyJSON, password)
	if err != nil {
		return nil, fmt.Errorf("failed to unlock account: %w", err)
	}

	return &KeystoreSigner{
		account: acc,
		key:     key.PrivateKey,
	}, nil
}

// Address returns the address of the signer
func (ks *KeystoreSigner) Address() common.Address {
	return ks.account.Address
}

// SignTransaction signs a transaction
func (ks *KeystoreSigner) SignTransaction(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	if ks.key == nil {
		return nil, ErrAccountLocked
	}

	signer := types.LatestSignerForChainID(chainID)
	return types.SignTx(tx, signer, ks.key)
}

// Lock zeros the private key. Safe to call multiple times; afterwards
// SignTransaction returns ErrAccountLocked.
func (ks *KeystoreSigner) Lock() {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if ks.key != nil {
		ks.key.D.SetInt64(0)
		ks.key = nil
	}
}
