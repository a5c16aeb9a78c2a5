package wallet

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Signer signs transactions on behalf of the connected account.
type Signer interface {
	// Address returns the Ethereum address of the signer
	Address() common.Address

	// SignTransaction signs a transaction with the given chain ID
	SignTransaction(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}
