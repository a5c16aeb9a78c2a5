package tx

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/yolodolo42/greeter/internal/chain"
	"github.com/yolodolo42/greeter/internal/wallet"
)

// ErrReverted is returned when a mined transaction has a failed status.
var ErrReverted = errors.New("transaction reverted")

const sendTimeout = 20 * time.Second

// SignAndSend signs the unsigned transaction for chainID and broadcasts it.
func SignAndSend(ctx context.Context, cc *chain.Client, chainName string, signer wallet.Signer, unsigned *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signed, err := signer.SignTransaction(unsigned, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to sign tx: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := cc.SendTransaction(sendCtx, chainName, signed); err != nil {
		return nil, fmt.Errorf("failed to send tx: %w", err)
	}

	return signed, nil
}

// WaitReceipt waits up to timeout for the transaction to be mined and
// returns ErrReverted alongside the receipt when execution failed.
func WaitReceipt(ctx context.Context, cc *chain.Client, chainName string, txHash common.Hash, timeout time.Duration) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	receipt, err := cc.WaitMined(waitCtx, chainName, txHash)
	if err != nil {
		return nil, fmt.Errorf("waiting for %s: %w", txHash.Hex(), err)
	}
	return receipt, CheckReceipt(receipt)
}

// CheckReceipt reports ErrReverted for a receipt with a failed status.
func CheckReceipt(receipt *types.Receipt) error {
	if receipt == nil {
		return fmt.Errorf("receipt missing")
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: %s", ErrReverted, receipt.TxHash.Hex())
	}
	return nil
}
