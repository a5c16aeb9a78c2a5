package tx

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/yolodolo42/greeter/internal/chain"
)

// Intent captures a contract call the user wants to make.
type Intent struct {
	Chain    string         // chain name (e.g., "intuition")
	ChainID  *big.Int       // optional; left for the signer when nil
	From     common.Address // signer address
	To       common.Address // contract
	ValueWei *big.Int       // attached native value, zero when none
	Data     []byte         // calldata
	GasLimit *uint64        // optional override
}

// Policy enforces safety constraints before sending.
type Policy struct {
	MaxPerTxWei *big.Int
	AllowTo     []common.Address
}

// SuggestedFees carries gas estimates so the caller can render them.
type SuggestedFees struct {
	GasLimit         uint64
	MaxFeePerGas     *big.Int
	MaxPriorityFee   *big.Int
	EstimatedCostWei *big.Int
}

// Validate applies the allowlist and spend limit.
func Validate(intent Intent, policy Policy) error {
	if intent.ValueWei == nil {
		return fmt.Errorf("value missing")
	}
	if intent.ValueWei.Sign() < 0 {
		return fmt.Errorf("value is negative")
	}

	if len(policy.AllowTo) > 0 {
		allowed := false
		for _, a := range policy.AllowTo {
			if a == intent.To {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("destination %s not in allowlist", intent.To.Hex())
		}
	}
	if policy.MaxPerTxWei != nil && intent.ValueWei.Cmp(policy.MaxPerTxWei) > 0 {
		return fmt.Errorf("value exceeds max per tx limit of %s wei", policy.MaxPerTxWei)
	}
	return nil
}

// BuildUnsignedTx simulates and prepares an unsigned EIP-1559 transaction.
// A call that fails simulation is reported before anything is signed.
func BuildUnsignedTx(ctx context.Context, cc *chain.Client, intent Intent) (*types.Transaction, SuggestedFees, error) {
	if intent.ValueWei == nil {
		return nil, SuggestedFees{}, fmt.Errorf("value missing")
	}

	nonce, err := cc.GetNonce(ctx, intent.Chain, intent.From)
	if err != nil {
		return nil, SuggestedFees{}, fmt.Errorf("get nonce: %w", err)
	}

	tip, err := cc.SuggestGasTipCap(ctx, intent.Chain)
	if err != nil {
		return nil, SuggestedFees{}, fmt.Errorf("suggest tip: %w", err)
	}
	maxFee, err := cc.SuggestGasPrice(ctx, intent.Chain)
	if err != nil {
		return nil, SuggestedFees{}, fmt.Errorf("suggest gas price: %w", err)
	}
	if maxFee.Cmp(tip) < 0 {
		maxFee = new(big.Int).Set(tip)
	}

	call := ethereum.CallMsg{
		From:      intent.From,
		To:        &intent.To,
		GasFeeCap: maxFee,
		GasTipCap: tip,
		Value:     intent.ValueWei,
		Data:      intent.Data,
	}

	var gasLimit uint64
	if intent.GasLimit != nil {
		gasLimit = *intent.GasLimit
	} else {
		gasLimit, err = cc.EstimateGas(ctx, intent.Chain, call)
		if err != nil {
			return nil, SuggestedFees{}, fmt.Errorf("estimate gas: %w", err)
		}
	}

	call.Gas = gasLimit
	if _, err := cc.CallContract(ctx, intent.Chain, call); err != nil {
		return nil, SuggestedFees{}, fmt.Errorf("simulate call: %w", err)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   intent.ChainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: maxFee,
		Gas:       gasLimit,
		To:        &intent.To,
		Value:     intent.ValueWei,
		Data:      intent.Data,
	})

	return tx, estimate(gasLimit, maxFee, tip, intent.ValueWei), nil
}

func estimate(gasLimit uint64, maxFee, tip, value *big.Int) SuggestedFees {
	total := new(big.Int).Mul(maxFee, new(big.Int).SetUint64(gasLimit))
	total.Add(total, value)
	return SuggestedFees{
		GasLimit:         gasLimit,
		MaxFeePerGas:     maxFee,
		MaxPriorityFee:   tip,
		EstimatedCostWei: total,
	}
}
