package greeting

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/yolodolo42/greeter/internal/chain"
	"github.com/yolodolo42/greeter/internal/tx"
	"github.com/yolodolo42/greeter/internal/wallet"
)

// ErrEmptyGreeting is the only check done before anything is sent.
var ErrEmptyGreeting = errors.New("please enter a greeting")

const receiptTimeout = 2 * time.Minute

// Submission is a validated setGreeting call.
type Submission struct {
	Text  string
	Value *big.Int // nil when nothing is attached
}

// ParseDraft turns the two draft fields into a Submission. The value draft
// is a decimal amount of the native currency and may be empty.
func ParseDraft(greetingDraft, valueDraft string, decimals uint8) (Submission, error) {
	if greetingDraft == "" {
		return Submission{}, ErrEmptyGreeting
	}

	sub := Submission{Text: greetingDraft}
	if valueDraft != "" {
		v, err := chain.ParseUnits(valueDraft, decimals)
		if err != nil {
			return Submission{}, err
		}
		sub.Value = v
	}
	return sub, nil
}

// ReceiptRecorder persists receipts of sent greetings.
type ReceiptRecorder interface {
	Upsert(chain, greeting string, receipt *types.Receipt) error
}

// Transactor sends setGreeting transactions from one signer.
type Transactor struct {
	contract *Contract
	signer   wallet.Signer
	policy   tx.Policy
	receipts ReceiptRecorder
	log      zerolog.Logger
}

// NewTransactor returns a Transactor for contract. receipts may be nil.
func NewTransactor(contract *Contract, signer wallet.Signer, maxValue *big.Int, receipts ReceiptRecorder, log zerolog.Logger) *Transactor {
	return &Transactor{
		contract: contract,
		signer:   signer,
		policy: tx.Policy{
			MaxPerTxWei: maxValue,
			AllowTo:     []common.Address{contract.Address()},
		},
		receipts: receipts,
		log:      log,
	}
}

// Account returns the signing address.
func (t *Transactor) Account() common.Address {
	return t.signer.Address()
}

// SetGreeting sends setGreeting(text) with value attached and waits for it
// to be mined. It does not retry.
func (t *Transactor) SetGreeting(ctx context.Context, text string, value *big.Int) (*types.Receipt, error) {
	c := t.contract
	cfg, err := c.client.GetChainConfig(c.chain)
	if err != nil {
		return nil, err
	}

	data, err := parsedABI.Pack("setGreeting", text)
	if err != nil {
		return nil, fmt.Errorf("pack setGreeting: %w", err)
	}
	if value == nil {
		value = new(big.Int)
	}

	intent := tx.Intent{
		Chain:    c.chain,
		ChainID:  cfg.ChainID,
		From:     t.signer.Address(),
		To:       c.address,
		ValueWei: value,
		Data:     data,
	}
	if err := tx.Validate(intent, t.policy); err != nil {
		return nil, fmt.Errorf("policy: %w", err)
	}

	unsigned, fees, err := tx.BuildUnsignedTx(ctx, c.client, intent)
	if err != nil {
		return nil, err
	}

	signed, err := tx.SignAndSend(ctx, c.client, c.chain, t.signer, unsigned, cfg.ChainID)
	if err != nil {
		return nil, err
	}
	t.log.Info().
		Str("chain", c.chain).
		Str("tx", signed.Hash().Hex()).
		Uint64("gas_limit", fees.GasLimit).
		Str("value", value.String()).
		Msg("setGreeting sent")

	receipt, err := tx.WaitReceipt(ctx, c.client, c.chain, signed.Hash(), receiptTimeout)
	if receipt != nil && t.receipts != nil {
		if serr := t.receipts.Upsert(c.chain, text, receipt); serr != nil {
			t.log.Warn().Err(serr).Str("tx", signed.Hash().Hex()).Msg("could not store receipt")
		}
	}
	return receipt, err
}
