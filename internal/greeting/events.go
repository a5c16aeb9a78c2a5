package greeting

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const (
	defaultBatchSize    = 2000
	defaultPollInterval = 4 * time.Second
	fetchAttempts       = 3
)

// Event is one decoded GreetingChange log.
type Event struct {
	Setter      common.Address
	NewGreeting string
	Premium     bool
	Value       *big.Int
	TxHash      common.Hash
	BlockNumber uint64
	LogIndex    uint
}

// Key identifies the log an event came from.
func (e Event) Key() string {
	return fmt.Sprintf("%s-%d", e.TxHash.Hex(), e.LogIndex)
}

type greetingChange struct {
	NewGreeting string
	Premium     bool
	Value       *big.Int
}

// DecodeLog decodes a GreetingChange log entry.
func DecodeLog(entry types.Log) (Event, error) {
	if len(entry.Topics) < 2 || entry.Topics[0] != SigGreetingChange {
		return Event{}, fmt.Errorf("log %s/%d is not a GreetingChange event", entry.TxHash.Hex(), entry.Index)
	}

	var change greetingChange
	if err := parsedABI.UnpackIntoInterface(&change, eventGreetingChange, entry.Data); err != nil {
		return Event{}, fmt.Errorf("unpack GreetingChange: %w", err)
	}

	return Event{
		Setter:      common.BytesToAddress(entry.Topics[1].Bytes()),
		NewGreeting: change.NewGreeting,
		Premium:     change.Premium,
		Value:       change.Value,
		TxHash:      entry.TxHash,
		BlockNumber: entry.BlockNumber,
		LogIndex:    entry.Index,
	}, nil
}

func (c *Contract) query(from, to uint64) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{c.address},
		Topics:    [][]common.Hash{{SigGreetingChange}},
	}
}

// fetch returns the decoded events in [from, to] in chain order, walking the
// range in batches. Each batch is retried a few times before giving up.
func (c *Contract) fetch(ctx context.Context, from, to uint64) ([]Event, error) {
	var events []Event
	for start := from; start <= to; start += c.opts.BatchSize {
		end := min(start+c.opts.BatchSize-1, to)

		q := c.query(start, end)
		entries, err := retry.DoWithData(
			func() ([]types.Log, error) {
				return c.client.FilterLogs(ctx, c.chain, q)
			},
			retry.Context(ctx),
			retry.Attempts(fetchAttempts),
			retry.Delay(500*time.Millisecond),
			retry.LastErrorOnly(true),
			retry.OnRetry(func(attempt uint, err error) {
				c.opts.Logger.Debug().Uint64("from", start).Uint64("to", end).Uint("attempt", attempt+1).Err(err).Msg("retrying log fetch")
			}),
		)
		if err != nil {
			return nil, fmt.Errorf("filter logs %d-%d: %w", start, end, err)
		}

		for _, entry := range entries {
			if entry.Removed {
				continue
			}
			ev, err := DecodeLog(entry)
			if err != nil {
				c.opts.Logger.Warn().Err(err).Msg("skipping undecodable log")
				continue
			}
			events = append(events, ev)
		}

		c.opts.Logger.Debug().Uint64("from", start).Uint64("to", end).Int("entries", len(entries)).Msg("fetched greeting logs")
	}
	return events, nil
}

// History returns the GreetingChange events from fromBlock up to the latest
// block, newest first, together with the latest block number scanned.
func (c *Contract) History(ctx context.Context, fromBlock uint64) ([]Event, uint64, error) {
	head, err := c.client.BlockNumber(ctx, c.chain)
	if err != nil {
		return nil, 0, fmt.Errorf("get block number: %w", err)
	}
	if fromBlock > head {
		return nil, head, nil
	}

	events, err := c.fetch(ctx, fromBlock, head)
	if err != nil {
		return nil, 0, err
	}
	reverse(events)
	return events, head, nil
}

func reverse(events []Event) {
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
}

// Watch streams GreetingChange events from fromBlock onwards into sink until
// ctx is done. It subscribes over websocket when the chain has one and falls
// back to polling otherwise. Each log is delivered at most once.
func (c *Contract) Watch(ctx context.Context, fromBlock uint64, sink chan<- Event) error {
	w := &watcher{
		contract: c,
		sink:     sink,
		next:     fromBlock,
		seen:     make(map[string]struct{}),
	}

	if err := w.subscribe(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		c.opts.Logger.Warn().Err(err).Str("chain", c.chain).Msg("log subscription unavailable, polling instead")
	}
	return w.poll(ctx)
}

type watcher struct {
	contract *Contract
	sink     chan<- Event
	next     uint64
	seen     map[string]struct{}
}

func (w *watcher) deliver(ctx context.Context, ev Event) bool {
	if _, dup := w.seen[ev.Key()]; dup {
		return true
	}
	w.seen[ev.Key()] = struct{}{}

	select {
	case w.sink <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// catchUp delivers everything between next and the chain head.
func (w *watcher) catchUp(ctx context.Context) error {
	c := w.contract
	head, err := c.client.BlockNumber(ctx, c.chain)
	if err != nil {
		return fmt.Errorf("get block number: %w", err)
	}
	if head < w.next {
		return nil
	}

	events, err := c.fetch(ctx, w.next, head)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if !w.deliver(ctx, ev) {
			return ctx.Err()
		}
	}
	w.next = head + 1
	return nil
}

func (w *watcher) subscribe(ctx context.Context) error {
	c := w.contract
	logs := make(chan types.Log, 16)
	q := ethereum.FilterQuery{
		Addresses: []common.Address{c.address},
		Topics:    [][]common.Hash{{SigGreetingChange}},
	}

	sub, err := c.client.SubscribeFilterLogs(ctx, c.chain, q, logs)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	// Logs mined between the history read and the subscription.
	if err := w.catchUp(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			if err == nil {
				err = fmt.Errorf("subscription closed")
			}
			return err
		case entry := <-logs:
			if entry.Removed {
				continue
			}
			ev, err := DecodeLog(entry)
			if err != nil {
				c.opts.Logger.Warn().Err(err).Msg("skipping undecodable log")
				continue
			}
			if !w.deliver(ctx, ev) {
				return ctx.Err()
			}
		}
	}
}

func (w *watcher) poll(ctx context.Context) error {
	c := w.contract
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.catchUp(ctx); err != nil && ctx.Err() == nil {
				c.opts.Logger.Warn().Err(err).Str("chain", c.chain).Msg("polling greeting logs failed")
			}
		}
	}
}
