package dashboard

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yolodolo42/greeter/internal/chain"
	"github.com/yolodolo42/greeter/internal/greeting"
)

type fakeSource struct {
	snap  greeting.Snapshot
	err   error
	calls int
}

func (f *fakeSource) Snapshot(_ context.Context, _ *common.Address) (greeting.Snapshot, error) {
	f.calls++
	return f.snap, f.err
}

type fakeSubmitter struct {
	calls int
	text  string
	value *big.Int
	err   error
}

func (f *fakeSubmitter) SetGreeting(_ context.Context, text string, value *big.Int) (*types.Receipt, error) {
	f.calls++
	f.text = text
	f.value = value
	if f.err != nil {
		return nil, f.err
	}
	return &types.Receipt{Status: types.ReceiptStatusSuccessful}, nil
}

var account = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

func newTestModel(sub *fakeSubmitter, acct *common.Address) Model {
	cfg := Config{
		Chain:   chain.DefaultChains()[chain.IntuitionTestnet],
		Account: acct,
		Source:  &fakeSource{},
		Unit:    "ETH",
		Logger:  zerolog.Nop(),
	}
	if sub != nil {
		cfg.Submitter = sub
	}
	return New(context.Background(), cfg)
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func typeText(t *testing.T, m Model, s string) Model {
	t.Helper()
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return m
}

func press(t *testing.T, m Model, k tea.KeyType) (Model, tea.Cmd) {
	t.Helper()
	return update(t, m, tea.KeyMsg{Type: k})
}

func countKind(notices []Notice, kind NoticeKind) int {
	n := 0
	for _, notice := range notices {
		if notice.Kind == kind {
			n++
		}
	}
	return n
}

func TestSubmit_EmptyDraft(t *testing.T) {
	sub := &fakeSubmitter{}
	m := newTestModel(sub, &account)

	m, cmd := press(t, m, tea.KeyEnter)

	assert.NotNil(t, cmd)
	assert.Equal(t, 0, sub.calls)
	assert.False(t, m.pending)
	require.Len(t, m.notices, 1)
	assert.Equal(t, NoticeError, m.notices[0].Kind)
	assert.Equal(t, "Please enter a greeting", m.notices[0].Text)
}

func TestSubmit_Success(t *testing.T) {
	sub := &fakeSubmitter{}
	m := newTestModel(sub, &account)

	m = typeText(t, m, "hello")
	m, _ = press(t, m, tea.KeyTab)
	m = typeText(t, m, "0.01")
	assert.Equal(t, "hello", m.greetingInput.Value())
	assert.Equal(t, "0.01", m.valueInput.Value())

	m, cmd := press(t, m, tea.KeyEnter)
	require.NotNil(t, cmd)
	assert.True(t, m.pending)

	msg := cmd()
	require.IsType(t, submitResultMsg{}, msg)
	assert.Equal(t, 1, sub.calls)
	assert.Equal(t, "hello", sub.text)
	assert.Equal(t, "10000000000000000", sub.value.String())

	m, _ = update(t, m, msg)
	assert.False(t, m.pending)
	assert.Empty(t, m.greetingInput.Value())
	assert.Empty(t, m.valueInput.Value())
	assert.Equal(t, 1, countKind(m.notices, NoticeSuccess))
	assert.Equal(t, 0, countKind(m.notices, NoticeError))
	assert.Contains(t, m.View(), "Greeting updated successfully!")
}

func TestSubmit_LongGreeting(t *testing.T) {
	sub := &fakeSubmitter{}
	m := newTestModel(sub, &account)

	long := strings.Repeat("a", 300)
	m = typeText(t, m, long)
	m, cmd := press(t, m, tea.KeyEnter)
	require.NotNil(t, cmd)
	cmd()

	assert.Equal(t, 1, sub.calls)
	assert.Equal(t, long, sub.text)
}

func TestSubmit_NoValue(t *testing.T) {
	sub := &fakeSubmitter{}
	m := newTestModel(sub, &account)

	m = typeText(t, m, "gm")
	m, cmd := press(t, m, tea.KeyEnter)
	require.NotNil(t, cmd)
	cmd()

	assert.Equal(t, 1, sub.calls)
	assert.Nil(t, sub.value)
	assert.True(t, m.pending)
}

func TestSubmit_Failure(t *testing.T) {
	sub := &fakeSubmitter{err: errors.New("user rejected")}
	m := newTestModel(sub, &account)

	m = typeText(t, m, "hello")
	m, cmd := press(t, m, tea.KeyEnter)
	require.NotNil(t, cmd)

	m, _ = update(t, m, cmd())

	assert.Equal(t, 1, sub.calls)
	assert.False(t, m.pending)
	assert.Equal(t, "hello", m.greetingInput.Value())
	assert.Empty(t, m.notices)
}

func TestSubmit_InvalidValueDoesNotSend(t *testing.T) {
	sub := &fakeSubmitter{}
	m := newTestModel(sub, &account)

	m = typeText(t, m, "hello")
	m, _ = press(t, m, tea.KeyTab)
	m = typeText(t, m, "abc")
	m, cmd := press(t, m, tea.KeyEnter)

	assert.Nil(t, cmd)
	assert.Equal(t, 0, sub.calls)
	assert.False(t, m.pending)
}

func TestSubmit_Disabled(t *testing.T) {
	t.Run("no account", func(t *testing.T) {
		sub := &fakeSubmitter{}
		m := newTestModel(sub, nil)

		m = typeText(t, m, "hello")
		m, cmd := press(t, m, tea.KeyEnter)

		assert.Nil(t, cmd)
		assert.Equal(t, 0, sub.calls)
		assert.Empty(t, m.notices)
		assert.Contains(t, m.View(), "Connect a wallet")
	})

	t.Run("read-only account", func(t *testing.T) {
		m := newTestModel(nil, &account)

		m = typeText(t, m, "hello")
		m, cmd := press(t, m, tea.KeyEnter)

		assert.Nil(t, cmd)
		view := m.View()
		assert.Contains(t, view, "Read-only session")
		assert.NotContains(t, view, "Connect a wallet")
	})

	t.Run("pending", func(t *testing.T) {
		sub := &fakeSubmitter{}
		m := newTestModel(sub, &account)

		m = typeText(t, m, "hello")
		m, cmd := press(t, m, tea.KeyEnter)
		require.NotNil(t, cmd)

		m, cmd = press(t, m, tea.KeyEnter)
		assert.Nil(t, cmd)
		assert.True(t, m.pending)
		assert.Contains(t, m.View(), "Updating...")
	})
}

func TestRender_CountersDefaultToZero(t *testing.T) {
	m := newTestModel(nil, nil)
	m, _ = update(t, m, snapshotMsg{snap: greeting.Snapshot{TotalCounter: big.NewInt(0)}})

	assert.Equal(t, "0", greeting.FormatCounter(m.snapshot.TotalCounter))
	assert.Equal(t, "0", greeting.FormatCounter(m.snapshot.UserCounter))

	stats := m.renderStats()
	assert.Contains(t, stats, "Total Greetings")
	assert.Contains(t, stats, "Your Greetings")
	assert.NotPanics(t, func() { _ = m.View() })
}

func TestRender_GreetingCard(t *testing.T) {
	t.Run("loading", func(t *testing.T) {
		m := newTestModel(nil, nil)
		assert.Contains(t, m.renderGreetingCard(), "Loading...")
	})

	t.Run("empty greeting shows placeholder", func(t *testing.T) {
		m := newTestModel(nil, nil)
		empty := ""
		m, _ = update(t, m, snapshotMsg{snap: greeting.Snapshot{Greeting: &empty}})

		card := m.renderGreetingCard()
		assert.Contains(t, card, `"Loading..."`)
		assert.NotContains(t, card, `""`)
	})

	t.Run("premium shows one badge", func(t *testing.T) {
		m := newTestModel(nil, nil)
		text, premium := "gm", true
		m, _ = update(t, m, snapshotMsg{snap: greeting.Snapshot{Greeting: &text, Premium: &premium}})

		card := m.renderGreetingCard()
		assert.Contains(t, card, `"gm"`)
		assert.Equal(t, 1, strings.Count(card, "Premium"))
	})

	t.Run("not premium", func(t *testing.T) {
		m := newTestModel(nil, nil)
		text, premium := "gm", false
		m, _ = update(t, m, snapshotMsg{snap: greeting.Snapshot{Greeting: &text, Premium: &premium}})

		assert.Equal(t, 0, strings.Count(m.renderGreetingCard(), "Premium"))
	})

	t.Run("failed read keeps last value", func(t *testing.T) {
		m := newTestModel(nil, nil)
		text := "gm"
		m, _ = update(t, m, snapshotMsg{snap: greeting.Snapshot{Greeting: &text}})
		m, _ = update(t, m, snapshotMsg{err: errors.New("timeout")})

		assert.Contains(t, m.renderGreetingCard(), `"gm"`)
	})
}

func event(i int) greeting.Event {
	return greeting.Event{
		Setter:      account,
		NewGreeting: fmt.Sprintf("greeting-%02d", i),
		TxHash:      common.BigToHash(big.NewInt(int64(i + 1))),
		BlockNumber: uint64(100 - i),
	}
}

func TestRender_Activity(t *testing.T) {
	t.Run("empty state", func(t *testing.T) {
		m := newTestModel(nil, nil)
		m, _ = update(t, m, historyMsg{})

		assert.Contains(t, m.renderActivity(), "No greetings yet. Be the first!")
	})

	t.Run("shows first ten in received order", func(t *testing.T) {
		m := newTestModel(nil, nil)
		events := make([]greeting.Event, 15)
		for i := range events {
			events[i] = event(i)
		}
		m, _ = update(t, m, historyMsg{events: events, head: 100})

		out := m.renderActivity()
		last := -1
		for i := 0; i < 10; i++ {
			idx := strings.Index(out, fmt.Sprintf("greeting-%02d", i))
			require.GreaterOrEqual(t, idx, 0, "greeting-%02d missing", i)
			assert.Greater(t, idx, last)
			last = idx
		}
		for i := 10; i < 15; i++ {
			assert.NotContains(t, out, fmt.Sprintf("greeting-%02d", i))
		}
	})

	t.Run("sent line", func(t *testing.T) {
		m := newTestModel(nil, nil)
		paid := event(0)
		paid.Premium = true
		paid.Value = big.NewInt(10_000_000_000_000_000)
		free := event(1)
		free.Value = new(big.Int)

		assert.Contains(t, m.renderEvent(paid), "Sent: 0.0100 ETH")
		assert.NotContains(t, m.renderEvent(free), "Sent:")
	})
}

func TestLiveEvents(t *testing.T) {
	m := newTestModel(nil, nil)
	m, _ = update(t, m, historyMsg{events: []greeting.Event{event(1)}, head: 100})
	require.NotNil(t, m.live)

	m, _ = update(t, m, liveEventMsg{event: event(1)})
	assert.Len(t, m.events, 1)

	m, _ = update(t, m, liveEventMsg{event: event(0)})
	require.Len(t, m.events, 2)
	assert.Equal(t, "greeting-00", m.events[0].NewGreeting)
}

func TestNoticeExpiry(t *testing.T) {
	m := newTestModel(&fakeSubmitter{}, &account)
	m, _ = press(t, m, tea.KeyEnter)
	require.Len(t, m.notices, 1)

	m, _ = update(t, m, noticeExpiredMsg{id: m.notices[0].id})
	assert.Empty(t, m.notices)
}

func TestQuit(t *testing.T) {
	m := newTestModel(nil, nil)
	m, cmd := press(t, m, tea.KeyEsc)

	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Empty(t, m.View())
}

func TestRender_Header(t *testing.T) {
	m := newTestModel(nil, &account)
	balance, ok := new(big.Int).SetString("1500000000000000000", 10)
	require.True(t, ok)

	m, _ = update(t, m, balanceMsg{balance: balance})

	header := m.renderHeader()
	assert.Contains(t, header, "Hello Intuition")
	assert.Contains(t, header, "Connected as "+account.Hex())
	assert.Contains(t, header, "1.5000 tTRUST")
	assert.Contains(t, header, "Intuition Testnet (testnet)")
}
