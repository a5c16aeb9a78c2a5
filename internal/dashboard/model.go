// Package dashboard is the interactive greeting screen: current state,
// counters, the update form and recent activity.
package dashboard

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/yolodolo42/greeter/internal/chain"
	"github.com/yolodolo42/greeter/internal/greeting"
	"github.com/yolodolo42/greeter/internal/ui"
)

// Source reads contract state.
type Source interface {
	Snapshot(ctx context.Context, account *common.Address) (greeting.Snapshot, error)
}

// Submitter sends setGreeting and waits for it to be mined.
type Submitter interface {
	SetGreeting(ctx context.Context, text string, value *big.Int) (*types.Receipt, error)
}

// Feed provides past and live GreetingChange events.
type Feed interface {
	History(ctx context.Context, fromBlock uint64) ([]greeting.Event, uint64, error)
	Watch(ctx context.Context, fromBlock uint64, sink chan<- greeting.Event) error
}

// Config wires the dashboard to a chain and contract.
type Config struct {
	Chain        *chain.ChainConfig
	Account      *common.Address // nil when no wallet is connected
	Source       Source
	Submitter    Submitter // nil disables the update form
	Feed         Feed
	FromBlock    uint64
	Balance      func(ctx context.Context) (*big.Int, error) // optional
	Unit         string
	PollInterval time.Duration
	Logger       zerolog.Logger
}

const (
	noticeTTL      = 4 * time.Second
	readTimeout    = 15 * time.Second
	historyTimeout = 2 * time.Minute
	submitTimeout  = 3 * time.Minute
)

type field int

const (
	fieldGreeting field = iota
	fieldValue
)

// NoticeKind distinguishes success and error notices.
type NoticeKind int

const (
	NoticeSuccess NoticeKind = iota
	NoticeError
)

// Notice is a transient message shown under the form.
type Notice struct {
	Kind NoticeKind
	Text string
	id   int
}

// Messages
type snapshotMsg struct {
	snap greeting.Snapshot
	err  error
}

type balanceMsg struct {
	balance *big.Int
	err     error
}

type historyMsg struct {
	events []greeting.Event
	head   uint64
	err    error
}

type liveEventMsg struct {
	event greeting.Event
}

type submitResultMsg struct {
	receipt *types.Receipt
	err     error
}

type refreshTickMsg struct{}

type noticeExpiredMsg struct {
	id int
}

// Model is the dashboard bubbletea model.
type Model struct {
	ctx context.Context
	cfg Config

	greetingInput ui.Prompt
	valueInput    ui.Prompt
	focus         field
	spinner       spinner.Model

	snapshot      greeting.Snapshot
	balance       *big.Int
	events        []greeting.Event
	seen          map[string]struct{}
	eventsLoading bool
	live          chan greeting.Event

	pending    bool
	notices    []Notice
	nextNotice int

	width    int
	quitting bool
}

// New builds the dashboard model.
func New(ctx context.Context, cfg Config) Model {
	if cfg.Unit == "" {
		cfg.Unit = "ETH"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 4 * time.Second
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = ui.TitleStyle

	greetingInput := ui.NewPrompt("Your Greeting Message", "Enter your greeting...", 0)
	valueInput := ui.NewPrompt("Send "+cfg.Unit+" (optional) · make it premium "+ui.SymbolSparkle, "0.01", 40)
	greetingInput.Focus()

	return Model{
		ctx:           ctx,
		cfg:           cfg,
		greetingInput: greetingInput,
		valueInput:    valueInput,
		focus:         fieldGreeting,
		spinner:       sp,
		seen:          make(map[string]struct{}),
		eventsLoading: cfg.Feed != nil,
		width:         80,
	}
}

// Init starts the first reads.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.spinner.Tick,
		textinput.Blink,
		m.fetchSnapshot(),
		m.scheduleRefresh(),
	}
	if m.cfg.Feed != nil {
		cmds = append(cmds, m.loadHistory())
	}
	if m.cfg.Balance != nil && m.cfg.Account != nil {
		cmds = append(cmds, m.fetchBalance())
	}
	return tea.Batch(cmds...)
}

// canWrite reports whether the update form is enabled.
func (m Model) canWrite() bool {
	return m.cfg.Account != nil && m.cfg.Submitter != nil
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyTab, tea.KeyShiftTab, tea.KeyUp, tea.KeyDown:
			return m.toggleFocus()
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyCtrlR:
			return m, m.fetchSnapshot()
		}

		var cmd tea.Cmd
		if m.focus == fieldGreeting {
			cmd = m.greetingInput.Update(msg)
		} else {
			cmd = m.valueInput.Update(msg)
		}
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.greetingInput.SetWidth(min(msg.Width-6, 76))
		m.valueInput.SetWidth(min(msg.Width-6, 76))
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case snapshotMsg:
		if msg.err != nil {
			m.cfg.Logger.Warn().Err(msg.err).Msg("reading contract state")
		}
		m.snapshot = merge(m.snapshot, msg.snap)
		return m, nil

	case balanceMsg:
		if msg.err != nil {
			m.cfg.Logger.Warn().Err(msg.err).Msg("reading account balance")
			return m, nil
		}
		m.balance = msg.balance
		return m, nil

	case historyMsg:
		m.eventsLoading = false
		if msg.err != nil {
			m.cfg.Logger.Error().Err(msg.err).Msg("loading greeting history")
		}
		for _, ev := range msg.events {
			if m.markSeen(ev) {
				m.events = append(m.events, ev)
			}
		}
		from := m.cfg.FromBlock
		if msg.err == nil {
			from = msg.head + 1
		}
		m.live = make(chan greeting.Event, 16)
		return m, tea.Batch(m.startWatch(from), waitForLive(m.live))

	case liveEventMsg:
		cmds := []tea.Cmd{waitForLive(m.live)}
		if m.markSeen(msg.event) {
			m.events = append([]greeting.Event{msg.event}, m.events...)
			cmds = append(cmds, m.fetchSnapshot())
		}
		return m, tea.Batch(cmds...)

	case submitResultMsg:
		m.pending = false
		if msg.err != nil {
			m.cfg.Logger.Error().Err(msg.err).Msg("error setting greeting")
			return m, nil
		}
		m.greetingInput.Reset()
		m.valueInput.Reset()
		var cmd tea.Cmd
		m, cmd = m.notify(NoticeSuccess, "Greeting updated successfully!")
		cmds := []tea.Cmd{cmd, m.fetchSnapshot()}
		if m.cfg.Balance != nil {
			cmds = append(cmds, m.fetchBalance())
		}
		return m, tea.Batch(cmds...)

	case refreshTickMsg:
		return m, tea.Batch(m.fetchSnapshot(), m.scheduleRefresh())

	case noticeExpiredMsg:
		kept := m.notices[:0:0]
		for _, n := range m.notices {
			if n.id != msg.id {
				kept = append(kept, n)
			}
		}
		m.notices = kept
		return m, nil
	}

	return m, nil
}

func (m Model) toggleFocus() (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.focus == fieldGreeting {
		m.focus = fieldValue
		m.greetingInput.Blur()
		cmd = m.valueInput.Focus()
	} else {
		m.focus = fieldGreeting
		m.valueInput.Blur()
		cmd = m.greetingInput.Focus()
	}
	return m, cmd
}

// submit validates the drafts and sends the greeting. Drafts are only
// cleared once the transaction is confirmed.
func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.pending || !m.canWrite() {
		return m, nil
	}

	sub, err := greeting.ParseDraft(m.greetingInput.Value(), m.valueInput.Value(), m.decimals())
	if errors.Is(err, greeting.ErrEmptyGreeting) {
		return m.notify(NoticeError, "Please enter a greeting")
	}
	if err != nil {
		m.cfg.Logger.Error().Err(err).Msg("error setting greeting")
		return m, nil
	}

	m.pending = true
	return m, m.sendGreeting(sub)
}

func (m Model) decimals() uint8 {
	if m.cfg.Chain == nil {
		return 18
	}
	return m.cfg.Chain.Decimals
}

func (m Model) notify(kind NoticeKind, text string) (Model, tea.Cmd) {
	m.nextNotice++
	id := m.nextNotice
	m.notices = append(m.notices, Notice{Kind: kind, Text: text, id: id})
	return m, tea.Tick(noticeTTL, func(time.Time) tea.Msg {
		return noticeExpiredMsg{id: id}
	})
}

func (m Model) markSeen(ev greeting.Event) bool {
	if _, ok := m.seen[ev.Key()]; ok {
		return false
	}
	m.seen[ev.Key()] = struct{}{}
	return true
}

// merge keeps previously read values for fields the latest read missed.
func merge(prev, next greeting.Snapshot) greeting.Snapshot {
	if next.Greeting == nil {
		next.Greeting = prev.Greeting
	}
	if next.TotalCounter == nil {
		next.TotalCounter = prev.TotalCounter
	}
	if next.UserCounter == nil {
		next.UserCounter = prev.UserCounter
	}
	if next.Premium == nil {
		next.Premium = prev.Premium
	}
	return next
}

// Commands

func (m Model) fetchSnapshot() tea.Cmd {
	source, account, parent := m.cfg.Source, m.cfg.Account, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, readTimeout)
		defer cancel()

		snap, err := source.Snapshot(ctx, account)
		return snapshotMsg{snap: snap, err: err}
	}
}

func (m Model) fetchBalance() tea.Cmd {
	balance, parent := m.cfg.Balance, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, readTimeout)
		defer cancel()

		b, err := balance(ctx)
		return balanceMsg{balance: b, err: err}
	}
}

func (m Model) loadHistory() tea.Cmd {
	feed, from, parent := m.cfg.Feed, m.cfg.FromBlock, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, historyTimeout)
		defer cancel()

		events, head, err := feed.History(ctx, from)
		return historyMsg{events: events, head: head, err: err}
	}
}

func (m Model) startWatch(from uint64) tea.Cmd {
	feed, sink, parent, log := m.cfg.Feed, m.live, m.ctx, m.cfg.Logger
	return func() tea.Msg {
		go func() {
			defer close(sink)
			if err := feed.Watch(parent, from, sink); err != nil {
				log.Error().Err(err).Msg("watching greeting events")
			}
		}()
		return nil
	}
}

func waitForLive(ch <-chan greeting.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return liveEventMsg{event: ev}
	}
}

func (m Model) scheduleRefresh() tea.Cmd {
	return tea.Tick(m.cfg.PollInterval, func(time.Time) tea.Msg {
		return refreshTickMsg{}
	})
}

func (m Model) sendGreeting(sub greeting.Submission) tea.Cmd {
	submitter, parent := m.cfg.Submitter, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, submitTimeout)
		defer cancel()

		receipt, err := submitter.SetGreeting(ctx, sub.Text, sub.Value)
		return submitResultMsg{receipt: receipt, err: err}
	}
}

// Run starts the dashboard on the alternate screen until the user quits or
// ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	p := tea.NewProgram(New(ctx, cfg), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
