package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// SelectorItem is one choice in a Selector.
type SelectorItem struct {
	ID          string
	Label       string
	Description string
	Current     bool
}

type selectorState int

const (
	choosing selectorState = iota
	chosen
	cancelled
)

type selectorKeys struct {
	Up     key.Binding
	Down   key.Binding
	Choose key.Binding
	Cancel key.Binding
}

var defaultSelectorKeys = selectorKeys{
	Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Choose: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
	Cancel: key.NewBinding(key.WithKeys("esc", "q", "ctrl+c"), key.WithHelp("esc", "cancel")),
}

// Selector is a vertical list with a cursor. Digits 1-9 choose directly.
type Selector struct {
	title  string
	items  []SelectorItem
	cursor int
	state  selectorState
	keys   selectorKeys
	width  int
}

// NewSelector starts with the cursor on the item marked Current.
func NewSelector(title string, items []SelectorItem) Selector {
	cursor := 0
	for i, item := range items {
		if item.Current {
			cursor = i
			break
		}
	}
	return Selector{title: title, items: items, cursor: cursor, keys: defaultSelectorKeys, width: 80}
}

func (s *Selector) SetWidth(w int) {
	s.width = w
}

// Done reports whether the user chose or cancelled.
func (s *Selector) Done() bool {
	return s.state != choosing
}

func (s *Selector) Cancelled() bool {
	return s.state == cancelled
}

// Selected returns the chosen ID, or "" until something is chosen.
func (s *Selector) Selected() string {
	if s.state != chosen {
		return ""
	}
	return s.items[s.cursor].ID
}

func (s *Selector) Update(msg tea.Msg) tea.Cmd {
	km, ok := msg.(tea.KeyMsg)
	if !ok || s.Done() {
		return nil
	}

	switch {
	case key.Matches(km, s.keys.Up):
		s.cursor = max(s.cursor-1, 0)
	case key.Matches(km, s.keys.Down):
		s.cursor = min(s.cursor+1, len(s.items)-1)
	case key.Matches(km, s.keys.Choose):
		if len(s.items) > 0 {
			s.state = chosen
		}
	case key.Matches(km, s.keys.Cancel):
		s.state = cancelled
	default:
		if n := digit(km); n > 0 && n <= len(s.items) {
			s.cursor = n - 1
			s.state = chosen
		}
	}
	return nil
}

func digit(km tea.KeyMsg) int {
	if km.Type != tea.KeyRunes || len(km.Runes) != 1 {
		return 0
	}
	r := km.Runes[0]
	if r < '1' || r > '9' {
		return 0
	}
	return int(r - '0')
}

func (s *Selector) View() string {
	if s.Done() {
		return ""
	}

	help := make([]string, 0, 4)
	for _, b := range []key.Binding{s.keys.Up, s.keys.Down, s.keys.Choose, s.keys.Cancel} {
		help = append(help, b.Help().Key+" "+b.Help().Desc)
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(s.title))
	b.WriteString("\n\n")

	labelWidth := min(24, max(s.width/3, 12))
	for i, item := range s.items {
		name := item.Label
		if name == "" {
			name = item.ID
		}
		row := fmt.Sprintf("%d. %-*s", i+1, labelWidth, name)

		if i == s.cursor {
			b.WriteString(SelectorCursor.Render(SymbolArrow) + " " + SelectorActive.Render(row))
		} else {
			b.WriteString("  " + SelectorItemStyle.Render(row))
		}

		desc := item.Description
		if item.Current {
			desc = strings.TrimSpace(desc + " (current)")
		}
		if desc != "" {
			b.WriteString(" " + SelectorDim.Render(desc))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(HelpStyle.Render(strings.Join(help, " · ")))
	return b.String()
}
