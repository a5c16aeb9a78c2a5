package ui

import (
	"errors"

	tea "github.com/charmbracelet/bubbletea"
)

// ErrCancelled is returned by Pick when the user backs out.
var ErrCancelled = errors.New("selection cancelled")

type pickerModel struct {
	selector Selector
}

func (m pickerModel) Init() tea.Cmd { return nil }

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.selector.SetWidth(msg.Width)
		return m, nil
	case tea.KeyMsg:
		m.selector.Update(msg)
		if m.selector.Done() {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m pickerModel) View() string {
	return m.selector.View()
}

// Pick runs a selector as its own program and returns the chosen item ID.
func Pick(title string, items []SelectorItem) (string, error) {
	final, err := tea.NewProgram(pickerModel{selector: NewSelector(title, items)}).Run()
	if err != nil {
		return "", err
	}

	sel := final.(pickerModel).selector
	if sel.Cancelled() {
		return "", ErrCancelled
	}
	return sel.Selected(), nil
}
