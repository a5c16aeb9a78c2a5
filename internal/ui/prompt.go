package ui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// Prompt is a labelled single-line input with a styled prefix
type Prompt struct {
	label   string
	input   textinput.Model
	width   int
	focused bool
}

// NewPrompt creates an unfocused prompt. A charLimit of 0 accepts input of
// any length.
func NewPrompt(label, placeholder string, charLimit int) Prompt {
	ti := textinput.New()
	ti.Prompt = ""
	ti.Placeholder = placeholder
	ti.CharLimit = charLimit
	ti.Width = 60

	return Prompt{
		label: label,
		input: ti,
		width: 64,
	}
}

// Focus sets focus on the prompt
func (p *Prompt) Focus() tea.Cmd {
	p.focused = true
	return p.input.Focus()
}

// Blur removes focus from the prompt
func (p *Prompt) Blur() {
	p.focused = false
	p.input.Blur()
}

// Focused returns whether the prompt has focus
func (p *Prompt) Focused() bool {
	return p.focused
}

// SetWidth sets the width of the input
func (p *Prompt) SetWidth(w int) {
	p.width = w
	p.input.Width = w - 4 // Account for prompt symbol and spacing
}

// Value returns the current input value
func (p *Prompt) Value() string {
	return p.input.Value()
}

// SetValue sets the input value
func (p *Prompt) SetValue(s string) {
	p.input.SetValue(s)
}

// Reset clears the input
func (p *Prompt) Reset() {
	p.input.Reset()
}

// Update handles input events; unfocused prompts ignore keys
func (p *Prompt) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	return cmd
}

// View renders the label line and the input line
func (p *Prompt) View() string {
	style := SelectorDim
	if p.focused {
		style = PromptStyle
	}
	return LabelStyle.Render(p.label) + "\n" + style.Render(SymbolPrompt) + " " + p.input.View()
}
