package dashboard

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/yolodolo42/greeter/internal/chain"
	"github.com/yolodolo42/greeter/internal/greeting"
	"github.com/yolodolo42/greeter/internal/ui"
)

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	sections := []string{
		m.renderHeader(),
		m.renderGreetingCard(),
		m.renderStats(),
		m.renderForm(),
	}
	if notices := m.renderNotices(); notices != "" {
		sections = append(sections, notices)
	}
	sections = append(sections,
		m.renderActivity(),
		ui.HelpStyle.Render("tab switch field · enter update · ctrl+r refresh · esc quit"),
	)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) cardWidth() int {
	return max(min(m.width-2, 80), 30)
}

func (m Model) renderHeader() string {
	var b strings.Builder
	b.WriteString(ui.TitleStyle.Render("Hello Intuition"))
	b.WriteString("\n")
	b.WriteString(ui.SubtitleStyle.Render("Share your thoughts on the blockchain"))

	if m.cfg.Chain != nil {
		network := m.cfg.Chain.Name
		if m.cfg.Chain.IsTestnet {
			network += " (testnet)"
		}
		b.WriteString("\n")
		b.WriteString(ui.SubtitleStyle.Render("Network: " + network))
	}

	if m.cfg.Account != nil {
		line := "Connected as " + m.cfg.Account.Hex()
		if m.balance != nil && m.cfg.Chain != nil {
			line += " · " + chain.FormatUnits(m.balance, m.cfg.Chain.Decimals, 4) + " " + m.cfg.Chain.NativeCurrency
		}
		b.WriteString("\n")
		b.WriteString(ui.SubtitleStyle.Render(line))
	}
	return b.String() + "\n"
}

// renderGreetingCard shows the current greeting with at most one premium
// badge.
func (m Model) renderGreetingCard() string {
	title := ui.CardTitleStyle.Render(ui.SymbolChat + " Current Greeting")
	if m.snapshot.Premium != nil && *m.snapshot.Premium {
		title += " " + ui.Badge()
	}

	body := title + "\n\n" + ui.GreetingStyle.Render(greeting.DisplayGreeting(m.snapshot.Greeting))
	return ui.CardStyle.Width(m.cardWidth()).Render(body)
}

func (m Model) renderStats() string {
	w := m.cardWidth()/2 - 1

	total := ui.CardStyle.Width(w).Render(
		ui.CardTitleStyle.Render(ui.SymbolUsers+" Total Greetings") + "\n" +
			ui.StatValueStyle.Render(greeting.FormatCounter(m.snapshot.TotalCounter)) + "\n" +
			ui.SubtitleStyle.Render("From all users"),
	)
	yours := ui.CardStyle.Width(w).Render(
		ui.CardTitleStyle.Render(ui.SymbolChat+" Your Greetings") + "\n" +
			ui.StatValueAltStyle.Render(greeting.FormatCounter(m.snapshot.UserCounter)) + "\n" +
			ui.SubtitleStyle.Render("Your contributions"),
	)
	return lipgloss.JoinHorizontal(lipgloss.Top, total, yours)
}

func (m Model) renderForm() string {
	var b strings.Builder
	b.WriteString(ui.CardTitleStyle.Render("Set New Greeting"))
	b.WriteString("\n\n")
	b.WriteString(m.greetingInput.View())
	b.WriteString("\n\n")
	b.WriteString(m.valueInput.View())
	b.WriteString("\n\n")

	switch {
	case m.pending:
		b.WriteString(m.spinner.View() + " Updating...")
	case !m.canWrite():
		b.WriteString(ui.SelectorDim.Render("[ Update Greeting ]"))
		b.WriteString("\n")
		b.WriteString(ui.SelectorDim.Render(m.disabledHint()))
	default:
		b.WriteString(ui.PromptStyle.Render("[ " + ui.SymbolSparkle + " Update Greeting ]"))
	}
	return ui.CardStyle.Width(m.cardWidth()).Render(b.String())
}

func (m Model) renderNotices() string {
	lines := make([]string, 0, len(m.notices))
	for _, n := range m.notices {
		if n.Kind == NoticeSuccess {
			lines = append(lines, ui.SuccessStyle.Render(ui.SymbolCheck+" "+n.Text))
		} else {
			lines = append(lines, ui.ErrorStyle.Render(ui.SymbolCross+" "+n.Text))
		}
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderActivity() string {
	var b strings.Builder
	b.WriteString(ui.CardTitleStyle.Render("Recent Activity"))
	b.WriteString("\n\n")

	switch {
	case m.eventsLoading:
		b.WriteString(m.spinner.View())
	case len(m.events) == 0:
		b.WriteString(ui.SubtitleStyle.Render("No greetings yet. Be the first!"))
	default:
		recent := greeting.Recent(m.events, greeting.RecentLimit)
		for i, ev := range recent {
			if i > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(m.renderEvent(ev))
		}
	}
	return ui.CardStyle.Width(m.cardWidth()).Render(b.String())
}

func (m Model) renderEvent(ev greeting.Event) string {
	head := ui.LabelStyle.Render(greeting.ShortAddress(ev.Setter))
	if ev.Premium {
		head += " " + ui.Badge()
	}

	lines := []string{head, `"` + ev.NewGreeting + `"`}
	if sent := greeting.FormatSent(ev.Value, m.cfg.Unit); sent != "" {
		lines = append(lines, ui.SubtitleStyle.Render(sent))
	}
	return strings.Join(lines, "\n")
}

func (m Model) disabledHint() string {
	if m.cfg.Account != nil {
		return "Read-only session: restart without --read-only to update the greeting"
	}
	return "Connect a wallet to update the greeting"
}
