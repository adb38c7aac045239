package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/giftlist/internal/flow"
	"github.com/five82/giftlist/internal/gift"
	"github.com/five82/giftlist/internal/store"
)

// renderMain renders header, page body and footer.
func (m Model) renderMain() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(lipgloss.NewStyle().Width(m.bodyWidth()).MarginLeft(2).Render(m.renderPage()))
	b.WriteString("\n\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) bodyWidth() int {
	w := m.width - 4
	if w > contentWidth {
		w = contentWidth
	}
	if w < 20 {
		w = 20
	}
	return w
}

func (m Model) renderPage() string {
	switch m.page() {
	case flow.StateHome:
		return m.renderHome()
	case flow.StateLogin:
		return m.renderLogin()
	case flow.StateGifts:
		return m.renderGifts()
	case flow.StateSummary:
		return m.renderSummary()
	case flow.StateThankYou:
		return m.renderThankYou()
	default:
		return ""
	}
}

func (m Model) renderHeader() string {
	styles := m.theme.Styles()
	bg := NewBgStyle(m.theme.Surface)

	parts := []string{
		bg.Render(m.event.Title, styles.Title),
		bg.Render(m.event.Hosts, styles.Text),
	}
	if m.page() == flow.StateGifts || m.page() == flow.StateSummary {
		if n := m.flow.SelectionCount(); n > 0 {
			parts = append(parts, bg.Render(fmt.Sprintf("%d selected", n), styles.AccentText))
		}
	}
	return styles.Header.Render(bg.FillLine(bg.Join(parts, " · "), max(m.width-2, 0)))
}

func (m Model) renderFooter() string {
	styles := m.theme.Styles()
	bg := NewBgStyle(m.theme.Surface)

	bindings := m.keys.pageHelp(m.page().String())
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		parts = append(parts, helpEntry(bg, b, styles.WarningText, styles.MutedText))
	}
	return styles.Footer.Render(bg.FillLine(bg.Join(parts, "  "), max(m.width-2, 0)))
}

func helpEntry(bg BgStyle, b key.Binding, keyStyle, descStyle lipgloss.Style) string {
	h := b.Help()
	return bg.Render(h.Key, keyStyle) + bg.Render(" "+h.Desc, descStyle)
}

func (m Model) renderHome() string {
	styles := m.theme.Styles()
	var b strings.Builder
	b.WriteString(styles.Title.Render(m.event.Title))
	b.WriteString("\n")
	b.WriteString(styles.Text.Bold(true).Render(m.event.Hosts))
	b.WriteString("\n")
	b.WriteString(styles.MutedText.Render(m.event.Date))
	b.WriteString("\n\n")
	b.WriteString(styles.Text.Render(m.event.Message))
	b.WriteString("\n\n")
	b.WriteString(styles.AccentText.Render("Press enter to see the gift list"))
	return b.String()
}

func (m Model) renderLogin() string {
	styles := m.theme.Styles()
	var b strings.Builder
	b.WriteString(styles.Title.Render("Who is giving?"))
	b.WriteString("\n")
	b.WriteString(styles.MutedText.Render("We only use this to thank you."))
	b.WriteString("\n\n")

	msgs := [2]string{}
	if m.loginErr != nil {
		msgs[fieldName] = m.loginErr.Name
		msgs[fieldEmail] = m.loginErr.Email
	}
	for i, in := range m.inputs {
		b.WriteString(in.View())
		b.WriteString("\n")
		if msgs[i] != "" {
			b.WriteString(styles.DangerText.Render("  " + msgs[i]))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m Model) renderGifts() string {
	styles := m.theme.Styles()
	snap := m.snapshot

	var b strings.Builder
	b.WriteString(styles.Title.Render("Choose your gifts"))
	b.WriteString("\n\n")

	switch {
	case snap.Loading():
		b.WriteString(m.spinner.View() + " " + styles.MutedText.Render("Loading gifts..."))
		return b.String()
	case !snap.Loaded && snap.LastError != nil:
		b.WriteString(styles.DangerText.Render("The gift list is unavailable."))
		b.WriteString("\n")
		b.WriteString(styles.MutedText.Render(snap.LastError.Error()))
		b.WriteString("\n\n")
		b.WriteString(styles.AccentText.Render("Press r to try again"))
		return b.String()
	case len(snap.Gifts) == 0:
		b.WriteString(styles.MutedText.Render("Every gift has already been chosen. Thank you for coming!"))
		return b.String()
	}

	start, end := m.visibleRange(len(snap.Gifts))
	for i := start; i < end; i++ {
		b.WriteString(m.renderGiftRow(snap.Gifts[i], i == m.cursor))
		b.WriteString("\n")
	}
	if end-start < len(snap.Gifts) {
		b.WriteString(styles.FaintText.Render(fmt.Sprintf("%d–%d of %d", start+1, end, len(snap.Gifts))))
		b.WriteString("\n")
	}

	if snap.LastError != nil {
		b.WriteString("\n")
		if snap.IsOffline() {
			b.WriteString(styles.DangerText.Render("Live updates lost. Press r to reload."))
		} else {
			b.WriteString(styles.WarningText.Render("Live updates interrupted, retrying..."))
		}
		b.WriteString("\n")
	}
	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(styles.DangerText.Render(m.notice))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderGiftRow(g gift.Gift, current bool) string {
	styles := m.theme.Styles()
	mark := "[ ]"
	if m.flow.IsSelected(g.ID) {
		mark = "[x]"
	}
	line := fmt.Sprintf("%s %s", mark, g.Name)
	var image string
	if g.Image != "" {
		image = styles.MutedText.Render("  " + g.Image)
	}
	if current {
		return styles.Selected.Render("> "+line) + image
	}
	return styles.Text.Render("  "+line) + image
}

// visibleRange returns the window of rows that keeps the cursor on screen.
func (m Model) visibleRange(n int) (int, int) {
	rows := max(m.height-12, minListRows)
	if n <= rows {
		return 0, n
	}
	start := m.cursor - rows/2
	start = max(start, 0)
	start = min(start, n-rows)
	return start, start + rows
}

func (m Model) renderSummary() string {
	styles := m.theme.Styles()
	profile := m.flow.Profile()
	items := m.flow.Finalized()

	var b strings.Builder
	b.WriteString(styles.Title.Render("Review before confirming"))
	b.WriteString("\n\n")

	var details strings.Builder
	details.WriteString(styles.AccentText.Render("Your details"))
	details.WriteString("\n")
	details.WriteString(styles.MutedText.Render("Name:   ") + styles.Text.Render(profile.Name))
	details.WriteString("\n")
	details.WriteString(styles.MutedText.Render("E-mail: ") + styles.Text.Render(profile.Email))
	b.WriteString(styles.Panel.Render(details.String()))
	b.WriteString("\n")

	var list strings.Builder
	list.WriteString(styles.AccentText.Render("Selected gifts"))
	for _, it := range items {
		list.WriteString("\n")
		list.WriteString(styles.Text.Render("✓ " + it.Name))
	}
	if len(items) == 0 {
		list.WriteString("\n")
		list.WriteString(styles.MutedText.Render("Nothing left to confirm. Press esc to choose again."))
	}
	b.WriteString(styles.Panel.Render(list.String()))
	b.WriteString("\n")

	if m.confirming {
		b.WriteString(m.spinner.View() + " " + styles.MutedText.Render("Confirming your gifts..."))
		return b.String()
	}
	if err := m.flow.LastError(); err != nil {
		b.WriteString(m.renderCommitError(err))
	}
	return b.String()
}

func (m Model) renderCommitError(err error) string {
	styles := m.theme.Styles()
	if errors.Is(err, store.ErrAlreadyPurchased) {
		taken := m.flow.Taken()
		names := make([]string, len(taken))
		for i, t := range taken {
			names[i] = t.Name
		}
		msg := "Someone else just chose: " + strings.Join(names, ", ") + ". They were removed from your selection."
		if len(m.flow.Finalized()) > 0 {
			msg += " Press enter to confirm the rest."
		}
		return styles.WarningText.Render(msg)
	}
	return styles.DangerText.Render("Could not confirm your gifts: "+err.Error()) + "\n" +
		styles.AccentText.Render("Press enter to try again")
}

func (m Model) renderThankYou() string {
	styles := m.theme.Styles()
	var b strings.Builder
	b.WriteString(styles.SuccessText.Render(fmt.Sprintf("Thank you, %s!", m.flow.Profile().Name)))
	b.WriteString("\n\n")
	b.WriteString(styles.Text.Render("Your gift has been registered. We are so grateful for your generosity."))
	b.WriteString("\n\n")
	b.WriteString(styles.AccentText.Render(m.event.Hosts) + styles.Text.Render(" thank you for being part of this moment."))
	b.WriteString("\n\n")
	b.WriteString(styles.MutedText.Render("Press enter to start over"))
	return b.String()
}
