package views

import (
	"fmt"

	"github.com/matheus3301/smsdash/internal/store"
	"github.com/matheus3301/smsdash/internal/tui/ui"
	"github.com/rivo/tview"
)

// MessageView displays one conversation, oldest first.
type MessageView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewMessageView creates a new message view.
func NewMessageView(theme *ui.Theme) *MessageView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true).SetTitle(" Messages ")
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitleColor(theme.TitleColor)

	return &MessageView{TextView: tv, theme: theme}
}

// SetContact updates the title.
func (mv *MessageView) SetContact(name, phone string) {
	title := fmt.Sprintf(" %s ", sanitizeForTerminal(name))
	if name != phone {
		title = fmt.Sprintf(" %s (%s) ", sanitizeForTerminal(name), phone)
	}
	mv.SetTitle(tview.Escape(title))
}

// Update redraws the conversation and scrolls to the newest message.
func (mv *MessageView) Update(name string, msgs []store.Message) {
	mv.Clear()
	if len(msgs) == 0 {
		_, _ = fmt.Fprint(mv, "[::d]No messages yet. Press i to write one.[-:-:-]")
		return
	}

	inTag := ui.Tag(mv.theme.InboundColor)
	outTag := ui.Tag(mv.theme.OutboundColor)
	for _, m := range msgs {
		sender, tag := tview.Escape(sanitizeForTerminal(name)), inTag
		if m.Direction == store.Outbound {
			sender, tag = "You", outTag
		}
		ts := ""
		if !m.Timestamp.IsZero() {
			ts = m.Timestamp.Local().Format("2006-01-02 15:04")
		}
		status := ""
		if m.Direction == store.Outbound && m.Status != "" {
			status = " · " + m.Status
		}
		_, _ = fmt.Fprintf(mv, "%s[::b]%s[-:-:-] [::d]%s%s[-:-:-]\n%s\n\n", tag, sender, ts, status, displayText(m.Body))
	}

	mv.ScrollToEnd()
}
