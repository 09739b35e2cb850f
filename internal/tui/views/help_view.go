package views

import (
	"fmt"

	"github.com/matheus3301/smsdash/internal/tui/ui"
	"github.com/rivo/tview"
)

// HelpView displays key binding reference.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	hv := &HelpView{TextView: tv, theme: theme}
	hv.render()
	return hv
}

func (hv *HelpView) render() {
	kc := ui.Tag(hv.theme.MenuKeyColor)
	key := func(k string) string { return kc + k + "[-:-:-]" }

	_, _ = fmt.Fprintf(hv, `
  [::b]Global[-:-:-]

  %s     Command mode         %s   Back
  %s     Help                 %s     Quit

  [::b]Contacts[-:-:-]

  %s  Open conversation    %s     New conversation
  %s     Rename contact       %s     Delete conversation
  %s     Reload from daemon

  [::b]Conversation[-:-:-]

  %s     Write a message      %s     Rename contact
  %s   Leave composer       %s Send (in composer)

  [::b]Commands[-:-:-]

  %s   Open or start a conversation
  %s      Name the open or selected contact
  %s            Delete the open or selected conversation
  %s            Reload everything
  %s              Quit
`,
		key(":"), key("Esc"), key("?"), key("q"),
		key("Enter"), key("n"), key("r"), key("D"), key("R"),
		key("i"), key("r"), key("Esc"), key("Enter"),
		key(":new <phone>"), key(":name <name>"), key(":delete"), key(":reload"), key(":q"),
	)
}
