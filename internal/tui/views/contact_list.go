package views

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/smsdash/internal/tui/model"
	"github.com/matheus3301/smsdash/internal/tui/ui"
	"github.com/rivo/tview"
)

// ContactList is the conversation table, most recent first.
type ContactList struct {
	*tview.Table
	theme   *ui.Theme
	entries []model.Entry
}

// NewContactList creates the contact table.
func NewContactList(theme *ui.Theme) *ContactList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(" Contacts ")
	table.SetTitleColor(theme.TitleColor)

	return &ContactList{Table: table, theme: theme}
}

// Update redraws the table, keeping the cursor on the same phone number when it is still listed.
func (cl *ContactList) Update(entries []model.Entry) {
	selected := cl.Selected()
	cl.entries = entries
	cl.Clear()

	header := func(col int, text string) {
		cl.SetCell(0, col, tview.NewTableCell(text).
			SetSelectable(false).
			SetTextColor(cl.theme.TableHeaderFg).
			SetAttributes(tcell.AttrBold))
	}
	header(0, "  Name")
	header(1, " Phone")
	header(2, " Last Message")
	header(3, " Time")

	unseen := 0
	row := 1
	for _, e := range entries {
		marker := "  "
		color := cl.theme.FgColor
		if e.Unseen {
			marker = "● "
			color = cl.theme.UnseenColor
			unseen++
		}
		name := e.Name
		if name == "" {
			name = e.Phone
		}
		cl.SetCell(row, 0, tview.NewTableCell(marker+sanitizeForTerminal(name)).SetTextColor(color).SetMaxWidth(28).SetExpansion(1))
		cl.SetCell(row, 1, tview.NewTableCell(" "+e.Phone).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 2, tview.NewTableCell(" "+singleLine(e.Preview)).SetTextColor(cl.theme.FgColor).SetMaxWidth(48).SetExpansion(2))
		cl.SetCell(row, 3, tview.NewTableCell(" "+formatTimestamp(e.Last)).SetTextColor(cl.theme.FgColor))
		if e.Phone == selected {
			cl.Select(row, 0)
		}
		row++
	}

	title := fmt.Sprintf(" Contacts [%d] ", len(entries))
	if unseen > 0 {
		title = fmt.Sprintf(" Contacts [%d, %d unseen] ", len(entries), unseen)
	}
	cl.SetTitle(title)

	if r, _ := cl.GetSelection(); r < 1 && len(entries) > 0 {
		cl.Select(1, 0)
	}
}

// Selected returns the phone number under the cursor.
func (cl *ContactList) Selected() string {
	row, _ := cl.GetSelection()
	idx := row - 1
	if idx >= 0 && idx < len(cl.entries) {
		return cl.entries[idx].Phone
	}
	return ""
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.Local()
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}
