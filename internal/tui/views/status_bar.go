package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/smsdash/internal/tui/ui"
	"github.com/rivo/tview"
)

// StatusBar shows the daemon address, its sync state, live channel health and flash messages.
type StatusBar struct {
	*tview.TextView
	theme     *ui.Theme
	addr      string
	status    string
	connected bool
	unseen    int
	hints     []string
	flash     string
}

// NewStatusBar creates a new status bar.
func NewStatusBar(theme *ui.Theme) *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.StatusBarBg)

	return &StatusBar{TextView: tv, theme: theme}
}

// SetAddr sets the daemon address.
func (sb *StatusBar) SetAddr(addr string) {
	sb.addr = addr
	sb.render()
}

// SetStatus updates the daemon state and live channel indicator.
func (sb *StatusBar) SetStatus(status string, connected bool) {
	sb.status = status
	sb.connected = connected
	sb.render()
}

// SetUnseen updates the unseen conversation counter.
func (sb *StatusBar) SetUnseen(n int) {
	sb.unseen = n
	sb.render()
}

// SetHints sets the key hints for the current page.
func (sb *StatusBar) SetHints(hints []string) {
	sb.hints = hints
	sb.render()
}

// SetFlash sets a temporary message.
func (sb *StatusBar) SetFlash(msg string) {
	sb.flash = msg
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	live := "[red]offline[-]"
	if sb.connected {
		live = "[green]live[-]"
	}

	line := fmt.Sprintf(" [::b]%s[-:-:-] | %s %s | %s", sb.addr, sb.status, live, time.Now().Format("15:04"))
	if sb.unseen > 0 {
		line += fmt.Sprintf(" | %s%d unseen[-]", ui.Tag(sb.theme.UnseenColor), sb.unseen)
	}
	if len(sb.hints) > 0 {
		line += " | [::d]" + strings.Join(sb.hints, " ") + "[-:-:-]"
	}
	if sb.flash != "" {
		line += fmt.Sprintf(" | %s%s[-]", ui.Tag(sb.theme.FlashInfoColor), tview.Escape(sb.flash))
	}

	_, _ = fmt.Fprint(sb, line)
}
