package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// PromptMode tells what the prompt is collecting.
type PromptMode int

const (
	PromptCommand PromptMode = iota
	PromptRecipient
	PromptContactName
)

// Prompt is a one-line input bar shown above the status bar.
// Command entries are kept in a history recalled with Up and Down.
type Prompt struct {
	*tview.InputField
	mode     PromptMode
	history  []string
	cursor   int
	onSubmit func(mode PromptMode, text string)
	onCancel func()
}

// NewPrompt creates a new prompt input bar.
func NewPrompt(theme *Theme) *Prompt {
	input := tview.NewInputField()
	input.SetBorder(true)
	input.SetBorderColor(theme.PromptBorderColor)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.MenuKeyColor)

	p := &Prompt{InputField: input}
	input.SetDoneFunc(p.done)
	input.SetInputCapture(p.recall)
	return p
}

func (p *Prompt) done(key tcell.Key) {
	switch key {
	case tcell.KeyEnter:
		text := p.GetText()
		p.SetText("")
		if text == "" {
			return
		}
		if p.mode == PromptCommand {
			p.history = append(p.history, text)
		}
		if p.onSubmit != nil {
			p.onSubmit(p.mode, text)
		}
	case tcell.KeyEscape:
		p.SetText("")
		if p.onCancel != nil {
			p.onCancel()
		}
	}
}

func (p *Prompt) recall(ev *tcell.EventKey) *tcell.EventKey {
	if p.mode != PromptCommand || len(p.history) == 0 {
		return ev
	}
	switch ev.Key() {
	case tcell.KeyUp:
		if p.cursor > 0 {
			p.cursor--
		}
	case tcell.KeyDown:
		if p.cursor < len(p.history) {
			p.cursor++
		}
	default:
		return ev
	}
	if p.cursor == len(p.history) {
		p.SetText("")
	} else {
		p.SetText(p.history[p.cursor])
	}
	return nil
}

// SetOnSubmit sets the callback for a non-empty Enter.
func (p *Prompt) SetOnSubmit(fn func(mode PromptMode, text string)) {
	p.onSubmit = fn
}

// SetOnCancel sets the callback for Esc.
func (p *Prompt) SetOnCancel(fn func()) {
	p.onCancel = fn
}

// Activate readies the prompt for mode; initial prefills the field.
func (p *Prompt) Activate(mode PromptMode, initial string) {
	p.mode = mode
	p.cursor = len(p.history)
	p.SetText(initial)
	p.SetAcceptanceFunc(nil)
	switch mode {
	case PromptCommand:
		p.SetLabel(":")
		p.SetTitle(" Command ")
	case PromptRecipient:
		p.SetLabel("To: ")
		p.SetTitle(" New conversation ")
		p.SetAcceptanceFunc(acceptPhone)
	case PromptContactName:
		p.SetLabel("Name: ")
		p.SetTitle(" Contact name ")
	}
}

// Mode returns the current prompt mode.
func (p *Prompt) Mode() PromptMode {
	return p.mode
}

// acceptPhone allows an optional leading '+' followed by digits.
func acceptPhone(text string, last rune) bool {
	if last == '+' {
		return len(text) == 1
	}
	return last >= '0' && last <= '9'
}
