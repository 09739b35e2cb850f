package ui

import (
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
)

func TestAcceptPhone(t *testing.T) {
	assert.True(t, acceptPhone("+", '+'))
	assert.True(t, acceptPhone("+1", '1'))
	assert.False(t, acceptPhone("+1+", '+'))
	assert.False(t, acceptPhone("+1a", 'a'))
}

func TestCommandHistory(t *testing.T) {
	p := NewPrompt(DefaultTheme())
	var got []string
	p.SetOnSubmit(func(_ PromptMode, text string) { got = append(got, text) })

	p.Activate(PromptCommand, "")
	p.SetText("reload")
	p.done(tcell.KeyEnter)
	p.Activate(PromptCommand, "")
	p.SetText("new +1555")
	p.done(tcell.KeyEnter)
	assert.Equal(t, []string{"reload", "new +1555"}, got)

	p.Activate(PromptCommand, "")
	up := tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone)
	down := tcell.NewEventKey(tcell.KeyDown, 0, tcell.ModNone)
	assert.Nil(t, p.recall(up))
	assert.Equal(t, "new +1555", p.GetText())
	p.recall(up)
	assert.Equal(t, "reload", p.GetText())
	p.recall(down)
	p.recall(down)
	assert.Empty(t, p.GetText())
}

func TestRecipientNotRecorded(t *testing.T) {
	p := NewPrompt(DefaultTheme())
	p.Activate(PromptRecipient, "")
	p.SetText("+1555")
	p.done(tcell.KeyEnter)
	assert.Empty(t, p.history)
	assert.NotNil(t, p.recall(tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone)))
}

func TestEmptySubmitIgnored(t *testing.T) {
	p := NewPrompt(DefaultTheme())
	called := false
	p.SetOnSubmit(func(PromptMode, string) { called = true })
	p.Activate(PromptContactName, "")
	p.done(tcell.KeyEnter)
	assert.False(t, called)
}
