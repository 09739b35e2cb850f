package keys

import (
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
)

func runeEvent(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

func TestViewBindingShadowsGlobal(t *testing.T) {
	reg := NewRegistry()
	var got string
	reg.AddGlobal("quit", &Action{Key: tcell.KeyRune, Rune: 'q', Handler: func() { got = "global" }})
	reg.AddView("chat", "leave", &Action{Key: tcell.KeyRune, Rune: 'q', Handler: func() { got = "view" }})

	assert.True(t, reg.HandleEvent("chat", runeEvent('q')))
	assert.Equal(t, "view", got)

	assert.True(t, reg.HandleEvent("contacts", runeEvent('q')))
	assert.Equal(t, "global", got)
}

func TestUnmatchedAndNilHandler(t *testing.T) {
	reg := NewRegistry()
	reg.AddGlobal("help", &Action{Key: tcell.KeyRune, Rune: '?'})
	assert.False(t, reg.HandleEvent("contacts", runeEvent('?')))
	assert.False(t, reg.HandleEvent("contacts", runeEvent('x')))
}

func TestSpecialKeyMatch(t *testing.T) {
	a := &Action{Key: tcell.KeyCtrlR}
	assert.True(t, a.Matches(tcell.NewEventKey(tcell.KeyCtrlR, 0, tcell.ModCtrl)))
	assert.False(t, a.Matches(runeEvent('r')))
}

func TestHintsOrder(t *testing.T) {
	reg := NewRegistry()
	reg.AddGlobal("quit", &Action{Description: "q:quit", Visible: true})
	reg.AddGlobal("help", &Action{Description: "?:help", Visible: true})
	reg.AddGlobal("hidden", &Action{Description: "x:hidden"})
	reg.AddView("contacts", "new", &Action{Description: "n:new", Visible: true})

	assert.Equal(t, []string{"n:new", "?:help", "q:quit"}, reg.Hints("contacts"))
}
