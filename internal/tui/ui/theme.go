package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
)

// Theme holds color constants for the TUI.
type Theme struct {
	BgColor           tcell.Color
	FgColor           tcell.Color
	BorderColor       tcell.Color
	BorderFocusColor  tcell.Color
	TableHeaderFg     tcell.Color
	TableCursorFg     tcell.Color
	TableCursorBg     tcell.Color
	UnseenColor       tcell.Color
	InboundColor      tcell.Color
	OutboundColor     tcell.Color
	MenuKeyColor      tcell.Color
	TitleColor        tcell.Color
	FlashInfoColor    tcell.Color
	FlashErrColor     tcell.Color
	StatusBarBg       tcell.Color
	PromptBorderColor tcell.Color
}

// DefaultTheme returns a dark theme.
func DefaultTheme() *Theme {
	return &Theme{
		BgColor:           tcell.ColorBlack,
		FgColor:           tcell.ColorCadetBlue,
		BorderColor:       tcell.ColorDodgerBlue,
		BorderFocusColor:  tcell.ColorLightSkyBlue,
		TableHeaderFg:     tcell.ColorWhite,
		TableCursorFg:     tcell.ColorBlack,
		TableCursorBg:     tcell.ColorAqua,
		UnseenColor:       tcell.ColorOrange,
		InboundColor:      tcell.ColorLightGreen,
		OutboundColor:     tcell.ColorLightSkyBlue,
		MenuKeyColor:      tcell.ColorDodgerBlue,
		TitleColor:        tcell.ColorFuchsia,
		FlashInfoColor:    tcell.ColorNavajoWhite,
		FlashErrColor:     tcell.ColorOrangeRed,
		StatusBarBg:       tcell.ColorDarkSlateGray,
		PromptBorderColor: tcell.ColorDodgerBlue,
	}
}

// Tag renders c as a tview color tag.
func Tag(c tcell.Color) string {
	return fmt.Sprintf("[#%06x]", c.Hex())
}
