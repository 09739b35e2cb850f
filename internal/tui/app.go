// Package tui is the terminal operator console for smsdashd.
package tui

import (
	"context"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/smsdash/internal/tui/keys"
	"github.com/matheus3301/smsdash/internal/tui/model"
	"github.com/matheus3301/smsdash/internal/tui/ui"
	"github.com/matheus3301/smsdash/internal/tui/views"
	"github.com/rivo/tview"
)

const (
	pageContacts = "contacts"
	pageChat     = "chat"
	pageHelp     = "help"
	pageConfirm  = "confirm"
)

// App is the main TUI application shell.
type App struct {
	app       *tview.Application
	root      *tview.Flex
	pages     *tview.Pages
	vm        *model.ViewModel
	theme     *ui.Theme
	registry  *keys.Registry
	statusBar *views.StatusBar
	contacts  *views.ContactList
	msgView   *views.MessageView
	composer  *views.Composer
	help      *views.HelpView
	prompt    *ui.Prompt

	// renamePending is the phone a PromptContactName answer applies to.
	renamePending string

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(d model.Daemon, addr string) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		vm:        model.NewViewModel(d),
		theme:     theme,
		registry:  keys.NewRegistry(),
		statusBar: views.NewStatusBar(theme),
		contacts:  views.NewContactList(theme),
		msgView:   views.NewMessageView(theme),
		composer:  views.NewComposer(theme),
		help:      views.NewHelpView(theme),
		prompt:    ui.NewPrompt(theme),
		ctx:       ctx,
		cancel:    cancel,
	}

	a.statusBar.SetAddr(addr)
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal("quit", &keys.Action{
		Rune: 'q', Key: tcell.KeyRune,
		Description: "q:quit", Visible: true,
		Handler: a.Stop,
	})
	a.registry.AddGlobal("help", &keys.Action{
		Rune: '?', Key: tcell.KeyRune,
		Description: "?:help", Visible: true,
		Handler: func() { a.switchTo(pageHelp, a.help) },
	})
	a.registry.AddGlobal("command", &keys.Action{
		Rune: ':', Key: tcell.KeyRune,
		Description: ":cmd", Visible: true,
		Handler: func() { a.showPrompt(ui.PromptCommand, "") },
	})

	a.registry.AddView(pageContacts, "new", &keys.Action{
		Rune: 'n', Key: tcell.KeyRune,
		Description: "n:new", Visible: true,
		Handler: func() { a.showPrompt(ui.PromptRecipient, "") },
	})
	a.registry.AddView(pageContacts, "delete", &keys.Action{
		Rune: 'D', Key: tcell.KeyRune,
		Description: "D:delete", Visible: true,
		Handler: func() { a.confirmDelete(a.target()) },
	})
	a.registry.AddView(pageContacts, "rename", &keys.Action{
		Rune: 'r', Key: tcell.KeyRune,
		Description: "r:rename", Visible: true,
		Handler: func() { a.renamePrompt(a.target()) },
	})
	a.registry.AddView(pageContacts, "reload", &keys.Action{
		Rune: 'R', Key: tcell.KeyRune,
		Description: "R:reload", Visible: true,
		Handler: a.reload,
	})

	a.registry.AddView(pageChat, "compose", &keys.Action{
		Rune: 'i', Key: tcell.KeyRune,
		Description: "i:write", Visible: true,
		Handler: func() { a.app.SetFocus(a.composer) },
	})
	a.registry.AddView(pageChat, "rename", &keys.Action{
		Rune: 'r', Key: tcell.KeyRune,
		Description: "r:rename", Visible: true,
		Handler: func() { a.renamePrompt(a.target()) },
	})
	a.registry.AddView(pageChat, "delete", &keys.Action{
		Rune: 'D', Key: tcell.KeyRune,
		Description: "D:delete", Visible: true,
		Handler: func() { a.confirmDelete(a.target()) },
	})
}

func (a *App) setupCallbacks() {
	a.contacts.SetSelectedFunc(func(_, _ int) {
		if phone := a.contacts.Selected(); phone != "" {
			a.openChat(phone)
		}
	})

	a.composer.SetOnSend(func(text string) {
		phone := a.vm.Mirror.Active()
		if phone == "" {
			return
		}
		go func() {
			if err := a.vm.Send(a.ctx, phone, text, ""); err != nil {
				a.vm.Flash.Set("Send failed: "+err.Error(), 5*time.Second)
			}
			a.refresh()
		}()
	})
	a.composer.SetOnLeave(func() { a.app.SetFocus(a.msgView) })

	a.prompt.SetOnSubmit(a.onPrompt)
	a.prompt.SetOnCancel(a.hidePrompt)
}

func (a *App) setupLayout() {
	chatFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.msgView, 0, 1, false).
		AddItem(a.composer, 1, 0, false)

	a.pages.AddPage(pageContacts, a.contacts, true, true)
	a.pages.AddPage(pageChat, chatFlex, true, false)
	a.pages.AddPage(pageHelp, a.help, true, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(a.root, true)
	a.statusBar.SetHints(a.registry.Hints(pageContacts))

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		// Text inputs own every key, including Esc.
		if _, ok := a.app.GetFocus().(*tview.InputField); ok {
			return event
		}

		page, _ := a.pages.GetFrontPage()
		if page == pageConfirm {
			return event
		}
		if event.Key() == tcell.KeyEscape && page != pageContacts {
			a.backToContacts()
			return nil
		}
		if a.registry.HandleEvent(page, event) {
			return nil
		}
		return event
	})
}

func (a *App) switchTo(page string, focus tview.Primitive) {
	a.pages.SwitchToPage(page)
	a.app.SetFocus(focus)
	a.statusBar.SetHints(a.registry.Hints(page))
}

func (a *App) backToContacts() {
	a.vm.Mirror.Close()
	a.contacts.Update(a.vm.Mirror.Entries())
	a.switchTo(pageContacts, a.contacts)
}

// target is the conversation an action applies to: the open one, else the selected row.
func (a *App) target() string {
	if phone := a.vm.Mirror.Active(); phone != "" {
		return phone
	}
	return a.contacts.Selected()
}

func (a *App) openChat(phone string) {
	a.vm.Mirror.Open(phone)
	name := a.vm.Mirror.Name(phone)
	a.msgView.SetContact(name, phone)
	a.msgView.Update(name, a.vm.Mirror.Messages(phone))
	a.statusBar.SetUnseen(a.vm.Mirror.UnseenCount())
	a.switchTo(pageChat, a.msgView)
	if len(a.vm.Mirror.Messages(phone)) == 0 {
		a.app.SetFocus(a.composer)
	}
}

func (a *App) showPrompt(mode ui.PromptMode, initial string) {
	a.prompt.Activate(mode, initial)
	a.root.ResizeItem(a.prompt, 3, 0)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.root.ResizeItem(a.prompt, 0, 0)
	page, item := a.pages.GetFrontPage()
	if page == pageChat {
		a.app.SetFocus(a.msgView)
		return
	}
	a.app.SetFocus(item)
}

func (a *App) renamePrompt(phone string) {
	if phone == "" {
		return
	}
	a.renamePending = phone
	current := a.vm.Mirror.Name(phone)
	if current == phone {
		current = ""
	}
	a.showPrompt(ui.PromptContactName, current)
}

func (a *App) onPrompt(mode ui.PromptMode, text string) {
	a.hidePrompt()
	switch mode {
	case ui.PromptRecipient:
		a.openChat(text)
	case ui.PromptContactName:
		a.rename(a.renamePending, text)
	case ui.PromptCommand:
		a.runCommand(ParseCommand(text))
	}
}

func (a *App) runCommand(cmd Command) {
	switch cmd.Name {
	case "quit":
		a.Stop()
	case "new":
		if cmd.Args == "" {
			a.showPrompt(ui.PromptRecipient, "")
			return
		}
		a.openChat(cmd.Args)
	case "name":
		if cmd.Args == "" {
			a.renamePrompt(a.target())
			return
		}
		a.rename(a.target(), cmd.Args)
	case "delete":
		a.confirmDelete(a.target())
	case "reload":
		a.reload()
	case "help":
		a.switchTo(pageHelp, a.help)
	default:
		a.vm.Flash.Set("Unknown command: "+cmd.Name, 3*time.Second)
		a.statusBar.SetFlash(a.vm.Flash.Get())
	}
}

func (a *App) rename(phone, name string) {
	if phone == "" {
		return
	}
	go func() {
		if err := a.vm.Rename(a.ctx, phone, name); err != nil {
			a.vm.Flash.Set("Rename failed: "+err.Error(), 5*time.Second)
		}
		a.refresh()
	}()
}

func (a *App) confirmDelete(phone string) {
	if phone == "" {
		return
	}
	modal := tview.NewModal().
		SetText("Delete the conversation with " + tview.Escape(a.vm.Mirror.Name(phone)) + "?").
		AddButtons([]string{"Delete", "Cancel"}).
		SetDoneFunc(func(_ int, label string) {
			a.pages.RemovePage(pageConfirm)
			if label != "Delete" {
				page, item := a.pages.GetFrontPage()
				a.switchTo(page, item)
				return
			}
			a.backToContacts()
			go func() {
				if err := a.vm.Delete(a.ctx, phone); err != nil {
					a.vm.Flash.Set("Delete failed: "+err.Error(), 5*time.Second)
				}
				a.refresh()
			}()
		})
	a.pages.AddPage(pageConfirm, modal, true, true)
	a.app.SetFocus(modal)
}

func (a *App) reload() {
	go func() {
		if err := a.vm.Load(a.ctx); err != nil {
			a.vm.Flash.Set("Reload failed: "+err.Error(), 5*time.Second)
		} else {
			a.vm.Flash.Set("Reloaded", 2*time.Second)
		}
		_ = a.vm.LoadStatus(a.ctx)
		a.refresh()
	}()
}

// refresh redraws from the mirror. Safe to call from any goroutine.
func (a *App) refresh() {
	a.app.QueueUpdateDraw(func() {
		a.contacts.Update(a.vm.Mirror.Entries())
		if phone := a.vm.Mirror.Active(); phone != "" {
			name := a.vm.Mirror.Name(phone)
			a.msgView.SetContact(name, phone)
			a.msgView.Update(name, a.vm.Mirror.Messages(phone))
		}
		a.statusBar.SetStatus(a.vm.Status(), a.vm.Connected())
		a.statusBar.SetUnseen(a.vm.Mirror.UnseenCount())
		a.statusBar.SetFlash(a.vm.Flash.Get())
	})
}

// Run starts the TUI application.
func (a *App) Run() error {
	go func() {
		_ = a.vm.LoadStatus(a.ctx)
		if err := a.vm.Load(a.ctx); err != nil {
			a.vm.Flash.Set("Load failed: "+err.Error(), 5*time.Second)
		}
		a.refresh()
		go a.vm.Follow(a.ctx, a.refresh)
		a.startStatusLoop()
	}()

	return a.app.Run()
}

func (a *App) startStatusLoop() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = a.vm.LoadStatus(a.ctx)
			a.refresh()
		case <-a.ctx.Done():
			return
		}
	}
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
