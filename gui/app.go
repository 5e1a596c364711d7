//go:build gui

// Package gui is the fyne front end: a fixed-size window with the eye on top
// and the home or chat panel below.
package gui

import (
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"talkbox/pipeline"
	"talkbox/screen"
)

const maxChatEntries = 50

// App implements controller.Screen. Methods may be called from any
// goroutine; widget updates are marshalled with fyne.Do.
type App struct {
	fyneApp fyne.App
	window  fyne.Window
	eye     *EyeWidget
	onReady func()

	clock  *widget.Label
	date   *widget.Label
	chat   *widget.Label
	status *widget.Label
	home   fyne.CanvasObject
	talk   *container.Scroll
	body   *fyne.Container

	mu    sync.Mutex
	conv  *screen.Conversation
	ready chan struct{}
}

func NewApp(onReady func()) *App {
	return &App{
		onReady: onReady,
		conv:    screen.NewConversation(maxChatEntries),
		ready:   make(chan struct{}),
	}
}

// Run builds the window and blocks in the fyne event loop. onReady runs in
// its own goroutine once the widgets exist.
func Run(a *App) error {
	a.fyneApp = app.NewWithID("io.talkbox.gui")
	a.fyneApp.Settings().SetTheme(&darkTheme{})
	a.window = a.fyneApp.NewWindow("talkbox")

	a.eye = NewEyeWidget()
	a.clock = widget.NewLabelWithStyle("", fyne.TextAlignCenter, fyne.TextStyle{Bold: true})
	a.date = widget.NewLabelWithStyle("", fyne.TextAlignCenter, fyne.TextStyle{})
	a.home = container.NewVBox(a.clock, a.date)

	a.chat = widget.NewLabel("Hold the button and speak")
	a.chat.Wrapping = fyne.TextWrapWord
	a.talk = container.NewVScroll(a.chat)
	a.talk.SetMinSize(fyne.NewSize(float32(screen.EyeWidth*8), 160))

	a.status = widget.NewLabel("")
	a.body = container.NewStack(a.home)

	a.window.SetContent(container.NewBorder(a.eye, a.status, nil, nil, a.body))
	a.window.SetFixedSize(true)
	a.window.SetOnClosed(func() { a.eye.Stop() })
	a.tickClock(time.Now())

	go a.clockLoop()
	close(a.ready)
	go a.onReady()

	a.window.ShowAndRun()
	return nil
}

func (a *App) Quit() {
	if a.fyneApp != nil {
		fyne.Do(a.fyneApp.Quit)
	}
}

func (a *App) clockLoop() {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for now := range t.C {
		fyne.Do(func() { a.tickClock(now) })
	}
}

func (a *App) tickClock(now time.Time) {
	a.clock.SetText(screen.Clock(now))
	a.date.SetText(now.Format("Monday, January 2"))
}

func (a *App) ShowHome() {
	<-a.ready
	fyne.Do(func() {
		a.body.Objects = []fyne.CanvasObject{a.home}
		a.body.Refresh()
	})
}

func (a *App) ShowChat() {
	<-a.ready
	fyne.Do(func() {
		a.body.Objects = []fyne.CanvasObject{a.talk}
		a.body.Refresh()
	})
}

func (a *App) Listening(on bool) {
	<-a.ready
	a.eye.SetListening(on)
	text := ""
	if on {
		text = "● listening"
	}
	fyne.Do(func() { a.status.SetText(text) })
}

func (a *App) Transcript(ev pipeline.TranscriptEvent) {
	a.mu.Lock()
	a.conv.Transcript(ev)
	a.mu.Unlock()
	a.renderChat()
}

func (a *App) Reply(text string, done bool) {
	a.mu.Lock()
	a.conv.Reply(text, done)
	a.mu.Unlock()
	a.renderChat()
}

func (a *App) Error(err error) {
	a.mu.Lock()
	a.conv.Error(err)
	a.mu.Unlock()
	a.renderChat()
}

func (a *App) renderChat() {
	<-a.ready
	a.mu.Lock()
	text := chatText(a.conv)
	a.mu.Unlock()
	fyne.Do(func() {
		a.chat.SetText(text)
		a.talk.ScrollToBottom()
	})
}
