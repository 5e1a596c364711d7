package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"talkbox/pipeline"
	"talkbox/screen"
)

// Messages sent into the program by tuiScreen.
type showHomeMsg struct{}
type showChatMsg struct{}
type listeningMsg struct{ on bool }
type transcriptMsg struct{ ev pipeline.TranscriptEvent }
type replyMsg struct {
	text string
	done bool
}
type errorMsg struct{ err error }
type statusLineMsg struct{ text string }
type tickMsg time.Time

type tuiView int

const (
	tuiHome tuiView = iota
	tuiChat
)

const maxChatEntries = 50

type tuiModel struct {
	view      tuiView
	listening bool
	frame     int
	now       time.Time
	width     int
	height    int
	status    string
	help      string
	chat      *screen.Conversation
}

// Pre-computed pixel styles to avoid allocations in render loop
var (
	pixelColorsListen = [screen.EyePalette]string{"", "226", "220", "214", "208", "196", "160", "124", "88", "52", "236", "236", "236", "236", "255", "249"}
	pixelColorsIdle   = [screen.EyePalette]string{"", "231", "224", "217", "210", "160", "124", "88", "52", "236", "236", "236", "236", "236", "255", "249"}
	pixelStyles       [2][screen.EyePalette]lipgloss.Style
	pixelBg           [2][screen.EyePalette][screen.EyePalette]lipgloss.Style
)

func init() {
	for p, palette := range [2]*[screen.EyePalette]string{&pixelColorsIdle, &pixelColorsListen} {
		for i, fg := range palette {
			if fg == "" {
				continue
			}
			pixelStyles[p][i] = lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
			for j, bg := range palette {
				if bg != "" {
					pixelBg[p][i][j] = lipgloss.NewStyle().Foreground(lipgloss.Color(fg)).Background(lipgloss.Color(bg))
				}
			}
		}
	}
}

func newTUIModel(help string) tuiModel {
	return tuiModel{
		now:  time.Now(),
		help: help,
		chat: screen.NewConversation(maxChatEntries),
	}
}

func NewTUIProgram(help string) *tea.Program {
	return tea.NewProgram(newTUIModel(help), tea.WithAltScreen())
}

func tuiTick() tea.Cmd {
	return tea.Tick(60*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

	case tickMsg:
		m.frame++
		m.now = time.Time(msg)
		return m, tuiTick()

	case showHomeMsg:
		m.view = tuiHome

	case showChatMsg:
		m.view = tuiChat

	case listeningMsg:
		m.listening = msg.on

	case transcriptMsg:
		m.chat.Transcript(msg.ev)

	case replyMsg:
		m.chat.Reply(msg.text, msg.done)

	case errorMsg:
		m.chat.Error(msg.err)

	case statusLineMsg:
		m.status = msg.text
	}
	return m, nil
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	eye := renderEye(m.frame, m.listening)

	var info []string
	if m.listening {
		info = append(info, lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true).
			Render("● LISTENING"))
	} else {
		info = append(info, lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Render("○ STANDBY"))
	}
	if m.status != "" {
		info = append(info, lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render(m.status))
	}
	info = append(info, "")
	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	info = append(info, helpStyle.Render(m.help))
	info = append(info, helpStyle.Render("talkbox "+version))

	left := eye + strings.Join(info, "\n")

	var right string
	if m.view == tuiHome {
		right = m.homeView()
	} else {
		right = m.chatView(max(m.width-screen.EyeWidth-2, 20))
	}

	eyePanel := lipgloss.NewStyle().Width(screen.EyeWidth + 1).Height(m.height).Render(left)
	panel := lipgloss.NewStyle().
		Width(max(m.width-screen.EyeWidth-2, 20)).
		Height(m.height).
		PaddingLeft(1).
		Render(right)
	return lipgloss.JoinHorizontal(lipgloss.Top, eyePanel, panel)
}

func (m tuiModel) homeView() string {
	clock := lipgloss.NewStyle().
		Foreground(lipgloss.Color("255")).
		Bold(true).
		Render(screen.Clock(m.now))
	date := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		Render(m.now.Format("Monday, January 2"))
	return "\n" + clock + "\n" + date + "\n"
}

func (m tuiModel) chatView(width int) string {
	wrapWidth := max(width-2, 10)
	userStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	botStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	partialStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Italic(true)

	var lines []string
	for _, e := range m.chat.Entries() {
		style, prefix := userStyle, "you: "
		if e.Role == screen.Assistant {
			style, prefix = botStyle, "bot: "
		}
		for i, l := range screen.Wrap(e.Text, wrapWidth-len(prefix)) {
			if i == 0 {
				l = prefix + l
			} else {
				l = strings.Repeat(" ", len(prefix)) + l
			}
			lines = append(lines, style.Render(l))
		}
		lines = append(lines, "")
	}
	if p := m.chat.Partial(); p != "" {
		for _, l := range screen.Wrap(p, wrapWidth) {
			lines = append(lines, partialStyle.Render(l))
		}
	}
	if e := m.chat.Err(); e != "" {
		lines = append(lines, lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Render("⚠ "+e))
	}
	if len(lines) == 0 {
		lines = append(lines, lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Render("Hold the button and speak"))
	}
	// keep the newest lines on screen
	if m.height > 0 && len(lines) > m.height {
		lines = lines[len(lines)-m.height:]
	}
	return strings.Join(lines, "\n")
}

func renderEye(frame int, listening bool) string {
	pixels := screen.EyePixels(frame, listening)
	p := 0
	if listening {
		p = 1
	}
	styles := &pixelStyles[p]
	bgStyles := &pixelBg[p]

	var b strings.Builder
	for cy := 0; cy < screen.EyeHeight; cy++ {
		for cx := 0; cx < screen.EyeWidth; cx++ {
			top := pixels[cy*2][cx]
			bot := pixels[cy*2+1][cx]
			switch {
			case top == 0 && bot == 0:
				b.WriteString(" ")
			case top == bot:
				b.WriteString(styles[top].Render("█"))
			case bot == 0:
				b.WriteString(styles[top].Render("▀"))
			case top == 0:
				b.WriteString(styles[bot].Render("▄"))
			default:
				b.WriteString(bgStyles[top][bot].Render("▀"))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// tuiScreen forwards controller calls into the bubbletea program.
type tuiScreen struct {
	p *tea.Program
}

func (s *tuiScreen) send(msg tea.Msg) {
	s.p.Send(msg)
}

func (s *tuiScreen) ShowHome()                              { s.send(showHomeMsg{}) }
func (s *tuiScreen) ShowChat()                              { s.send(showChatMsg{}) }
func (s *tuiScreen) Listening(on bool)                      { s.send(listeningMsg{on: on}) }
func (s *tuiScreen) Transcript(ev pipeline.TranscriptEvent) { s.send(transcriptMsg{ev: ev}) }
func (s *tuiScreen) Reply(text string, done bool)           { s.send(replyMsg{text: text, done: done}) }
func (s *tuiScreen) Error(err error)                        { s.send(errorMsg{err: err}) }
func (s *tuiScreen) Status(format string, args ...any) {
	s.send(statusLineMsg{text: fmt.Sprintf(format, args...)})
}
