package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jask/olympiadbot/internal/bot"
	"github.com/jask/olympiadbot/internal/config"
	"github.com/jask/olympiadbot/internal/navigation"
)

// Handler answers one caller message.
type Handler interface {
	Handle(ctx context.Context, c bot.Caller, text string) (navigation.Display, error)
}

// App is a terminal chat with the bot, acting as the configured local caller.
type App struct {
	ctx       context.Context
	handler   Handler
	caller    bot.Caller
	assetsDir string

	transcript []entry
	input      string
	actions    []string
	cursor     int
	status     string
	busy       bool
	height     int
}

type entry struct {
	fromBot bool
	text    string
}

const maxTranscript = 200

func New(ctx context.Context, cfg config.Config, handler Handler) *App {
	name := cfg.Local.Name
	if name == "" {
		name = "local"
	}
	return &App{
		ctx:       ctx,
		handler:   handler,
		caller:    bot.Caller{ID: cfg.Local.CallerID, DisplayName: name, Username: name},
		assetsDir: cfg.Assets.Dir,
		cursor:    -1,
		height:    24,
	}
}

func (a *App) Init() tea.Cmd {
	return a.sendCmd("/start")
}

// NoticeMsg puts an out-of-band line (e.g. an inbox ingestion result) into
// the transcript.
type NoticeMsg string

type replyMsg struct {
	display navigation.Display
}

type errMsg struct{ error }

func (a *App) sendCmd(text string) tea.Cmd {
	a.busy = true
	return func() tea.Msg {
		d, err := a.handler.Handle(a.ctx, a.caller, text)
		if err != nil {
			return errMsg{err}
		}
		return replyMsg{display: d}
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		a.height = m.Height
	case replyMsg:
		a.busy = false
		a.status = ""
		a.push(true, a.renderReply(m.display))
		a.actions = m.display.Actions
		a.cursor = -1
	case errMsg:
		a.busy = false
		a.status = "error: " + m.Error()
	case NoticeMsg:
		a.push(true, string(m))
	case tea.KeyMsg:
		return a.handleKey(m)
	}
	return a, nil
}

func (a *App) handleKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "ctrl+c", "esc":
		return a, tea.Quit
	case "tab":
		a.cycle(1)
		return a, nil
	case "shift+tab":
		a.cycle(-1)
		return a, nil
	}
	switch m.Type {
	case tea.KeyEnter:
		text := strings.TrimSpace(a.input)
		if text == "" || a.busy {
			return a, nil
		}
		a.push(false, text)
		a.input = ""
		a.cursor = -1
		return a, a.sendCmd(text)
	case tea.KeyBackspace, tea.KeyCtrlH, tea.KeyDelete:
		if r := []rune(a.input); len(r) > 0 {
			a.input = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		a.input += " "
	case tea.KeyRunes:
		a.input += string(m.Runes)
	}
	return a, nil
}

// cycle moves through the offered actions and copies the selection into
// the input line.
func (a *App) cycle(step int) {
	if len(a.actions) == 0 {
		return
	}
	if a.cursor < 0 && step < 0 {
		a.cursor = 0
	}
	a.cursor = (a.cursor + step + len(a.actions)) % len(a.actions)
	a.input = a.actions[a.cursor]
}

func (a *App) push(fromBot bool, text string) {
	a.transcript = append(a.transcript, entry{fromBot: fromBot, text: text})
	if len(a.transcript) > maxTranscript {
		a.transcript = a.transcript[len(a.transcript)-maxTranscript:]
	}
}

func (a *App) renderReply(d navigation.Display) string {
	if d.ImageRef == "" {
		return d.Text
	}
	return d.Text + "\n" + a.pictureLine(d.ImageRef)
}

func (a *App) pictureLine(ref string) string {
	path := filepath.Join(a.assetsDir, filepath.Base(ref))
	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
		return pictureStyle.Render("[picture: " + path + "]")
	}
	return missingStyle.Render("[picture " + ref + " is not available]")
}

// styles
var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Underline(true)
	botStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	userStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	pictureStyle  = lipgloss.NewStyle().Italic(true)
	missingStyle  = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("9"))
	actionStyle   = lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.NormalBorder(), false, true, false, false)
	selectedStyle = actionStyle.Reverse(true)
	statusStyle   = lipgloss.NewStyle().Faint(true)
)

func (a *App) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Olympiad practice"))
	b.WriteString("\n\n")

	lines := a.transcriptLines()
	if limit := a.height - 8; limit > 0 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\n")

	if len(a.actions) > 0 {
		buttons := make([]string, len(a.actions))
		for i, label := range a.actions {
			if i == a.cursor {
				buttons[i] = selectedStyle.Render(label)
			} else {
				buttons[i] = actionStyle.Render(label)
			}
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, buttons...))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "> %s", a.input)
	if a.busy {
		b.WriteString(statusStyle.Render("  ..."))
	}
	b.WriteString("\n")
	if a.status != "" {
		b.WriteString(missingStyle.Render(a.status))
		b.WriteString("\n")
	}
	b.WriteString(statusStyle.Render("[tab] next action  [enter] send  [esc] quit"))
	return b.String()
}

func (a *App) transcriptLines() []string {
	var lines []string
	for _, e := range a.transcript {
		style, who := userStyle, "you"
		if e.fromBot {
			style, who = botStyle, "bot"
		}
		for i, line := range strings.Split(e.text, "\n") {
			prefix := "    "
			if i == 0 {
				prefix = style.Render(who+":") + " "
			}
			lines = append(lines, prefix+line)
		}
	}
	return lines
}
