package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/jask/olympiadbot/internal/bot"
	"github.com/jask/olympiadbot/internal/config"
	"github.com/jask/olympiadbot/internal/navigation"
)

type scripted struct {
	got     []string
	replies map[string]navigation.Display
	err     error
}

func (s *scripted) Handle(_ context.Context, c bot.Caller, text string) (navigation.Display, error) {
	s.got = append(s.got, text)
	if s.err != nil {
		return navigation.Display{}, s.err
	}
	return s.replies[text], nil
}

func newApp(t *testing.T, h Handler) *App {
	t.Helper()
	var cfg config.Config
	cfg.Local.CallerID = 1
	cfg.Local.Name = "tester"
	cfg.Assets.Dir = t.TempDir()
	return New(context.Background(), cfg, h)
}

func run(t *testing.T, a *App, cmd tea.Cmd) {
	t.Helper()
	require.NotNil(t, cmd)
	a.Update(cmd())
}

func typeText(a *App, s string) {
	a.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func TestStartAndSend(t *testing.T) {
	t.Parallel()
	h := &scripted{replies: map[string]navigation.Display{
		"/start": {Text: "Hello\n\nChoose a year:", Actions: []string{"2021", "Cancel"}},
		"2021":   {Text: "Year 2021. Choose an exercise:", Actions: []string{"1", "Back"}},
	}}
	a := newApp(t, h)

	run(t, a, a.Init())
	require.Equal(t, []string{"/start"}, h.got)
	require.Equal(t, []string{"2021", "Cancel"}, a.actions)
	require.Contains(t, a.View(), "Choose a year:")

	typeText(a, "2021")
	_, cmd := a.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.Empty(t, a.input)
	run(t, a, cmd)
	require.Equal(t, []string{"/start", "2021"}, h.got)
	require.Contains(t, a.View(), "Year 2021")
}

func TestTabCyclesActions(t *testing.T) {
	t.Parallel()
	a := newApp(t, &scripted{})
	a.actions = []string{"Hint", "Answer", "Back"}

	a.Update(tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, "Hint", a.input)
	a.Update(tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, "Answer", a.input)
	a.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	a.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	require.Equal(t, "Back", a.input)
}

func TestEditingAndEmptyEnter(t *testing.T) {
	t.Parallel()
	a := newApp(t, &scripted{})

	typeText(a, "héllo")
	a.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	a.Update(tea.KeyMsg{Type: tea.KeySpace})
	require.Equal(t, "héll ", a.input)

	a.input = "   "
	_, cmd := a.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.Nil(t, cmd)
}

func TestPictureLines(t *testing.T) {
	t.Parallel()
	a := newApp(t, &scripted{})
	require.NoError(t, os.WriteFile(filepath.Join(a.assetsDir, "sq.png"), []byte("png"), 0o600))

	a.Update(replyMsg{display: navigation.Display{Text: "Answer", ImageRef: "sq.png"}})
	a.Update(replyMsg{display: navigation.Display{Text: "Task", ImageRef: "gone.png"}})
	view := a.View()
	require.Contains(t, view, filepath.Join(a.assetsDir, "sq.png"))
	require.Contains(t, view, "gone.png is not available")
}

func TestErrorsAndNotices(t *testing.T) {
	t.Parallel()
	a := newApp(t, &scripted{err: errors.New("db locked")})

	run(t, a, a.Init())
	require.False(t, a.busy)
	require.Contains(t, a.View(), "error: db locked")

	a.Update(NoticeMsg("inbox: 3 inserted"))
	require.True(t, strings.Contains(a.View(), "inbox: 3 inserted"))

	_, cmd := a.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
}
