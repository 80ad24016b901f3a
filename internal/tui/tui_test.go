package tui

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spookd/sling/internal/downloader"
)

func testModel(jobs ...Job) Model {
	return NewModel(downloader.New(downloader.Options{}), jobs)
}

func step(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model, cmd
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestModelQuitsWhenAllJobsTerminal(t *testing.T) {
	m := testModel(
		Job{URL: "http://x/a", Dest: "/tmp/a"},
		Job{URL: "http://x/b", Dest: "/tmp/b"},
	)

	m, cmd := step(t, m, StartedMsg{URL: "http://x/a"})
	assert.False(t, isQuit(cmd))

	m, cmd = step(t, m, FinishedMsg{URL: "http://x/a"})
	assert.False(t, isQuit(cmd), "one job still running")

	_, cmd = step(t, m, FailedMsg{URL: "http://x/b", Err: errors.New("boom")})
	assert.True(t, isQuit(cmd), "all jobs terminal")
}

func TestModelIgnoresDuplicateTerminalMessages(t *testing.T) {
	m := testModel(
		Job{URL: "http://x/a", Dest: "/tmp/a"},
		Job{URL: "http://x/b", Dest: "/tmp/b"},
	)

	m, _ = step(t, m, FinishedMsg{URL: "http://x/a"})
	_, cmd := step(t, m, FinishedMsg{URL: "http://x/a"})
	assert.False(t, isQuit(cmd), "double finish must not count twice")
}

func TestModelIgnoresUnknownURL(t *testing.T) {
	m := testModel(Job{URL: "http://x/a", Dest: "/tmp/a"})
	_, cmd := step(t, m, FinishedMsg{URL: "http://x/other"})
	assert.False(t, isQuit(cmd))
}

func TestModelQuitKey(t *testing.T) {
	m := testModel(Job{URL: "http://x/a", Dest: "/tmp/a"})
	_, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	assert.True(t, isQuit(cmd))
}

func TestViewShowsJobState(t *testing.T) {
	m := testModel(Job{URL: "http://x/a", Dest: "/tmp/archive.tar.gz"})
	assert.Contains(t, m.View(), "archive.tar.gz")
	assert.Contains(t, m.View(), "waiting")

	m, _ = step(t, m, StartedMsg{URL: "http://x/a", Resumed: true})
	m, _ = step(t, m, ProgressMsg{
		URL:            "http://x/a",
		TotalSize:      100,
		DownloadedSize: 50,
		Percentage:     50,
		AverageSpeed:   downloader.SpeedUnknown,
	})
	view := m.View()
	assert.Contains(t, view, "resumed")
	assert.Contains(t, view, "ETA")

	m, _ = step(t, m, FailedMsg{URL: "http://x/a", Err: errors.New("boom")})
	assert.Contains(t, m.View(), "boom")
}
