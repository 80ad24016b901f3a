// Package tui renders download progress with bubbletea. Events from
// the download manager arrive as messages pumped in via Program.Send.
package tui

import (
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/spookd/sling/internal/downloader"
)

// Messages bridged from manager observer callbacks.
type (
	// StartedMsg signals that the server responded and transfer began.
	StartedMsg struct {
		URL     string
		Resumed bool
	}

	// ProgressMsg carries a progress snapshot.
	ProgressMsg downloader.Progress

	// FinishedMsg signals successful completion.
	FinishedMsg struct{ URL string }

	// FailedMsg signals a terminal error.
	FailedMsg struct {
		URL string
		Err error
	}
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	nameStyle   = lipgloss.NewStyle().Bold(true)
	statStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	resumeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// Job is one download to display.
type Job struct {
	URL  string
	Dest string
}

type rowStatus int

const (
	rowWaiting rowStatus = iota
	rowActive
	rowFinished
	rowFailed
)

type row struct {
	job     Job
	bar     progress.Model
	last    downloader.Progress
	status  rowStatus
	resumed bool
	err     error
}

// Model drives the progress display for a fixed set of jobs and quits
// once every job reaches a terminal state.
type Model struct {
	mgr      *downloader.Manager
	rows     []*row
	index    map[string]*row
	width    int
	finished int
	quitting bool
}

// NewModel builds a Model for jobs; mgr is shut down when the user
// quits early.
func NewModel(mgr *downloader.Manager, jobs []Job) Model {
	m := Model{
		mgr:   mgr,
		index: make(map[string]*row, len(jobs)),
	}
	for _, job := range jobs {
		r := &row{
			job: job,
			bar: progress.New(progress.WithDefaultGradient()),
		}
		m.rows = append(m.rows, r)
		m.index[job.URL] = r
	}
	return m
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.mgr.Shutdown()
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		for _, r := range m.rows {
			r.bar.Width = min(msg.Width-8, 60)
		}

	case StartedMsg:
		if r, ok := m.index[msg.URL]; ok {
			r.status = rowActive
			r.resumed = msg.Resumed
		}

	case ProgressMsg:
		if r, ok := m.index[msg.URL]; ok {
			r.last = downloader.Progress(msg)
		}

	case FinishedMsg:
		if r, ok := m.index[msg.URL]; ok && r.status != rowFinished && r.status != rowFailed {
			r.status = rowFinished
			m.finished++
		}

	case FailedMsg:
		if r, ok := m.index[msg.URL]; ok && r.status != rowFinished && r.status != rowFailed {
			r.status = rowFailed
			r.err = msg.Err
			m.finished++
		}
	}

	if m.finished == len(m.rows) && !m.quitting {
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) View() string {
	s := titleStyle.Render("sling") + "\n\n"

	for _, r := range m.rows {
		name := filepath.Base(r.job.Dest)
		header := nameStyle.Render(name)
		if r.resumed {
			header += " " + resumeStyle.Render("(resumed)")
		}
		s += header + "\n"

		switch r.status {
		case rowWaiting:
			s += statStyle.Render("waiting...") + "\n"
		case rowFailed:
			s += errorStyle.Render(fmt.Sprintf("failed: %v", r.err)) + "\n"
		case rowFinished:
			s += okStyle.Render("done") + statStyle.Render(
				fmt.Sprintf("  %s", FormatBytes(r.last.DownloadedSize))) + "\n"
		case rowActive:
			s += r.bar.ViewAs(r.last.Percentage/100) + "\n"
			s += statStyle.Render(fmt.Sprintf("%s / %s  %s  ETA %s",
				FormatBytes(r.last.DownloadedSize),
				FormatBytes(r.last.TotalSize),
				FormatSpeed(r.last.AverageSpeed),
				FormatETA(r.last.TimeRemaining),
			)) + "\n"
		}
		s += "\n"
	}

	if !m.quitting {
		s += statStyle.Render("press q to cancel and quit") + "\n"
	}
	return s
}

// Bridge returns an observer that forwards manager callbacks to p as
// tea messages.
func Bridge(p *tea.Program) downloader.Observer {
	return &downloader.ObserverFuncs{
		OnStart: func(url string, resumed bool) {
			p.Send(StartedMsg{URL: url, Resumed: resumed})
		},
		OnProgress: func(pr downloader.Progress) {
			p.Send(ProgressMsg(pr))
		},
		OnFinish: func(url string) {
			p.Send(FinishedMsg{URL: url})
		},
		OnFail: func(url string, err error) {
			p.Send(FailedMsg{URL: url, Err: err})
		},
	}
}
