package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	salmonPink = lipgloss.Color("#FFB3BA")
	mutedGray  = lipgloss.Color("#6B7280")
)

// playbackModel shows a spinner while media plays and quits on any of the
// stop keys.
type playbackModel struct {
	spinner spinner.Model
	url     string
	title   lipgloss.Style
	hint    lipgloss.Style
	stopped bool
}

func newPlaybackModel(url string) playbackModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(salmonPink)
	return playbackModel{
		spinner: s,
		url:     url,
		title:   lipgloss.NewStyle().Bold(true).Foreground(salmonPink),
		hint:    lipgloss.NewStyle().Foreground(mutedGray),
	}
}

func (m playbackModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m playbackModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter", "q", "esc", "ctrl+c":
			m.stopped = true
			return m, tea.Quit
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m playbackModel) View() string {
	if m.stopped {
		return ""
	}
	return fmt.Sprintf("%s %s %s\n%s\n",
		m.spinner.View(),
		m.title.Render("Playing"),
		m.url,
		m.hint.Render("  press enter to stop and exit"))
}

// terminalWaiter blocks on a small bubbletea program until the user presses a
// stop key or ctx is done.
type terminalWaiter struct {
	in  io.Reader
	out io.Writer
}

func (w terminalWaiter) Wait(ctx context.Context, pageURL string) error {
	p := tea.NewProgram(newPlaybackModel(pageURL),
		tea.WithContext(ctx),
		tea.WithInput(w.in),
		tea.WithOutput(w.out),
	)
	if _, err := p.Run(); err != nil {
		if ctx.Err() != nil && errors.Is(err, tea.ErrProgramKilled) {
			return ctx.Err()
		}
		return fmt.Errorf("playback prompt failed: %w", err)
	}
	return nil
}
