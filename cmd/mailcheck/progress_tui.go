package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
	"os"

	"github.com/lenlo/mailcheck/internal/progress"
)

// progressTickMsg drives the model's redraw on a fixed cadence, the same
// pattern as the teacher's tick() in cmd/gomap/tui.go.
type progressTickMsg time.Time

func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg { return progressTickMsg(t) })
}

// progressModel renders a spinner plus a done/total counter for a single
// progress.Reporter phase, adapted from the teacher's mboxModel/countModel.
type progressModel struct {
	spinner spinner.Model
	events  <-chan progress.Event
	phase   string
	done    int
	total   int
	err     error
	finished bool
}

func newProgressModel(phase string, events <-chan progress.Event) *progressModel {
	s := spinner.New()
	s.Spinner = spinner.Line
	return &progressModel{spinner: s, events: events, phase: phase}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, progressTick())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case progressTickMsg:
		m.drain()
		if m.finished {
			return m, tea.Quit
		}
		return m, progressTick()
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *progressModel) drain() {
	for {
		select {
		case ev, ok := <-m.events:
			if !ok {
				m.finished = true
				return
			}
			switch ev.Type {
			case progress.EventStart:
				m.total = ev.Total
			case progress.EventProgress:
				m.done, m.total = ev.Done, ev.Total
			case progress.EventDone:
				m.err = ev.Err
				m.finished = true
			}
		default:
			return
		}
	}
}

func (m *progressModel) View() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	if m.finished {
		if m.err != nil {
			return fmt.Sprintf("%s failed: %v\n", m.phase, m.err)
		}
		return fmt.Sprintf("%s done (%d/%d)\n", m.phase, m.done, m.total)
	}
	return fmt.Sprintf("%s %s %d/%d\n", style.Render(m.spinner.View()), m.phase, m.done, m.total)
}

// runProgressTUI drives a progressModel to completion, or, when stdout
// isn't a terminal, just drains the reporter's channel silently (a
// piped/scripted run has nowhere to draw a spinner).
func runProgressTUI(phase string, events <-chan progress.Event) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		for range events {
		}
		return nil
	}
	m := newProgressModel(phase, events)
	_, err := tea.NewProgram(m).Run()
	return err
}
