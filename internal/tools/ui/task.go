package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

var spinnerFrames = []string{"|", "/", "-", "\\"}

type tickMsg struct{}

type taskDoneMsg struct {
	details []string
	err     error
}

type taskModel struct {
	title   string
	frame   int
	done    bool
	details []string
	err     error
	fn      func(context.Context) ([]string, error)
	ctx     context.Context
}

func (m taskModel) Init() tea.Cmd {
	ctx, fn := m.ctx, m.fn
	return tea.Batch(tick(), func() tea.Msg {
		details, err := fn(ctx)
		return taskDoneMsg{details: details, err: err}
	})
}

func tick() tea.Cmd {
	return tea.Tick(120*time.Millisecond, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m taskModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if m.done {
			return m, nil
		}
		m.frame = (m.frame + 1) % len(spinnerFrames)
		return m, tick()
	case taskDoneMsg:
		m.done, m.details, m.err = true, msg.details, msg.err
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.done, m.err = true, context.Canceled
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m taskModel) View() string {
	var b strings.Builder
	if !m.done {
		fmt.Fprintf(&b, "%s %s\n", busyStyle.Render(spinnerFrames[m.frame]), titleStyle.Render(m.title))
		return b.String()
	}
	if m.err != nil {
		fmt.Fprintf(&b, "%s %s\n", errorStyle.Render("FAIL"), titleStyle.Render(m.title))
	} else {
		fmt.Fprintf(&b, "%s %s\n", successStyle.Render("OK"), titleStyle.Render(m.title))
	}
	for _, d := range m.details {
		fmt.Fprintf(&b, "  %s\n", d)
	}
	if m.err != nil {
		fmt.Fprintf(&b, "  %s\n", errorStyle.Render(m.err.Error()))
	}
	return b.String()
}

// Run executes fn behind a spinner and prints its details when it returns.
func Run(ctx context.Context, title string, fn func(context.Context) ([]string, error)) ([]string, error) {
	final, err := tea.NewProgram(taskModel{title: title, fn: fn, ctx: ctx}, tea.WithContext(ctx)).Run()
	if err != nil {
		return nil, err
	}
	m, ok := final.(taskModel)
	if !ok {
		return nil, fmt.Errorf("unexpected model %T", final)
	}
	return m.details, m.err
}
