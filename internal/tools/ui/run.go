package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	detailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

type actionMsg struct {
	details []string
	err     error
}

type tickMsg time.Time

type model struct {
	title   string
	action  func(context.Context) ([]string, error)
	ctx     context.Context
	cancel  context.CancelFunc
	started time.Time
	elapsed time.Duration
	details []string
	err     error
	done    bool
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Init() tea.Cmd {
	run := func() tea.Msg {
		details, err := m.action(m.ctx)
		return actionMsg{details: details, err: err}
	}
	return tea.Batch(run, tick())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			// The action sees a cancelled context and returns on its own.
			m.cancel()
		}
	case tickMsg:
		if m.done {
			return m, nil
		}
		m.elapsed = time.Since(m.started)
		return m, tick()
	case actionMsg:
		m.details = msg.details
		m.err = msg.err
		m.done = true
		m.elapsed = time.Since(m.started)
		return m, tea.Quit
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")
	elapsed := m.elapsed.Round(100 * time.Millisecond)
	switch {
	case !m.done:
		fmt.Fprintf(&b, "\nRunning... %s\n", elapsed)
		return b.String()
	case m.err != nil:
		fmt.Fprintf(&b, "%s (%s): %v\n", failStyle.Render("FAILED"), elapsed, m.err)
	default:
		fmt.Fprintf(&b, "%s (%s)\n", okStyle.Render("OK"), elapsed)
	}
	for _, d := range m.details {
		b.WriteString(detailStyle.Render("- "+d) + "\n")
	}
	return b.String()
}

// Run executes action behind a progress view. The action's context ends after
// timeout or when the user presses ctrl+c.
func Run(title string, timeout time.Duration, action func(context.Context) ([]string, error)) ([]string, error) {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	m := model{title: title, action: action, ctx: ctx, cancel: cancel, started: time.Now()}
	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return nil, err
	}
	res := final.(model)
	return res.details, res.err
}
