package viz

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/stepdag/internal/interp"
	"github.com/san-kum/stepdag/internal/store"
)

const (
	liveWidth   = 70
	liveHeight  = 8
	liveHistory = 400
	tickRate    = 25 * time.Millisecond
)

type TickMsg time.Time

// Model is the bubbletea model of the live view. Each tick pulls events from
// the running interpreter until one step completes, then redraws.
type Model struct {
	title string
	ip    *interp.Interpreter
	trace *store.Trace

	next func() (interp.Event, error, bool)
	stop func()

	running bool
	done    bool
	err     error
	steps   int
	failed  int
}

// NewModel starts a run toward tEnd and wraps it for live viewing.
func NewModel(title string, ip *interp.Interpreter, component string, tEnd float64) Model {
	next, stop := iter.Pull2(ip.Run(context.Background(), tEnd))
	return Model{
		title:   title,
		ip:      ip,
		trace:   store.NewTrace(component),
		next:    next,
		stop:    stop,
		running: true,
	}
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(tickRate, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.stop()
			return m, tea.Quit
		case " ":
			m.running = !m.running
			if m.running && !m.done {
				return m, tick()
			}
			return m, nil
		}
	case TickMsg:
		if !m.running || m.done {
			return m, nil
		}
		m.advance()
		if m.done {
			return m, nil
		}
		return m, tick()
	}
	return m, nil
}

// advance pulls events until a step boundary or the end of the run.
func (m *Model) advance() {
	for {
		ev, err, ok := m.next()
		if !ok {
			m.done = true
			return
		}
		if err != nil {
			m.err = err
			m.done = true
			return
		}
		m.trace.Record(ev)
		switch ev.(type) {
		case interp.StepCompleted:
			m.steps++
			return
		case interp.StepFailed:
			m.failed++
			return
		}
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(m.title))
	b.WriteString("\n")

	for i := 0; i < m.trace.Dim(); i++ {
		series := m.trace.Series(i)
		if len(series) > liveHistory {
			series = series[len(series)-liveHistory:]
		}
		if len(series) < 2 {
			continue
		}
		graph := asciigraph.Plot(series,
			asciigraph.Height(liveHeight),
			asciigraph.Width(liveWidth),
			asciigraph.Caption(fmt.Sprintf("%s[%d]", m.trace.Component, i)),
		)
		b.WriteString(graphStyle.Render(graph))
		b.WriteString("\n")
	}

	b.WriteString(labelStyle.Render("t"))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%.6f", m.ip.T())))
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("dt"))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%.3g", m.ip.Dt())))
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("steps"))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d", m.steps)))
	b.WriteString("\n")
	if m.failed > 0 {
		b.WriteString(labelStyle.Render("retries"))
		b.WriteString(failStyle.Render(fmt.Sprintf("%d", m.failed)))
		b.WriteString("\n")
	}
	switch {
	case m.err != nil:
		b.WriteString(failStyle.Render("error: " + m.err.Error()))
		b.WriteString("\n")
	case m.done:
		b.WriteString(valueStyle.Render("run complete"))
		b.WriteString("\n")
	case !m.running:
		b.WriteString(valueStyle.Render("paused"))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("space pause/resume  q quit"))
	return b.String()
}

// Trace returns the events recorded so far.
func (m Model) Trace() *store.Trace { return m.trace }
