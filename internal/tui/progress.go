package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/user/netrecon/internal/probes"
)

// recentLines is how many progress lines stay visible under the spinner.
const recentLines = 5

// Progress shows a spinner labelled with the active scan phase until the
// event stream closes.
type Progress struct {
	events <-chan probes.Event
	title  string
	output io.Writer
}

// NewProgress creates a spinner over events. title labels the spinner until
// the first phase starts.
func NewProgress(events <-chan probes.Event, title string) *Progress {
	return &Progress{events: events, title: title}
}

// WithOutput renders to w instead of the terminal.
func (p *Progress) WithOutput(w io.Writer) *Progress {
	p.output = w
	return p
}

// Run blocks until the stream closes or the user interrupts. It reports
// whether the user interrupted.
func (p *Progress) Run() (bool, error) {
	opts := []tea.ProgramOption{}
	if p.output != nil {
		opts = append(opts, tea.WithOutput(p.output), tea.WithInput(nil))
	}
	final, err := tea.NewProgram(newProgressModel(p.events, p.title), opts...).Run()
	if err != nil {
		return false, err
	}
	return final.(progressModel).interrupted, nil
}

type eventMsg probes.Event

type streamClosedMsg struct{}

func waitForEvent(events <-chan probes.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(e)
	}
}

type progressModel struct {
	events      <-chan probes.Event
	spinner     spinner.Model
	title       string
	phases      []probes.Phase
	lines       []string
	done        bool
	interrupted bool
}

func newProgressModel(events <-chan probes.Event, title string) progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return progressModel{
		events:  events,
		spinner: s,
		title:   title,
	}
}

func (m progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.interrupted = true
			return m, tea.Quit
		}

	case eventMsg:
		m.apply(probes.Event(msg))
		return m, waitForEvent(m.events)

	case streamClosedMsg:
		m.done = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *progressModel) apply(e probes.Event) {
	switch e.Kind {
	case probes.EventStart:
		m.phases = append(m.phases, e.Phase)
	case probes.EventEnd:
		for i := len(m.phases) - 1; i >= 0; i-- {
			if m.phases[i] == e.Phase {
				m.phases = append(m.phases[:i], m.phases[i+1:]...)
				break
			}
		}
	case probes.EventLine:
		m.lines = append(m.lines, e.Line)
		if len(m.lines) > recentLines {
			m.lines = m.lines[len(m.lines)-recentLines:]
		}
	}
}

// label is the title of the innermost active phase.
func (m progressModel) label() string {
	if len(m.phases) == 0 {
		return m.title
	}
	return m.phases[len(m.phases)-1].Title()
}

func (m progressModel) View() string {
	if m.done || m.interrupted {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s...\n", m.spinner.View(), m.label())
	for _, l := range m.lines {
		sb.WriteString(DimStyle.Render("  " + l))
		sb.WriteString("\n")
	}
	return sb.String()
}
