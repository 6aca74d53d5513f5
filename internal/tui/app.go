// Package tui provides the terminal views of netrecon: a progress spinner for
// running scans and a dashboard over the run history.
package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/user/netrecon/internal/storage"
)

// App is the history dashboard application.
type App struct {
	db *storage.DB
}

// NewApp creates a new dashboard over db.
func NewApp(db *storage.DB) *App {
	return &App{db: db}
}

// Run starts the dashboard and blocks until the user quits.
func (a *App) Run() error {
	p := tea.NewProgram(newModel(a.db), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// appModel is the dashboard bubbletea model.
type appModel struct {
	db        *storage.DB
	dashboard *Dashboard
	spinner   spinner.Model
	ready     bool
	width     int
	height    int
	err       error
}

func newModel(db *storage.DB) appModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return appModel{
		db:      db,
		spinner: s,
	}
}

// Init initializes the model.
func (m appModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		loadData(m.db),
	)
}

// Update handles messages.
func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			return m, loadData(m.db)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.dashboard != nil {
			m.dashboard.SetSize(msg.Width, msg.Height)
		}

	case dataMsg:
		m.ready = true
		m.err = nil
		m.dashboard = NewDashboard(msg.Data, m.width, m.height)

	case errMsg:
		m.err = msg.err

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the UI.
func (m appModel) View() string {
	if m.err != nil {
		return ErrorStyle.Render("Error: " + m.err.Error())
	}

	if !m.ready {
		return LoadingStyle.Render(m.spinner.View() + " Loading history...")
	}

	return m.dashboard.View()
}

type dataMsg struct {
	Data *DashboardData
}

type errMsg struct {
	err error
}

func loadData(db *storage.DB) tea.Cmd {
	return func() tea.Msg {
		data, err := FetchDashboardData(db)
		if err != nil {
			return errMsg{err}
		}
		return dataMsg{Data: data}
	}
}
