package ui

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tavs/internal/engine"
	"github.com/desertthunder/tavs/internal/registry"
	"github.com/desertthunder/tavs/internal/shared"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	StatusView ViewState = iota
	ConfirmView
	RunView
	ResultView
)

// maxRejectedShown caps the rejected rows listed on the result screen; the
// full listing lives in the report file.
const maxRejectedShown = 10

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	db           *sql.DB
	config       *shared.Config
	opts         engine.EngineOpts
	engine       *engine.Engine
	width        int
	height       int
	status       *engine.Status
	pending      []registry.MigrationStep
	stepList     list.Model
	spin         spinner.Model
	bar          progress.Model
	progressChan chan engine.ProgressUpdate
	done         chan runCompleteMsg
	progress     engine.ProgressUpdate
	result       *engine.RunResult
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model over the given store. Each run gets a
// fresh engine because a run consumes its engine.
func NewModel(ctx context.Context, db *sql.DB, config *shared.Config, opts engine.EngineOpts) (*Model, error) {
	eng, err := engine.NewEngine(db, config, &opts)
	if err != nil {
		return nil, err
	}

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	return &Model{
		ctx:    ctx,
		view:   StatusView,
		db:     db,
		config: config,
		opts:   opts,
		engine: eng,
		spin:   spin,
		bar:    progress.New(progress.WithDefaultGradient()),
		help:   help.New(),
		keys:   newKeyMap(),
	}, nil
}

// Init initializes the TUI by reading the store position.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetchStatus(), m.spin.Tick)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.stepList.Width() == 0 {
			m.stepList.SetSize(msg.Width-4, msg.Height-12)
		}
		m.bar.Width = msg.Width - 8
		if m.bar.Width > 60 {
			m.bar.Width = 60
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch m.view {
		case StatusView:
			return m.handleStatusKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case statusFetchedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.status = msg.status
		m.pending = msg.pending

		items := stepItems(msg.pending)
		title := "Outstanding Steps"
		if len(msg.pending) == 0 {
			items = historyItems(msg.status.History)
			title = "Applied Steps"
		}
		m.stepList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.stepList.Title = title
		m.stepList.SetSize(m.width-4, m.height-12)
		return m, nil

	case progressUpdateMsg:
		m.progress = engine.ProgressUpdate(msg)
		return m, m.waitForProgress()

	case runCompleteMsg:
		m.result = msg.result
		m.err = msg.err
		m.view = ResultView
		m.progressChan = nil
		return m, nil
	}

	return m.updateLists(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case StatusView:
		return m.renderStatus()
	case ConfirmView:
		return m.renderConfirm()
	case RunView:
		return m.renderRun()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleStatusKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		return m, m.fetchStatus()
	case "enter":
		if m.workOutstanding() {
			m.view = ConfirmView
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.stepList, cmd = m.stepList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "n", "esc":
		m.view = StatusView
		return m, nil
	case "y":
		m.view = RunView
		return m, m.startRun()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		eng, err := engine.NewEngine(m.db, m.config, &m.opts)
		if err != nil {
			m.err = err
			return m, nil
		}
		m.engine = eng
		m.view = StatusView
		m.status = nil
		m.result = nil
		m.err = nil
		return m, m.fetchStatus()
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.view == StatusView && m.status != nil {
		m.stepList, cmd = m.stepList.Update(msg)
	}
	return m, cmd
}

// workOutstanding reports whether a run would do anything: steps to apply or
// the one-time import still pending.
func (m *Model) workOutstanding() bool {
	return m.status != nil && (len(m.pending) > 0 || !m.status.Imported)
}

func (m *Model) fetchStatus() tea.Cmd {
	return func() tea.Msg {
		status, err := m.engine.Status()
		if err != nil {
			return statusFetchedMsg{err: err}
		}
		return statusFetchedMsg{
			status:  status,
			pending: m.engine.Catalog().Outstanding(status.Version),
		}
	}
}

func (m *Model) startRun() tea.Cmd {
	m.progressChan = make(chan engine.ProgressUpdate, 50)
	m.done = make(chan runCompleteMsg, 1)
	m.progress = engine.ProgressUpdate{}

	updates, outcome := m.progressChan, m.done
	go func() {
		result, err := m.engine.Run(m.ctx, updates)
		outcome <- runCompleteMsg{result: result, err: err}
		close(updates)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	return func() tea.Msg {
		if m.progressChan == nil {
			return runCompleteMsg{result: m.result, err: m.err}
		}

		update, ok := <-m.progressChan
		if !ok {
			return <-m.done
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderStatus() string {
	if m.status == nil {
		return fmt.Sprintf("%s Reading store state...", m.spin.View())
	}

	title := styles.title.Render("Task Aversion Store")

	importLine := "pending"
	if m.status.Imported {
		importLine = "completed"
		if m.status.ImportedAt != nil {
			importLine = fmt.Sprintf("completed %s", m.status.ImportedAt.Format(time.RFC3339))
		}
	}

	info := fmt.Sprintf(
		"Schema version: %d of %d (%d outstanding)\nBootstrap import: %s",
		m.status.Version, m.status.Latest, m.status.Outstanding, importLine,
	)

	if m.status.Lease != nil {
		held := fmt.Sprintf("Lease held by %s until %s",
			m.status.Lease.Owner, m.status.Lease.ExpiresAt.Format(time.RFC3339))
		info = fmt.Sprintf("%s\n%s", info, styles.warn.Render(held))
	}

	helpKeys := []key.Binding{m.keys.refresh, m.keys.quit}
	if m.workOutstanding() {
		helpKeys = []key.Binding{m.keys.start, m.keys.refresh, m.keys.quit}
	}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n\n%s\n\n%s", title, info, m.stepList.View(), helpView)
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Run %s?", m.runSummary()))

	var lines string
	for _, step := range m.pending {
		lines += fmt.Sprintf("  %04d %s\n", step.Version, step.Description)
	}
	if m.status != nil && !m.status.Imported {
		lines += "  flat-file import (users, tasks, log entries)\n"
	}

	helpKeys := []key.Binding{m.keys.yes, m.keys.no, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n%s", title, lines, helpView)
}

func (m *Model) runSummary() string {
	importPending := m.status != nil && !m.status.Imported
	switch {
	case len(m.pending) > 0 && importPending:
		return fmt.Sprintf("%d migration steps and the flat-file import", len(m.pending))
	case len(m.pending) > 0:
		return fmt.Sprintf("%d migration steps", len(m.pending))
	case importPending:
		return "the flat-file import"
	default:
		return "nothing"
	}
}

func (m *Model) renderRun() string {
	title := styles.title.Render("Migrating Store")

	var phase string
	switch m.progress.Phase {
	case engine.CheckState:
		phase = "Checking store state..."
	case engine.ApplySteps:
		phase = fmt.Sprintf("Applying steps (%d/%d)", m.progress.Step, m.progress.Total)
	case engine.DecodeRows:
		phase = "Decoding export rows..."
	case engine.ImportUsers:
		phase = fmt.Sprintf("Importing users (%d/%d)", m.progress.Step, m.progress.Total)
	case engine.ImportTasks:
		phase = fmt.Sprintf("Importing tasks (%d/%d)", m.progress.Step, m.progress.Total)
	case engine.ImportLogs:
		phase = fmt.Sprintf("Importing log entries (%d/%d)", m.progress.Step, m.progress.Total)
	case engine.WriteReport:
		phase = "Writing import report..."
	default:
		phase = "Working..."
	}

	bar := ""
	if m.progress.Total > 0 {
		bar = fmt.Sprintf("\n%s", m.bar.ViewAs(float64(m.progress.Step)/float64(m.progress.Total)))
	}

	return fmt.Sprintf("%s\n\n%s %s%s\n%s", title, m.spin.View(), phase, bar, styles.help.Render(m.progress.Message))
}

func (m *Model) renderResult() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Run failed: %v\n\nPress r to retry, q to quit", m.err))
	}

	if m.result == nil {
		return styles.err.Render("No result available\n\nPress r to retry, q to quit")
	}

	title := styles.ok.Render("✓ Migration Complete")
	info := fmt.Sprintf(
		"\nSchema version: %d → %d (%d steps applied)\nDuration: %s",
		m.result.StartVersion, m.result.EndVersion, len(m.result.Applied),
		m.result.Duration.Round(time.Millisecond),
	)

	var imported string
	if m.result.ImportRan && m.result.Report != nil {
		report := m.result.Report
		imported = fmt.Sprintf(
			"\nImported: %d users, %d tasks, %d log entries",
			report.Users.Admitted, report.Tasks.Admitted, report.Logs.Admitted,
		)
		if report.TotalRejected() > 0 {
			header := styles.warn.Render(fmt.Sprintf("Rejected %d rows:", report.TotalRejected()))
			imported += fmt.Sprintf("\n\n%s", header)
			for i, row := range report.Rejected {
				if i == maxRejectedShown {
					imported += fmt.Sprintf("\n  … and %d more", len(report.Rejected)-maxRejectedShown)
					break
				}
				imported += fmt.Sprintf("\n  • %s line %d: %s", row.Kind, row.Line, row.Reason)
			}
		}
		if m.result.ReportPath != "" {
			imported += fmt.Sprintf("\nReport: %s", m.result.ReportPath)
		}
	} else {
		imported = "\nImport: previously completed, skipped"
	}

	helpKeys := []key.Binding{m.keys.restart, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s%s%s\n\n%s", title, info, imported, helpView)
}
