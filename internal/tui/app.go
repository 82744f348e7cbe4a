package tui

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/sprintboard/internal/board"
	"github.com/sadopc/sprintboard/internal/export"
	"github.com/sadopc/sprintboard/internal/filter"
	"github.com/sadopc/sprintboard/internal/metrics"
	"github.com/sadopc/sprintboard/internal/store"
)

const defaultCommitTimeout = 5 * time.Second

// Options configures an App. Zero values select defaults.
type Options struct {
	CommitTimeout time.Duration
	// ExportDir receives export files; defaults to the home directory.
	ExportDir string
	Now       func() time.Time
	Logger    *slog.Logger
}

// App is the root Bubble Tea model.
type App struct {
	store  *store.Store
	board  *board.Board
	engine *metrics.Engine
	logger *slog.Logger
	now    func() time.Time

	exportDir string
	width     int
	height    int

	activeView    viewState
	showHelp      bool
	exportPicking bool
	exportCursor  int

	dashboard dashboardModel
	tasks     boardModel
	tracks    tracksModel
	journal   journalModel
	settings  settingsModel

	help        help.Model
	status      string
	statusError bool
}

// NewApp wires the views to a loaded board. s backs both the gateway and the settings.
func NewApp(s *store.Store, b *board.Board, opts Options) App {
	if opts.CommitTimeout <= 0 {
		opts.CommitTimeout = defaultCommitTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	engine := metrics.NewEngine(b.Store())
	engine.SetHeatmapDays(s.IntSetting(store.SettingHeatmapDays, metrics.DefaultHeatmapDays))
	b.SetSprintLength(s.IntSetting(store.SettingSprintLength, b.SprintLength()))

	h := help.New()
	h.ShowAll = false

	a := App{
		store:      s,
		board:      b,
		engine:     engine,
		logger:     opts.Logger,
		now:        opts.Now,
		exportDir:  opts.ExportDir,
		activeView: viewDashboard,
		dashboard:  newDashboardModel(engine, b.Store(), opts.Now),
		tasks:      newBoardModel(b, opts.Now, opts.CommitTimeout),
		tracks:     newTracksModel(b, opts.Now, opts.CommitTimeout),
		journal:    newJournalModel(b, s, opts.Now, opts.CommitTimeout),
		settings:   newSettingsModel(s),
		help:       h,
	}
	a.dashboard.refresh()
	a.tasks.refresh()
	return a
}

func (a App) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Minute, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		contentHeight := a.height - 4 // header + footer
		a.dashboard.setSize(a.width, contentHeight)
		a.tasks.setSize(a.width, contentHeight)
		a.tracks.setSize(a.width, contentHeight)
		a.journal.setSize(a.width, contentHeight)
		a.settings.setSize(a.width, contentHeight)
		return a, nil

	case tea.KeyMsg:
		// Export picker
		if a.exportPicking {
			return a.updateExportPicker(msg)
		}

		// If a child view is capturing input (e.g. form), delegate first.
		if a.isFormActive() {
			return a.updateActiveView(msg)
		}

		switch {
		case key.Matches(msg, keys.Export):
			a.exportPicking = true
			a.exportCursor = 0
			return a, nil
		case key.Matches(msg, keys.Quit):
			return a, tea.Quit
		case key.Matches(msg, keys.Help):
			a.showHelp = !a.showHelp
			a.help.ShowAll = a.showHelp
			return a, nil
		case key.Matches(msg, keys.Tab1):
			return a.switchView(viewDashboard), nil
		case key.Matches(msg, keys.Tab2):
			return a.switchView(viewBoard), nil
		case key.Matches(msg, keys.Tab3):
			return a.switchView(viewTracks), nil
		case key.Matches(msg, keys.Tab4):
			return a.switchView(viewJournal), nil
		case key.Matches(msg, keys.Tab5):
			return a.switchView(viewSettings), nil
		case key.Matches(msg, keys.Tab):
			return a.switchView((a.activeView + 1) % viewState(len(viewNames))), nil
		}

	case tickMsg:
		if a.activeView == viewDashboard {
			a.dashboard, _ = a.dashboard.update(msg)
		}
		return a, tickCmd()

	case commitResultMsg:
		// Commits finish on their own schedule; the board reconciles them whatever view is showing.
		var cmd tea.Cmd
		a.tasks, cmd = a.tasks.update(msg)
		a.refreshCurrentView()
		return a, cmd

	case showOnBoardMsg:
		a.tasks.spec = msg.spec
		a = a.switchView(viewBoard)
		return a, statusCmd(fmt.Sprintf("%d tasks match %s", a.tasks.cols.Len(), msg.spec))

	case settingsChangedMsg:
		a.engine.SetHeatmapDays(msg.heatmapDays)
		a.board.SetSprintLength(msg.sprintLength)
		a.logger.Info("settings changed", "heatmap_days", msg.heatmapDays, "sprint_length", msg.sprintLength)
		a.refreshCurrentView()
		return a, statusCmd("Settings saved")

	case statusMsg:
		a.status = msg.text
		a.statusError = msg.isError
		if msg.isError {
			a.logger.Warn(msg.text)
		}
		return a, nil

	case exportDoneMsg:
		a.status = fmt.Sprintf("Exported %d tasks to %s", msg.count, msg.path)
		a.statusError = false
		a.exportPicking = false
		return a, nil
	}

	return a.updateActiveView(msg)
}

func (a App) switchView(v viewState) App {
	a.activeView = v
	a.refreshCurrentView()
	return a
}

func (a App) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.activeView {
	case viewDashboard:
		a.dashboard, cmd = a.dashboard.update(msg)
	case viewBoard:
		a.tasks, cmd = a.tasks.update(msg)
	case viewTracks:
		a.tracks, cmd = a.tracks.update(msg)
	case viewJournal:
		a.journal, cmd = a.journal.update(msg)
	case viewSettings:
		a.settings, cmd = a.settings.update(msg)
	}
	return a, cmd
}

func (a App) isFormActive() bool {
	switch a.activeView {
	case viewBoard:
		return a.tasks.formActive
	case viewTracks:
		return a.tracks.formActive
	case viewJournal:
		return a.journal.formActive
	case viewSettings:
		return a.settings.formActive
	}
	return false
}

// refreshCurrentView rebuilds the active view from the store.
func (a *App) refreshCurrentView() {
	switch a.activeView {
	case viewDashboard:
		a.dashboard.refresh()
	case viewBoard:
		a.tasks.refresh()
	case viewTracks:
		a.tracks.refresh()
	case viewJournal:
		a.journal.refresh()
	case viewSettings:
		a.settings.refresh()
	}
}

func (a App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	header := a.renderHeader()
	footer := a.renderFooter()

	var content string
	switch a.activeView {
	case viewDashboard:
		content = a.dashboard.view()
	case viewBoard:
		content = a.tasks.view()
	case viewTracks:
		content = a.tracks.view()
	case viewJournal:
		content = a.journal.view()
	case viewSettings:
		content = a.settings.view()
	}

	// Calculate available height for content
	headerHeight := lipgloss.Height(header)
	footerHeight := lipgloss.Height(footer)
	contentHeight := max(1, a.height-headerHeight-footerHeight)

	// Show export picker overlay
	if a.exportPicking {
		content = a.renderExportPicker()
	}

	content = lipgloss.NewStyle().
		Width(a.width).
		Height(contentHeight).
		MaxHeight(contentHeight).
		Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

func (a App) renderHeader() string {
	var tabs []string
	for i, name := range viewNames {
		if viewState(i) == a.activeView {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}

	tabRow := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)

	title := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Render("sprintboard")
	gap := max(1, a.width-lipgloss.Width(title)-lipgloss.Width(tabRow)-4)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return headerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Bottom, title, spacer, tabRow),
	)
}

func (a App) renderFooter() string {
	helpView := a.help.View(keys)

	status := ""
	if a.status != "" {
		style := mutedStyle
		if a.statusError {
			style = errorStyle
		}
		status = style.Render(" " + a.status)
	}

	// Unsaved moves stay visible from every view.
	unsynced := ""
	if n := len(a.board.UnsyncedIDs()); n > 0 {
		unsynced = warningStyle.Render(fmt.Sprintf(" ● %d unsaved", n))
	}

	left := footerStyle.Render(helpView)
	right := unsynced + status

	gap := max(1, a.width-lipgloss.Width(left)-lipgloss.Width(right)-2)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return lipgloss.JoinHorizontal(lipgloss.Bottom, left, spacer, right)
}

var exportFormats = []string{"CSV", "JSON"}

func (a App) renderExportPicker() string {
	title := titleStyle.Render("Export Tasks")
	var rows []string
	rows = append(rows, title)
	if !a.tasks.spec.IsEmpty() {
		rows = append(rows, mutedStyle.Render("Board filters apply: "+a.tasks.spec.String()))
	}
	rows = append(rows, "")
	for i, f := range exportFormats {
		cursor := "  "
		style := normalItemStyle
		if i == a.exportCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(cursor+f))
	}
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  enter: export  esc: cancel"))

	w := a.width - 4
	return activePanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (a App) updateExportPicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if a.exportCursor > 0 {
			a.exportCursor--
		}
	case key.Matches(msg, keys.Down):
		if a.exportCursor < len(exportFormats)-1 {
			a.exportCursor++
		}
	case key.Matches(msg, keys.Enter):
		a.exportPicking = false
		return a, a.doExport(a.exportCursor)
	case key.Matches(msg, keys.Back):
		a.exportPicking = false
	}
	return a, nil
}

// doExport snapshots the filtered tasks on the event loop and writes the file in the background.
func (a App) doExport(format int) tea.Cmd {
	s := a.board.Store()
	tasks, err := filter.Apply(s.Tasks(), a.tasks.spec)
	if err != nil {
		return errorCmd("Export", err)
	}
	names := export.NamesFrom(s)

	dir := a.exportDir
	dateStr := a.now().Format("2006-01-02")

	return func() tea.Msg {
		if dir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return statusMsg{text: fmt.Sprintf("Export error: %v", err), isError: true}
			}
			dir = home
		}

		var path string
		if format == 0 {
			path = filepath.Join(dir, fmt.Sprintf("sprintboard-export-%s.csv", dateStr))
			if err := export.ToCSV(tasks, names, path); err != nil {
				return statusMsg{text: fmt.Sprintf("CSV error: %v", err), isError: true}
			}
		} else {
			path = filepath.Join(dir, fmt.Sprintf("sprintboard-export-%s.json", dateStr))
			if err := export.ToJSON(tasks, names, path); err != nil {
				return statusMsg{text: fmt.Sprintf("JSON error: %v", err), isError: true}
			}
		}

		return exportDoneMsg{path: path, count: len(tasks)}
	}
}
