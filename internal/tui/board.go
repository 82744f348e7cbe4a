package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/sprintboard/internal/board"
	"github.com/sadopc/sprintboard/internal/entity"
	"github.com/sadopc/sprintboard/internal/filter"
)

type boardModel struct {
	board   *board.Board
	now     func() time.Time
	timeout time.Duration
	width   int
	height  int

	spec filter.Spec
	cols board.Columns
	col  int
	rows [3]int
	// drop target column while a drag is active
	target int

	formActive bool
	form       *huh.Form
	formType   string // "task", "edit_task", "delete_task", "filter"
	editingID  int64

	// Form field pointers (survive value copies)
	formTitle    *string
	formDesc     *string
	formPriority *string
	formHours    *string
	formActual   *string
	formDue      *string
	formTrack    *string
	formSprint   *string
	formConfirm  *bool

	filterSearch   *string
	filterPriority *string
	filterStatus   *string
	filterTrack    *string
	filterSprint   *string
}

func newBoardModel(b *board.Board, now func() time.Time, timeout time.Duration) boardModel {
	var title, desc, prio, hours, actual, due, track, sprint string
	var search, fprio, fstatus, ftrack, fsprint string
	confirm := false
	return boardModel{
		board:          b,
		now:            now,
		timeout:        timeout,
		formTitle:      &title,
		formDesc:       &desc,
		formPriority:   &prio,
		formHours:      &hours,
		formActual:     &actual,
		formDue:        &due,
		formTrack:      &track,
		formSprint:     &sprint,
		formConfirm:    &confirm,
		filterSearch:   &search,
		filterPriority: &fprio,
		filterStatus:   &fstatus,
		filterTrack:    &ftrack,
		filterSprint:   &fsprint,
	}
}

func (m *boardModel) setSize(w, h int) {
	m.width = w
	m.height = h
}

// refresh rebuilds the columns from the store and clamps the cursors.
func (m *boardModel) refresh() {
	cols, err := m.board.Columns(m.spec)
	if err != nil {
		m.spec = filter.Spec{}
		cols, _ = m.board.Columns(m.spec)
	}
	m.cols = cols
	for i, s := range entity.Statuses {
		n := len(cols.Column(s))
		if m.rows[i] >= n {
			m.rows[i] = max(0, n-1)
		}
	}
}

func (m boardModel) selected() (entity.Task, bool) {
	col := m.cols.Column(entity.Statuses[m.col])
	if len(col) == 0 {
		return entity.Task{}, false
	}
	return col[m.rows[m.col]], true
}

func (m boardModel) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), m.timeout)
}

// commit sends a mutation to the gateway off the event loop.
func (m boardModel) commit(mu *board.Mutation) tea.Cmd {
	if mu == nil {
		return nil
	}
	b, timeout := m.board, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		rec, err := b.Commit(ctx, mu)
		return commitResultMsg{mutation: mu, rec: rec, err: err}
	}
}

func (m boardModel) update(msg tea.Msg) (boardModel, tea.Cmd) {
	if m.formActive && m.form != nil {
		return m.updateForm(msg)
	}

	switch msg := msg.(type) {
	case commitResultMsg:
		err := m.board.Reconcile(msg.mutation, msg.rec, msg.err)
		m.refresh()
		if err != nil {
			if m.board.Policy() == board.FlagOnFailure {
				return m, errorCmd("Move kept locally", err)
			}
			return m, errorCmd("Move reverted", err)
		}
		return m, nil

	case tea.KeyMsg:
		if _, dragging := m.board.Dragging(); dragging {
			return m.updateDrag(msg)
		}
		return m.updateColumns(msg)
	}
	return m, nil
}

func (m boardModel) updateColumns(msg tea.KeyMsg) (boardModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Left):
		if m.col > 0 {
			m.col--
		}
	case key.Matches(msg, keys.Right):
		if m.col < len(entity.Statuses)-1 {
			m.col++
		}
	case key.Matches(msg, keys.Up):
		if m.rows[m.col] > 0 {
			m.rows[m.col]--
		}
	case key.Matches(msg, keys.Down):
		if m.rows[m.col] < len(m.cols.Column(entity.Statuses[m.col]))-1 {
			m.rows[m.col]++
		}
	case key.Matches(msg, keys.Move):
		t, ok := m.selected()
		if !ok {
			return m, nil
		}
		if err := m.board.BeginDrag(t.ID); err != nil {
			return m, errorCmd("Move", err)
		}
		m.target = m.col
		return m, statusCmd(fmt.Sprintf("Moving %q: ←/→ pick a column, enter to drop, esc to cancel", t.Title))
	case key.Matches(msg, keys.Cycle):
		t, ok := m.selected()
		if !ok {
			return m, nil
		}
		mu, err := m.board.Cycle(t.ID)
		if err != nil {
			return m, errorCmd("Cycle", err)
		}
		m.refresh()
		m.follow(t.ID)
		return m, m.commit(mu)
	case key.Matches(msg, keys.New):
		return m.showTaskForm(nil)
	case key.Matches(msg, keys.Edit):
		if t, ok := m.selected(); ok {
			return m.showTaskForm(&t)
		}
	case key.Matches(msg, keys.Delete):
		if t, ok := m.selected(); ok {
			return m.showDeleteForm(t)
		}
	case key.Matches(msg, keys.Filter):
		return m.showFilterForm()
	case key.Matches(msg, keys.Clear):
		m.spec = filter.Spec{}
		m.refresh()
		return m, statusCmd("Filters cleared")
	case key.Matches(msg, keys.Reload):
		ctx, cancel := m.ctx()
		defer cancel()
		if err := m.board.Load(ctx); err != nil {
			return m, errorCmd("Reload", err)
		}
		m.refresh()
		return m, statusCmd("Board reloaded")
	}
	return m, nil
}

func (m boardModel) updateDrag(msg tea.KeyMsg) (boardModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Left):
		if m.target > 0 {
			m.target--
		}
	case key.Matches(msg, keys.Right):
		if m.target < len(entity.Statuses)-1 {
			m.target++
		}
	case key.Matches(msg, keys.Enter), key.Matches(msg, keys.Move):
		id, _ := m.board.Dragging()
		mu, err := m.board.DropOnColumn(entity.Statuses[m.target])
		if err != nil {
			return m, errorCmd("Drop", err)
		}
		m.refresh()
		m.col = m.target
		m.follow(id)
		if mu == nil {
			return m, statusCmd("")
		}
		return m, tea.Batch(m.commit(mu), statusCmd("Moved to "+mu.To.Label()))
	case key.Matches(msg, keys.Back):
		m.board.CancelDrag()
		return m, statusCmd("Move cancelled")
	}
	return m, nil
}

// follow points the cursor at id after it changed column.
func (m *boardModel) follow(id int64) {
	for i, s := range entity.Statuses {
		for j, t := range m.cols.Column(s) {
			if t.ID == id {
				m.col, m.rows[i] = i, j
				return
			}
		}
	}
}

func (m boardModel) trackOptions() []huh.Option[string] {
	opts := []huh.Option[string]{huh.NewOption("None", "")}
	for _, tr := range m.board.Store().Tracks() {
		opts = append(opts, huh.NewOption(tr.Title, idOption(&tr.ID)))
	}
	return opts
}

func (m boardModel) sprintOptions() []huh.Option[string] {
	opts := []huh.Option[string]{huh.NewOption("None", "")}
	for _, sp := range m.board.Store().Sprints() {
		label := fmt.Sprintf("%s (%s → %s)", sp.Name, sp.StartDate, sp.EndDate)
		opts = append(opts, huh.NewOption(label, idOption(&sp.ID)))
	}
	return opts
}

func priorityOptions() []huh.Option[string] {
	opts := make([]huh.Option[string], len(entity.Priorities))
	for i, p := range entity.Priorities {
		opts[i] = huh.NewOption(string(p), string(p))
	}
	return opts
}

func requiredText(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("required")
	}
	return nil
}

func (m boardModel) showTaskForm(t *entity.Task) (boardModel, tea.Cmd) {
	*m.formTitle, *m.formDesc = "", ""
	*m.formPriority = string(entity.PriorityMedium)
	*m.formHours, *m.formActual, *m.formDue = "", "", ""
	*m.formTrack, *m.formSprint = "", ""
	m.formType = "task"
	if t != nil {
		*m.formTitle, *m.formDesc = t.Title, t.Description
		*m.formPriority = string(t.Priority)
		*m.formHours, *m.formDue = floatString(t.EstimatedHours), dateString(t.DueDate)
		*m.formActual = floatString(t.ActualHours)
		*m.formTrack, *m.formSprint = idOption(t.TrackID), idOption(t.SprintID)
		m.formType = "edit_task"
		m.editingID = t.ID
	} else if m.spec.TrackID != nil || m.spec.SprintID != nil {
		*m.formTrack, *m.formSprint = idOption(m.spec.TrackID), idOption(m.spec.SprintID)
	}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Title").Value(m.formTitle).Validate(requiredText),
			huh.NewText().Title("Description").Value(m.formDesc),
			huh.NewSelect[string]().Title("Priority").Options(priorityOptions()...).Value(m.formPriority),
		),
		huh.NewGroup(
			huh.NewInput().Title("Estimated hours").Value(m.formHours).Validate(validateOptionalFloat),
			huh.NewInput().Title("Actual hours").Value(m.formActual).Validate(validateOptionalFloat),
			huh.NewInput().Title("Due date (YYYY-MM-DD)").Value(m.formDue).Validate(validateOptionalDate),
			huh.NewSelect[string]().Title("Track").Options(m.trackOptions()...).Value(m.formTrack),
			huh.NewSelect[string]().Title("Sprint").Options(m.sprintOptions()...).Value(m.formSprint),
		),
	).WithShowHelp(true).WithShowErrors(true)

	m.formActive = true
	return m, m.form.Init()
}

func (m boardModel) showDeleteForm(t entity.Task) (boardModel, tea.Cmd) {
	*m.formConfirm = false
	m.formType = "delete_task"
	m.editingID = t.ID
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().Title(fmt.Sprintf("Delete %q?", t.Title)).Value(m.formConfirm),
		),
	).WithShowHelp(true)

	m.formActive = true
	return m, m.form.Init()
}

func (m boardModel) showFilterForm() (boardModel, tea.Cmd) {
	*m.filterSearch = m.spec.SearchText
	*m.filterPriority = string(m.spec.Priority)
	*m.filterStatus = string(m.spec.Status)
	*m.filterTrack, *m.filterSprint = idOption(m.spec.TrackID), idOption(m.spec.SprintID)
	m.formType = "filter"

	prio := append([]huh.Option[string]{huh.NewOption("Any", "")}, priorityOptions()...)
	status := []huh.Option[string]{huh.NewOption("Any", "")}
	for _, s := range entity.Statuses {
		status = append(status, huh.NewOption(s.Label(), string(s)))
	}
	tracks := m.trackOptions()
	tracks[0] = huh.NewOption("Any", "")
	sprints := m.sprintOptions()
	sprints[0] = huh.NewOption("Any", "")

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Search").Value(m.filterSearch),
			huh.NewSelect[string]().Title("Priority").Options(prio...).Value(m.filterPriority),
			huh.NewSelect[string]().Title("Status").Options(status...).Value(m.filterStatus),
			huh.NewSelect[string]().Title("Track").Options(tracks...).Value(m.filterTrack),
			huh.NewSelect[string]().Title("Sprint").Options(sprints...).Value(m.filterSprint),
		),
	).WithShowHelp(true).WithShowErrors(true)

	m.formActive = true
	return m, m.form.Init()
}

func (m boardModel) updateForm(msg tea.Msg) (boardModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			m.formActive = false
			m.form = nil
			return m, nil
		}
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.formActive = false
		m.form = nil
		return m.submitForm()
	}
	return m, cmd
}

func (m boardModel) submitForm() (boardModel, tea.Cmd) {
	ctx, cancel := m.ctx()
	defer cancel()

	switch m.formType {
	case "filter":
		m.spec = filter.Spec{
			SearchText: strings.TrimSpace(*m.filterSearch),
			Priority:   entity.Priority(*m.filterPriority),
			Status:     entity.Status(*m.filterStatus),
			TrackID:    parseIDOption(*m.filterTrack),
			SprintID:   parseIDOption(*m.filterSprint),
		}
		m.refresh()
		return m, statusCmd(fmt.Sprintf("%d tasks match %s", m.cols.Len(), m.spec))

	case "delete_task":
		if !*m.formConfirm {
			return m, nil
		}
		if err := m.board.DeleteTask(ctx, m.editingID); err != nil {
			return m, errorCmd("Delete", err)
		}
		m.refresh()
		return m, statusCmd("Task deleted")

	case "task", "edit_task":
		hours, err := parseOptionalFloat(*m.formHours)
		if err != nil {
			return m, errorCmd("Estimated hours", err)
		}
		actual, err := parseOptionalFloat(*m.formActual)
		if err != nil {
			return m, errorCmd("Actual hours", err)
		}
		due, err := parseOptionalDate(*m.formDue)
		if err != nil {
			return m, errorCmd("Due date", err)
		}
		trackID, sprintID := parseIDOption(*m.formTrack), parseIDOption(*m.formSprint)

		if m.formType == "task" {
			t, err := m.board.CreateTask(ctx, entity.Task{
				Title:          strings.TrimSpace(*m.formTitle),
				Description:    *m.formDesc,
				Status:         entity.Statuses[m.col],
				Priority:       entity.Priority(*m.formPriority),
				EstimatedHours: hours,
				ActualHours:    actual,
				DueDate:        due,
				TrackID:        trackID,
				SprintID:       sprintID,
			})
			if err != nil {
				return m, errorCmd("Create task", err)
			}
			m.refresh()
			m.follow(t.ID)
			return m, statusCmd("Task created")
		}

		_, err = m.board.UpdateTask(ctx, m.editingID, board.Patch{
			"title":           strings.TrimSpace(*m.formTitle),
			"description":     *m.formDesc,
			"priority":        *m.formPriority,
			"estimated_hours": hours,
			"actual_hours":    actual,
			"due_date":        due,
			"track_id":        trackID,
			"sprint_id":       sprintID,
		})
		if err != nil {
			return m, errorCmd("Update task", err)
		}
		m.refresh()
		return m, statusCmd("Task updated")
	}
	return m, nil
}

func (m boardModel) view() string {
	w := m.width - 4

	if m.formActive && m.form != nil {
		title := "New Task"
		switch m.formType {
		case "edit_task":
			title = "Edit Task"
		case "delete_task":
			title = "Delete Task"
		case "filter":
			title = "Filter Board"
		}
		content := lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), "", m.form.View())
		return panelStyle.Width(w).Render(content)
	}

	header := titleStyle.Render("Board")
	if m.spec.IsEmpty() {
		header += mutedStyle.Render(fmt.Sprintf("  %d tasks", m.cols.Len()))
	} else {
		header += highlightStyle.Render(fmt.Sprintf("  %d active filters: %s", m.spec.ActiveCount(), m.spec))
	}

	colWidth := max(18, (m.width-2)/len(entity.Statuses)-2)
	dragID, dragging := m.board.Dragging()
	today := entity.DateOf(m.now())

	var columns []string
	for i, s := range entity.Statuses {
		tasks := m.cols.Column(s)
		rows := []string{titleStyle.Render(fmt.Sprintf("%s (%d)", s.Label(), len(tasks))), ""}
		if len(tasks) == 0 {
			rows = append(rows, mutedStyle.Render("empty"))
		}
		for j, t := range tasks {
			active := i == m.col && j == m.rows[i]
			rows = append(rows, m.renderCard(t, active, dragging && t.ID == dragID, today, colWidth-4))
		}

		style := columnStyle
		switch {
		case dragging && i == m.target:
			style = dropColumnStyle
		case !dragging && i == m.col:
			style = activeColumnStyle
		}
		columns = append(columns, style.Width(colWidth).Render(strings.Join(rows, "\n")))
	}

	hint := mutedStyle.Render("  m: move  c: cycle  n: new  e: edit  d: delete  /: filter  C: clear  r: reload")
	if dragging {
		hint = highlightStyle.Render("  ←/→: choose column  enter: drop  esc: cancel")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		lipgloss.JoinHorizontal(lipgloss.Top, columns...),
		hint,
	)
}

func (m boardModel) renderCard(t entity.Task, active, dragged bool, today entity.Date, w int) string {
	cursor := "  "
	style := normalItemStyle
	if active {
		cursor = "> "
		style = selectedItemStyle
	}
	if dragged {
		cursor = "⇄ "
		style = highlightStyle
	}

	line := style.Render(cursor+truncate(t.Title, w-2)) + " " + priorityStyle(t.Priority).Render("●")

	var meta []string
	if t.DueDate != nil {
		due := formatDue(t.DueDate, today)
		if t.Overdue(today) {
			due = errorStyle.Render(due)
		}
		meta = append(meta, due)
	}
	if t.TrackID != nil {
		if tr, err := m.board.Store().Track(*t.TrackID); err == nil {
			meta = append(meta, truncate(tr.Title, 14))
		}
	}
	if _, unsaved := m.board.Unsynced(t.ID); unsaved {
		meta = append(meta, errorStyle.Render("unsaved"))
	} else if m.board.Pending(t.ID) {
		meta = append(meta, warningStyle.Render("saving…"))
	}
	if len(meta) == 0 {
		return line
	}
	return line + "\n    " + mutedStyle.Render(strings.Join(meta, " · "))
}
