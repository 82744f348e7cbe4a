package tui

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/sprintboard/internal/board"
	"github.com/sadopc/sprintboard/internal/entity"
	"github.com/sadopc/sprintboard/internal/filter"
	"github.com/sadopc/sprintboard/internal/metrics"
)

var trackCategories = []string{"work", "personal", "learning", "side project", "other"}

type tracksPane int

const (
	paneTracks tracksPane = iota
	paneSprints
)

// showOnBoardMsg switches to the board with a filter applied.
type showOnBoardMsg struct {
	spec filter.Spec
}

type tracksModel struct {
	board   *board.Board
	now     func() time.Time
	timeout time.Duration
	width   int
	height  int

	tracks  []metrics.TrackSummary
	sprints []metrics.SprintSummary
	pane    tracksPane
	cursor  [2]int

	formActive bool
	form       *huh.Form
	formType   string // "track", "edit_track", "sprint", "edit_sprint", "delete"
	editingID  int64

	// Form field pointers (survive value copies)
	formName     *string
	formDesc     *string
	formCategory *string
	formDate     *string
	formEnd      *string
	formTrack    *string
	formActiveOn *bool
	formConfirm  *bool
}

func newTracksModel(b *board.Board, now func() time.Time, timeout time.Duration) tracksModel {
	var name, desc, cat, date, end, track string
	active, confirm := true, false
	return tracksModel{
		board:        b,
		now:          now,
		timeout:      timeout,
		formName:     &name,
		formDesc:     &desc,
		formCategory: &cat,
		formDate:     &date,
		formEnd:      &end,
		formTrack:    &track,
		formActiveOn: &active,
		formConfirm:  &confirm,
	}
}

func (t *tracksModel) setSize(w, h int) {
	t.width = w
	t.height = h
}

func (t *tracksModel) refresh() {
	s := t.board.Store()
	t.tracks = metrics.TrackSummaries(s)
	t.sprints = metrics.SprintSummaries(s, entity.DateOf(t.now()))
	if t.cursor[paneTracks] >= len(t.tracks) {
		t.cursor[paneTracks] = max(0, len(t.tracks)-1)
	}
	if t.cursor[paneSprints] >= len(t.sprints) {
		t.cursor[paneSprints] = max(0, len(t.sprints)-1)
	}
}

func (t tracksModel) paneLen() int {
	if t.pane == paneSprints {
		return len(t.sprints)
	}
	return len(t.tracks)
}

func (t tracksModel) update(msg tea.Msg) (tracksModel, tea.Cmd) {
	if t.formActive && t.form != nil {
		return t.updateForm(msg)
	}

	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return t, nil
	}
	switch {
	case key.Matches(km, keys.Left):
		t.pane = paneTracks
	case key.Matches(km, keys.Right):
		t.pane = paneSprints
	case key.Matches(km, keys.Up):
		if t.cursor[t.pane] > 0 {
			t.cursor[t.pane]--
		}
	case key.Matches(km, keys.Down):
		if t.cursor[t.pane] < t.paneLen()-1 {
			t.cursor[t.pane]++
		}
	case key.Matches(km, keys.Enter):
		if t.paneLen() == 0 {
			return t, nil
		}
		var spec filter.Spec
		if t.pane == paneTracks {
			id := t.tracks[t.cursor[paneTracks]].Track.ID
			spec.TrackID = &id
		} else {
			id := t.sprints[t.cursor[paneSprints]].Sprint.ID
			spec.SprintID = &id
		}
		return t, func() tea.Msg { return showOnBoardMsg{spec: spec} }
	case key.Matches(km, keys.New):
		if t.pane == paneTracks {
			return t.showTrackForm(nil)
		}
		return t.showSprintForm(nil)
	case key.Matches(km, keys.Edit):
		if t.paneLen() == 0 {
			return t, nil
		}
		if t.pane == paneTracks {
			tr := t.tracks[t.cursor[paneTracks]].Track
			return t.showTrackForm(&tr)
		}
		sp := t.sprints[t.cursor[paneSprints]].Sprint
		return t.showSprintForm(&sp)
	case key.Matches(km, keys.Delete):
		if t.paneLen() > 0 {
			return t.showDeleteForm()
		}
	}
	return t, nil
}

func (t tracksModel) showTrackForm(tr *entity.Track) (tracksModel, tea.Cmd) {
	*t.formName, *t.formDesc, *t.formCategory, *t.formDate = "", "", trackCategories[0], ""
	*t.formActiveOn = true
	t.formType = "track"
	if tr != nil {
		*t.formName, *t.formDesc, *t.formCategory = tr.Title, tr.Description, tr.Category
		*t.formDate = dateString(tr.Deadline)
		*t.formActiveOn = tr.IsActive
		t.formType = "edit_track"
		t.editingID = tr.ID
	}

	cats := make([]huh.Option[string], 0, len(trackCategories)+1)
	for _, c := range trackCategories {
		cats = append(cats, huh.NewOption(c, c))
	}
	if *t.formCategory != "" && !slices.Contains(trackCategories, *t.formCategory) {
		cats = append(cats, huh.NewOption(*t.formCategory, *t.formCategory))
	}

	t.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Track Title").Value(t.formName).Validate(requiredText),
			huh.NewText().Title("Description").Value(t.formDesc),
			huh.NewSelect[string]().Title("Category").Options(cats...).Value(t.formCategory),
			huh.NewInput().Title("Deadline (YYYY-MM-DD)").Value(t.formDate).Validate(validateOptionalDate),
			huh.NewConfirm().Title("Active?").Value(t.formActiveOn),
		),
	).WithShowHelp(true).WithShowErrors(true)

	t.formActive = true
	return t, t.form.Init()
}

func (t tracksModel) showSprintForm(sp *entity.Sprint) (tracksModel, tea.Cmd) {
	*t.formName, *t.formDesc = "", ""
	*t.formDate = entity.DateOf(t.now()).String()
	*t.formEnd = ""
	*t.formTrack = ""
	*t.formActiveOn = true
	t.formType = "sprint"
	if sp != nil {
		*t.formName, *t.formDesc = sp.Name, sp.Description
		*t.formDate, *t.formEnd = sp.StartDate.String(), sp.EndDate.String()
		*t.formTrack = idOption(sp.TrackID)
		*t.formActiveOn = sp.IsActive
		t.formType = "edit_sprint"
		t.editingID = sp.ID
	} else if len(t.tracks) > 0 {
		id := t.tracks[t.cursor[paneTracks]].Track.ID
		*t.formTrack = idOption(&id)
	}

	tracks := []huh.Option[string]{huh.NewOption("None", "")}
	for _, ts := range t.tracks {
		tracks = append(tracks, huh.NewOption(ts.Track.Title, idOption(&ts.Track.ID)))
	}
	endTitle := fmt.Sprintf("End date (YYYY-MM-DD, empty = start + %d days)", t.board.SprintLength())

	t.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Sprint Name").Value(t.formName).Validate(requiredText),
			huh.NewText().Title("Description").Value(t.formDesc),
			huh.NewSelect[string]().Title("Track").Options(tracks...).Value(t.formTrack),
			huh.NewInput().Title("Start date (YYYY-MM-DD)").Value(t.formDate).Validate(validateOptionalDate),
			huh.NewInput().Title(endTitle).Value(t.formEnd).Validate(validateOptionalDate),
			huh.NewConfirm().Title("Active?").Value(t.formActiveOn),
		),
	).WithShowHelp(true).WithShowErrors(true)

	t.formActive = true
	return t, t.form.Init()
}

func (t tracksModel) showDeleteForm() (tracksModel, tea.Cmd) {
	var title string
	if t.pane == paneTracks {
		tr := t.tracks[t.cursor[paneTracks]]
		t.editingID = tr.Track.ID
		title = fmt.Sprintf("Delete track %q? Its %d tasks are kept.", tr.Track.Title, tr.Tasks.Total)
	} else {
		sp := t.sprints[t.cursor[paneSprints]]
		t.editingID = sp.Sprint.ID
		title = fmt.Sprintf("Delete sprint %q? Its %d tasks are kept.", sp.Sprint.Name, sp.Tasks.Total)
	}
	*t.formConfirm = false
	t.formType = "delete"
	t.form = huh.NewForm(
		huh.NewGroup(huh.NewConfirm().Title(title).Value(t.formConfirm)),
	).WithShowHelp(true)

	t.formActive = true
	return t, t.form.Init()
}

func (t tracksModel) updateForm(msg tea.Msg) (tracksModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			t.formActive = false
			t.form = nil
			return t, nil
		}
	}

	form, cmd := t.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		t.form = f
	}

	if t.form.State == huh.StateCompleted {
		t.formActive = false
		t.form = nil
		return t.submitForm()
	}
	return t, cmd
}

func (t tracksModel) submitForm() (tracksModel, tea.Cmd) {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	var (
		status string
		err    error
	)
	switch t.formType {
	case "track", "edit_track":
		status, err = t.saveTrack(ctx)
	case "sprint", "edit_sprint":
		status, err = t.saveSprint(ctx)
	case "delete":
		if !*t.formConfirm {
			return t, nil
		}
		if t.pane == paneTracks {
			err = t.board.DeleteTrack(ctx, t.editingID)
			status = "Track deleted"
		} else {
			err = t.board.DeleteSprint(ctx, t.editingID)
			status = "Sprint deleted"
		}
	}
	if err != nil {
		return t, errorCmd("Save", err)
	}
	t.refresh()
	return t, statusCmd(status)
}

func (t tracksModel) saveTrack(ctx context.Context) (string, error) {
	deadline, err := parseOptionalDate(*t.formDate)
	if err != nil {
		return "", err
	}
	title := strings.TrimSpace(*t.formName)
	if t.formType == "track" {
		_, err = t.board.CreateTrack(ctx, entity.Track{
			Title:       title,
			Description: *t.formDesc,
			Category:    *t.formCategory,
			Deadline:    deadline,
			IsActive:    *t.formActiveOn,
		})
		return "Track created", err
	}
	_, err = t.board.UpdateTrack(ctx, t.editingID, board.Patch{
		"title":       title,
		"description": *t.formDesc,
		"category":    *t.formCategory,
		"deadline":    deadline,
		"is_active":   *t.formActiveOn,
	})
	return "Track updated", err
}

func (t tracksModel) saveSprint(ctx context.Context) (string, error) {
	start, err := parseOptionalDate(*t.formDate)
	if err != nil {
		return "", err
	}
	end, err := parseOptionalDate(*t.formEnd)
	if err != nil {
		return "", err
	}
	name := strings.TrimSpace(*t.formName)
	trackID := parseIDOption(*t.formTrack)

	if t.formType == "sprint" {
		sp := entity.Sprint{Name: name, Description: *t.formDesc, TrackID: trackID, IsActive: *t.formActiveOn}
		if start != nil {
			sp.StartDate = *start
		}
		if end != nil {
			sp.EndDate = *end
		}
		_, err = t.board.CreateSprint(ctx, sp)
		return "Sprint created", err
	}

	patch := board.Patch{
		"name":        name,
		"description": *t.formDesc,
		"track_id":    trackID,
		"is_active":   *t.formActiveOn,
	}
	if start != nil {
		patch["start_date"] = *start
	}
	if end != nil {
		patch["end_date"] = *end
	}
	_, err = t.board.UpdateSprint(ctx, t.editingID, patch)
	return "Sprint updated", err
}

func (t tracksModel) view() string {
	w := t.width - 4

	if t.formActive && t.form != nil {
		titles := map[string]string{
			"track": "New Track", "edit_track": "Edit Track",
			"sprint": "New Sprint", "edit_sprint": "Edit Sprint",
			"delete": "Delete",
		}
		content := lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(titles[t.formType]), "", t.form.View())
		return panelStyle.Width(w).Render(content)
	}

	half := max(30, w/2-1)
	left := t.renderTracks(half)
	right := t.renderSprints(half)
	hint := mutedStyle.Render("  ←/→: switch list  n: new  e: edit  d: delete  enter: show on board")
	return lipgloss.JoinVertical(lipgloss.Left, lipgloss.JoinHorizontal(lipgloss.Top, left, right), hint)
}

func (t tracksModel) renderTracks(w int) string {
	style := panelStyle
	if t.pane == paneTracks {
		style = activePanelStyle
	}
	title := titleStyle.Render("Tracks")
	if len(t.tracks) == 0 {
		return style.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			title, "", mutedStyle.Render("No tracks yet. Press n to create one."),
		))
	}

	rows := []string{title, ""}
	for i, ts := range t.tracks {
		cursor := "  "
		item := normalItemStyle
		if t.pane == paneTracks && i == t.cursor[paneTracks] {
			cursor = "> "
			item = selectedItemStyle
		}
		name := truncate(ts.Track.Title, w-20)
		if !ts.Track.IsActive {
			name += " (inactive)"
		}
		rows = append(rows, item.Render(cursor+name)+mutedStyle.Render(fmt.Sprintf("  %d%%", ts.Progress)))

		meta := []string{fmt.Sprintf("%d/%d done", ts.Tasks.Done, ts.Tasks.Total), fmt.Sprintf("%d sprints", ts.SprintCount)}
		if ts.Track.Category != "" {
			meta = append([]string{ts.Track.Category}, meta...)
		}
		if ts.EstimatedHours > 0 || ts.ActualHours > 0 {
			meta = append(meta, fmt.Sprintf("%s of %s logged", formatHours(ts.ActualHours), formatHours(ts.EstimatedHours)))
		}
		if ts.Track.Deadline != nil {
			meta = append(meta, formatDue(ts.Track.Deadline, entity.DateOf(t.now())))
		}
		rows = append(rows, "    "+mutedStyle.Render(strings.Join(meta, " · ")))
	}
	return style.Width(w).Render(strings.Join(rows, "\n"))
}

func (t tracksModel) renderSprints(w int) string {
	style := panelStyle
	if t.pane == paneSprints {
		style = activePanelStyle
	}
	title := titleStyle.Render("Sprints")
	if len(t.sprints) == 0 {
		return style.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			title, "", mutedStyle.Render("No sprints yet. Press → then n to plan one."),
		))
	}

	rows := []string{title, ""}
	for i, ss := range t.sprints {
		cursor := "  "
		item := normalItemStyle
		if t.pane == paneSprints && i == t.cursor[paneSprints] {
			cursor = "> "
			item = selectedItemStyle
		}
		phase := mutedStyle.Render(string(ss.Phase))
		switch ss.Phase {
		case metrics.PhaseActive:
			phase = successStyle.Render(fmt.Sprintf("active, %d days left", ss.DaysRemaining))
		case metrics.PhaseUpcoming:
			phase = highlightStyle.Render("upcoming")
		}
		rows = append(rows, item.Render(cursor+truncate(ss.Sprint.Name, w-30))+"  "+phase)

		meta := fmt.Sprintf("%s → %s · %d/%d done", ss.Sprint.StartDate, ss.Sprint.EndDate, ss.Tasks.Done, ss.Tasks.Total)
		if ss.TrackTitle != "" {
			meta += " · " + ss.TrackTitle
		}
		rows = append(rows, "    "+mutedStyle.Render(meta))
	}
	return style.Width(w).Render(strings.Join(rows, "\n"))
}
