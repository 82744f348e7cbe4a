package tui

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/sprintboard/internal/board"
	"github.com/sadopc/sprintboard/internal/entity"
	"github.com/sadopc/sprintboard/internal/store"
)

const journalHistoryDays = 7

type journalModel struct {
	board   *board.Board
	store   *store.Store
	now     func() time.Time
	timeout time.Duration
	width   int
	height  int

	// offset is the number of days before today being viewed.
	offset int
	log    entity.DailyLog
	logged bool
	habits []string
	todos  []entity.DailyTodo
	// cursor walks the habits, then the checklist.
	cursor int

	formActive bool
	form       *huh.Form
	formType   string // "log", "todo"

	// Form field pointers (survive value copies)
	formMood   *string
	formEnergy *string
	formFocus  *string
	formNotes  *string
	formHabits *[]string
	formTodo   *string
}

func newJournalModel(b *board.Board, s *store.Store, now func() time.Time, timeout time.Duration) journalModel {
	var mood, energy, focus, notes, todo string
	var habits []string
	return journalModel{
		board:      b,
		store:      s,
		now:        now,
		timeout:    timeout,
		formMood:   &mood,
		formEnergy: &energy,
		formFocus:  &focus,
		formNotes:  &notes,
		formHabits: &habits,
		formTodo:   &todo,
	}
}

func (j *journalModel) setSize(w, h int) {
	j.width = w
	j.height = h
}

func (j journalModel) day() entity.Date {
	return entity.DateOf(j.now()).AddDays(-j.offset)
}

func (j *journalModel) refresh() {
	day := j.day()
	j.log, j.logged = j.board.Store().DailyLogOn(day)
	if !j.logged {
		j.log = entity.DailyLog{Date: day}
	}

	habits, err := j.store.Habits()
	if err != nil {
		habits = nil
	}
	// Habits ticked before they were removed from settings stay visible on that day.
	for _, h := range j.log.Habits {
		if !slices.Contains(habits, h) {
			habits = append(habits, h)
		}
	}
	j.habits = habits
	j.todos = j.loadTodos(day)
	if j.cursor >= j.items() {
		j.cursor = max(0, j.items()-1)
	}
}

// loadTodos seeds today's checklist on first view. Past days are read as stored.
func (j journalModel) loadTodos(day entity.Date) []entity.DailyTodo {
	if j.offset == 0 {
		ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
		defer cancel()
		if todos, err := j.board.TodayTodos(ctx, day); err == nil {
			return todos
		}
	}
	return j.board.Store().TodosOn(day)
}

func (j journalModel) items() int { return len(j.habits) + len(j.todos) }

// selectedTodo is the checklist item under the cursor, if any.
func (j journalModel) selectedTodo() (entity.DailyTodo, bool) {
	i := j.cursor - len(j.habits)
	if i < 0 || i >= len(j.todos) {
		return entity.DailyTodo{}, false
	}
	return j.todos[i], true
}

func (j journalModel) update(msg tea.Msg) (journalModel, tea.Cmd) {
	if j.formActive && j.form != nil {
		return j.updateForm(msg)
	}

	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return j, nil
	}
	switch {
	case key.Matches(km, keys.Left):
		j.offset++
		j.refresh()
	case key.Matches(km, keys.Right):
		if j.offset > 0 {
			j.offset--
			j.refresh()
		}
	case key.Matches(km, keys.Up):
		if j.cursor > 0 {
			j.cursor--
		}
	case key.Matches(km, keys.Down):
		if j.cursor < j.items()-1 {
			j.cursor++
		}
	case key.Matches(km, keys.Toggle):
		if td, ok := j.selectedTodo(); ok {
			return j.toggleTodo(td)
		}
		if j.cursor >= len(j.habits) {
			return j, nil
		}
		habit := j.habits[j.cursor]
		ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
		defer cancel()
		l, err := j.board.ToggleHabit(ctx, j.day(), habit)
		if err != nil {
			return j, errorCmd("Habit", err)
		}
		j.refresh()
		if l.HasHabit(habit) {
			return j, statusCmd("✓ " + habit)
		}
		return j, statusCmd("Unchecked " + habit)
	case key.Matches(km, keys.New):
		return j.showTodoForm()
	case key.Matches(km, keys.Delete):
		if td, ok := j.selectedTodo(); ok {
			return j.deleteTodo(td)
		}
	case key.Matches(km, keys.Enter), key.Matches(km, keys.Edit):
		return j.showForm()
	}
	return j, nil
}

func (j journalModel) toggleTodo(td entity.DailyTodo) (journalModel, tea.Cmd) {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	got, err := j.board.ToggleTodo(ctx, td.ID)
	if err != nil {
		return j, errorCmd("Checklist", err)
	}
	j.refresh()
	if got.IsCompleted {
		return j, statusCmd("✓ " + got.Title)
	}
	return j, statusCmd("Reopened " + got.Title)
}

func (j journalModel) deleteTodo(td entity.DailyTodo) (journalModel, tea.Cmd) {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	if err := j.board.DeleteTodo(ctx, td.ID); err != nil {
		return j, errorCmd("Checklist", err)
	}
	j.refresh()
	return j, statusCmd("Removed " + td.Title)
}

func (j journalModel) showTodoForm() (journalModel, tea.Cmd) {
	*j.formTodo = ""
	j.formType = "todo"
	j.form = huh.NewForm(huh.NewGroup(
		huh.NewInput().Title("Checklist item").Value(j.formTodo).Validate(requiredText),
	)).WithShowHelp(true).WithShowErrors(true)
	j.formActive = true
	return j, j.form.Init()
}

func (j journalModel) addTodo() (journalModel, tea.Cmd) {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	td, err := j.board.AddTodo(ctx, j.day(), *j.formTodo)
	if err != nil {
		return j, errorCmd("Checklist", err)
	}
	j.refresh()
	return j, statusCmd("Added " + td.Title)
}

func scoreOptions() []huh.Option[string] {
	opts := []huh.Option[string]{huh.NewOption("Not rated", "")}
	for i := 1; i <= 10; i++ {
		v := strconv.Itoa(i)
		opts = append(opts, huh.NewOption(v, v))
	}
	return opts
}

func scoreString(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func parseScore(s string) *int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

func (j journalModel) showForm() (journalModel, tea.Cmd) {
	*j.formMood = scoreString(j.log.MoodScore)
	*j.formEnergy = scoreString(j.log.EnergyLevel)
	*j.formFocus = floatString(j.log.FocusHours)
	*j.formNotes = j.log.Notes
	*j.formHabits = slices.Clone(j.log.Habits)
	j.formType = "log"

	habits := make([]huh.Option[string], len(j.habits))
	for i, h := range j.habits {
		habits[i] = huh.NewOption(h, h)
	}

	fields := []huh.Field{
		huh.NewSelect[string]().Title("Mood").Options(scoreOptions()...).Value(j.formMood),
		huh.NewSelect[string]().Title("Energy").Options(scoreOptions()...).Value(j.formEnergy),
		huh.NewInput().Title("Focus hours").Value(j.formFocus).Validate(validateOptionalFloat),
	}
	groups := []*huh.Group{huh.NewGroup(fields...)}
	if len(habits) > 0 {
		groups = append(groups, huh.NewGroup(
			huh.NewMultiSelect[string]().Title("Habits").Options(habits...).Value(j.formHabits),
		))
	}
	groups = append(groups, huh.NewGroup(huh.NewText().Title("Notes").Value(j.formNotes)))

	j.form = huh.NewForm(groups...).WithShowHelp(true).WithShowErrors(true)
	j.formActive = true
	return j, j.form.Init()
}

func (j journalModel) updateForm(msg tea.Msg) (journalModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			j.formActive = false
			j.form = nil
			return j, nil
		}
	}

	form, cmd := j.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		j.form = f
	}

	if j.form.State == huh.StateCompleted {
		j.formActive = false
		j.form = nil
		if j.formType == "todo" {
			return j.addTodo()
		}
		return j.save()
	}
	return j, cmd
}

func (j journalModel) save() (journalModel, tea.Cmd) {
	focus, err := parseOptionalFloat(*j.formFocus)
	if err != nil {
		return j, errorCmd("Focus hours", err)
	}
	l := j.log
	l.Date = j.day()
	l.MoodScore = parseScore(*j.formMood)
	l.EnergyLevel = parseScore(*j.formEnergy)
	l.FocusHours = focus
	l.Notes = strings.TrimSpace(*j.formNotes)
	l.Habits = slices.Clone(*j.formHabits)

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	if _, err := j.board.SaveDailyLog(ctx, l); err != nil {
		return j, errorCmd("Save journal", err)
	}
	j.refresh()
	return j, statusCmd("Journal saved for " + l.Date.String())
}

func (j journalModel) view() string {
	w := j.width - 4
	day := j.day()

	if j.formActive && j.form != nil {
		title := titleStyle.Render("Journal · " + day.Time().Format("Mon Jan 2"))
		if j.formType == "todo" {
			title = titleStyle.Render("Checklist · " + day.Time().Format("Mon Jan 2"))
		}
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, title, "", j.form.View()))
	}

	label := day.Time().Format("Monday, Jan 2 2006")
	if j.offset == 0 {
		label = "Today · " + label
	}
	rows := []string{titleStyle.Render(label), ""}

	if !j.logged {
		rows = append(rows, mutedStyle.Render("Nothing logged yet. Press enter to write an entry."))
	} else {
		rows = append(rows,
			fmt.Sprintf("Mood    %s", scoreBar(j.log.MoodScore)),
			fmt.Sprintf("Energy  %s", scoreBar(j.log.EnergyLevel)),
		)
		if j.log.FocusHours != nil {
			rows = append(rows, "Focus   "+highlightStyle.Render(formatHours(*j.log.FocusHours)))
		}
		if j.log.Notes != "" {
			rows = append(rows, "", subtitleStyle.Render(j.log.Notes))
		}
	}

	rows = append(rows, "", titleStyle.Render(fmt.Sprintf("Habits %d/%d", len(j.log.Habits), len(j.habits))))
	if len(j.habits) == 0 {
		rows = append(rows, mutedStyle.Render("No habits configured. Add some in Settings."))
	}
	for i, h := range j.habits {
		cursor := "  "
		style := normalItemStyle
		if i == j.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		box := mutedStyle.Render("[ ]")
		if j.log.HasHabit(h) {
			box = successStyle.Render("[x]")
		}
		rows = append(rows, cursor+box+" "+style.Render(h))
	}

	rows = append(rows, "", j.renderTodos())
	rows = append(rows, "", j.renderHistory(day))
	rows = append(rows, "", mutedStyle.Render("  ←/→: day  ↑/↓: select  space: toggle  n: add item  d: remove item  enter: edit entry"))
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (j journalModel) renderTodos() string {
	done := 0
	for _, td := range j.todos {
		if td.IsCompleted {
			done++
		}
	}
	rows := []string{titleStyle.Render(fmt.Sprintf("Checklist %d/%d", done, len(j.todos)))}
	if len(j.todos) == 0 {
		rows = append(rows, mutedStyle.Render("Nothing on the list. Press n to add an item."))
	}
	for i, td := range j.todos {
		cursor := "  "
		style := normalItemStyle
		if len(j.habits)+i == j.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		box := mutedStyle.Render("[ ]")
		if td.IsCompleted {
			box = successStyle.Render("[x]")
		}
		rows = append(rows, cursor+box+" "+style.Render(td.Title))
	}
	return strings.Join(rows, "\n")
}

// renderHistory lists the week ending on day.
func (j journalModel) renderHistory(day entity.Date) string {
	rows := []string{mutedStyle.Render(fmt.Sprintf("%-12s %-6s %-6s %-6s %s", "Date", "Mood", "Energy", "Focus", "Habits"))}
	for i := journalHistoryDays - 1; i >= 0; i-- {
		d := day.AddDays(-i)
		l, ok := j.board.Store().DailyLogOn(d)
		if !ok {
			rows = append(rows, mutedStyle.Render(fmt.Sprintf("%-12s %s", d, "·")))
			continue
		}
		focus := "-"
		if l.FocusHours != nil {
			focus = formatHours(*l.FocusHours)
		}
		rows = append(rows, fmt.Sprintf("%-12s %-6s %-6s %-6s %d",
			d, orDash(scoreString(l.MoodScore)), orDash(scoreString(l.EnergyLevel)), focus, len(l.Habits)))
	}
	return strings.Join(rows, "\n")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func scoreBar(v *int) string {
	if v == nil {
		return mutedStyle.Render("not rated")
	}
	style := successStyle
	switch {
	case *v <= 3:
		style = errorStyle
	case *v <= 6:
		style = warningStyle
	}
	return style.Render(strings.Repeat("█", *v)) + mutedStyle.Render(strings.Repeat("░", 10-*v)) +
		fmt.Sprintf(" %d/10", *v)
}
