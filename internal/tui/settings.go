package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/sprintboard/internal/metrics"
	"github.com/sadopc/sprintboard/internal/store"
)

type settingsModel struct {
	store  *store.Store
	width  int
	height int

	settings   []store.Setting
	formActive bool
	form       *huh.Form

	// Form values as pointers (survive value copies)
	heatmapDays  *string
	sprintLength *string
	habits       *string
}

func newSettingsModel(s *store.Store) settingsModel {
	hd, sl, hb := "", "", ""
	return settingsModel{
		store:        s,
		heatmapDays:  &hd,
		sprintLength: &sl,
		habits:       &hb,
	}
}

func (s *settingsModel) setSize(w, h int) {
	s.width = w
	s.height = h
}

func (s *settingsModel) refresh() {
	settings, err := s.store.GetAllSettings()
	if err != nil {
		return
	}
	s.settings = settings
}

func (s settingsModel) update(msg tea.Msg) (settingsModel, tea.Cmd) {
	if s.formActive && s.form != nil {
		return s.updateForm(msg)
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, keys.Enter), key.Matches(msg, keys.Edit):
			return s.showForm()
		}
	}
	return s, nil
}

func positiveInt(v string) error {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return fmt.Errorf("enter a whole number above 0")
	}
	return nil
}

func (s settingsModel) showForm() (settingsModel, tea.Cmd) {
	*s.heatmapDays = strconv.Itoa(s.store.IntSetting(store.SettingHeatmapDays, metrics.DefaultHeatmapDays))
	*s.sprintLength = strconv.Itoa(s.store.IntSetting(store.SettingSprintLength, 14))
	habits, _ := s.store.Habits()
	*s.habits = strings.Join(habits, ", ")

	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Heatmap window (days)").Value(s.heatmapDays).Validate(positiveInt),
			huh.NewInput().Title("Default sprint length (days)").Value(s.sprintLength).Validate(positiveInt),
		).Title("Board"),
		huh.NewGroup(
			huh.NewText().Title("Habits (comma-separated)").Value(s.habits),
		).Title("Journal"),
	).WithShowHelp(true).WithShowErrors(true)

	s.formActive = true
	return s, s.form.Init()
}

func (s settingsModel) updateForm(msg tea.Msg) (settingsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			s.formActive = false
			s.form = nil
			return s, nil
		}
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}

	if s.form.State == huh.StateCompleted {
		s.formActive = false
		s.form = nil
		if err := s.saveSettings(); err != nil {
			return s, errorCmd("Settings", err)
		}
		s.refresh()
		changed := settingsChangedMsg{
			heatmapDays:  s.store.IntSetting(store.SettingHeatmapDays, metrics.DefaultHeatmapDays),
			sprintLength: s.store.IntSetting(store.SettingSprintLength, 14),
		}
		return s, func() tea.Msg { return changed }
	}

	return s, cmd
}

func (s settingsModel) saveSettings() error {
	if err := s.store.SetSetting(store.SettingHeatmapDays, strings.TrimSpace(*s.heatmapDays)); err != nil {
		return err
	}
	if err := s.store.SetSetting(store.SettingSprintLength, strings.TrimSpace(*s.sprintLength)); err != nil {
		return err
	}
	return s.store.SetHabits(splitHabits(*s.habits))
}

func splitHabits(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '\n' })
}

func (s settingsModel) view() string {
	w := s.width - 4

	if s.formActive && s.form != nil {
		title := titleStyle.Render("Settings")
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", s.form.View()),
		)
	}

	title := titleStyle.Render("Settings")
	hint := mutedStyle.Render("Press enter to edit settings")

	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")

	for _, setting := range s.settings {
		label := lipgloss.NewStyle().Width(24).Render(setting.Key)
		value := highlightStyle.Render(formatSettingValue(setting.Key, setting.Value))
		rows = append(rows, fmt.Sprintf("  %s %s", label, value))
	}

	rows = append(rows, "")
	rows = append(rows, hint)

	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func formatSettingValue(k, v string) string {
	switch k {
	case store.SettingHeatmapDays, store.SettingSprintLength:
		if n, err := strconv.Atoi(v); err == nil {
			return fmt.Sprintf("%d days", n)
		}
	case store.SettingHabits:
		v = strings.NewReplacer(`["`, "", `"]`, "", `","`, ", ", "[]", "none").Replace(v)
	}
	return v
}
