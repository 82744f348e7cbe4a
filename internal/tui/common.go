package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/sadopc/sprintboard/internal/board"
	"github.com/sadopc/sprintboard/internal/entity"
)

// viewState represents the currently active view.
type viewState int

const (
	viewDashboard viewState = iota
	viewBoard
	viewTracks
	viewJournal
	viewSettings
)

var viewNames = []string{"Dashboard", "Board", "Tracks", "Journal", "Settings"}

// --- Messages ---

type statusMsg struct {
	text    string
	isError bool
}

type tickMsg time.Time

type exportDoneMsg struct {
	path  string
	count int
}

// commitResultMsg carries a gateway answer back to the event loop for reconciliation.
type commitResultMsg struct {
	mutation *board.Mutation
	rec      entity.Record
	err      error
}

// settingsChangedMsg tells the other views to pick up new preferences.
type settingsChangedMsg struct {
	heatmapDays  int
	sprintLength int
}

// --- Helpers ---

func statusCmd(text string) tea.Cmd {
	return func() tea.Msg { return statusMsg{text: text} }
}

func errorCmd(prefix string, err error) tea.Cmd {
	return func() tea.Msg {
		return statusMsg{text: fmt.Sprintf("%s: %s", prefix, describeError(err)), isError: true}
	}
}

func describeError(err error) string {
	var verr *entity.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Reason
	case errors.Is(err, board.ErrCommitFailed):
		return "not saved (" + err.Error() + ")"
	}
	return err.Error()
}

// formatDue renders a due date relative to today, e.g. "3 days from now".
func formatDue(due *entity.Date, today entity.Date) string {
	if due == nil {
		return ""
	}
	if due.Equal(today) {
		return "due today"
	}
	return "due " + humanize.RelTime(due.Time(), today.Time(), "ago", "from now")
}

func formatHours(h float64) string {
	return fmt.Sprintf("%.1fh", h)
}

func truncate(s string, w int) string {
	r := []rune(s)
	if w <= 1 || len(r) <= w {
		return s
	}
	return string(r[:w-1]) + "…"
}

// parseOptionalDate accepts an empty string or YYYY-MM-DD.
func parseOptionalDate(s string) (*entity.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := entity.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func validateOptionalDate(s string) error {
	_, err := parseOptionalDate(s)
	return err
}

// parseOptionalFloat accepts an empty string or a non-negative number.
func parseOptionalFloat(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%q is not a number", s)
	}
	if v < 0 {
		return nil, fmt.Errorf("must be >= 0")
	}
	return &v, nil
}

func validateOptionalFloat(s string) error {
	_, err := parseOptionalFloat(s)
	return err
}

// idOption encodes an optional id for huh selects, where "" means none.
func idOption(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}

func parseIDOption(s string) *int64 {
	if s == "" {
		return nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &id
}

func dateString(d *entity.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func floatString(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
