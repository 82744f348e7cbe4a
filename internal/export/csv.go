package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/sadopc/sprintboard/internal/entity"
)

// Names resolves track and sprint ids to display names.
type Names struct {
	Tracks  map[int64]string
	Sprints map[int64]string
}

func NamesFrom(s *entity.Store) Names {
	n := Names{Tracks: make(map[int64]string), Sprints: make(map[int64]string)}
	for _, t := range s.Tracks() {
		n.Tracks[t.ID] = t.Title
	}
	for _, sp := range s.Sprints() {
		n.Sprints[sp.ID] = sp.Name
	}
	return n
}

func (n Names) track(id *int64) string {
	if id == nil {
		return ""
	}
	if name, ok := n.Tracks[*id]; ok {
		return name
	}
	return "Unknown"
}

func (n Names) sprint(id *int64) string {
	if id == nil {
		return ""
	}
	if name, ok := n.Sprints[*id]; ok {
		return name
	}
	return "Unknown"
}

func ToCSV(tasks []entity.Task, names Names, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()
	return WriteCSV(f, tasks, names)
}

func WriteCSV(out io.Writer, tasks []entity.Task, names Names) error {
	w := csv.NewWriter(out)

	if err := w.Write([]string{"ID", "Title", "Status", "Priority", "Track", "Sprint", "Estimated Hours", "Actual Hours", "Due Date", "Completed At", "Description"}); err != nil {
		return err
	}

	for _, t := range tasks {
		row := []string{
			strconv.FormatInt(t.ID, 10),
			t.Title,
			string(t.Status),
			string(t.Priority),
			names.track(t.TrackID),
			names.sprint(t.SprintID),
			formatHours(t.EstimatedHours),
			formatHours(t.ActualHours),
			formatDate(t.DueDate),
			formatTime(t.CompletedAt),
			t.Description,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func formatHours(h *float64) string {
	if h == nil {
		return ""
	}
	return strconv.FormatFloat(*h, 'f', -1, 64)
}

func formatDate(d *entity.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Local().Format(time.RFC3339)
}
