package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sadopc/sprintboard/internal/entity"
)

type jsonExport struct {
	ExportedAt string     `json:"exported_at"`
	Count      int        `json:"count"`
	Tasks      []jsonTask `json:"tasks"`
}

type jsonTask struct {
	ID             int64    `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	Status         string   `json:"status"`
	Priority       string   `json:"priority"`
	TrackID        *int64   `json:"track_id"`
	Track          string   `json:"track,omitempty"`
	SprintID       *int64   `json:"sprint_id"`
	Sprint         string   `json:"sprint,omitempty"`
	EstimatedHours *float64 `json:"estimated_hours"`
	ActualHours    *float64 `json:"actual_hours"`
	DueDate        string   `json:"due_date,omitempty"`
	CompletedAt    string   `json:"completed_at,omitempty"`
}

func ToJSON(tasks []entity.Task, names Names, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create json file: %w", err)
	}
	defer f.Close()
	return WriteJSON(f, tasks, names)
}

func WriteJSON(w io.Writer, tasks []entity.Task, names Names) error {
	export := jsonExport{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Count:      len(tasks),
		Tasks:      []jsonTask{},
	}

	for _, t := range tasks {
		export.Tasks = append(export.Tasks, jsonTask{
			ID:             t.ID,
			Title:          t.Title,
			Description:    t.Description,
			Status:         string(t.Status),
			Priority:       string(t.Priority),
			TrackID:        t.TrackID,
			Track:          names.track(t.TrackID),
			SprintID:       t.SprintID,
			Sprint:         names.sprint(t.SprintID),
			EstimatedHours: t.EstimatedHours,
			ActualHours:    t.ActualHours,
			DueDate:        formatDate(t.DueDate),
			CompletedAt:    formatTime(t.CompletedAt),
		})
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}
