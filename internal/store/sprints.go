package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sadopc/sprintboard/internal/entity"
)

const sprintColumns = `id, name, description, track_id, start_date, end_date, is_active, created_at`

func (s *Store) CreateSprint(sp entity.Sprint) (*entity.Sprint, error) {
	if err := sp.Validate(); err != nil {
		return nil, err
	}
	now := s.stamp()
	res, err := s.db.Exec(
		`INSERT INTO sprints (name, description, track_id, start_date, end_date, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sp.Name, sp.Description, sp.TrackID, sp.StartDate.String(), sp.EndDate.String(), boolInt(sp.IsActive), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert sprint: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.GetSprint(id)
}

func (s *Store) GetSprint(id int64) (*entity.Sprint, error) {
	sp, err := scanSprint(s.db.QueryRow(`SELECT `+sprintColumns+` FROM sprints WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get sprint %d: %w", id, &entity.NotFoundError{Kind: entity.KindSprint, ID: id})
	}
	if err != nil {
		return nil, fmt.Errorf("get sprint %d: %w", id, err)
	}
	return &sp, nil
}

func (s *Store) ListSprints(f SprintFilter) ([]entity.Sprint, error) {
	query := `SELECT ` + sprintColumns + ` FROM sprints WHERE 1=1`
	var args []any

	if f.TrackID != nil {
		query += ` AND track_id = ?`
		args = append(args, *f.TrackID)
	}
	if f.Active != nil {
		query += ` AND is_active = ?`
		args = append(args, boolInt(*f.Active))
	}
	if f.CurrentOn != nil {
		query += ` AND start_date <= ? AND end_date >= ?`
		day := f.CurrentOn.String()
		args = append(args, day, day)
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sprints: %w", err)
	}
	defer rows.Close()

	var sprints []entity.Sprint
	for rows.Next() {
		sp, err := scanSprint(rows)
		if err != nil {
			return nil, err
		}
		sprints = append(sprints, sp)
	}
	return sprints, rows.Err()
}

func (s *Store) UpdateSprint(sp entity.Sprint) error {
	if err := sp.Validate(); err != nil {
		return err
	}
	res, err := s.db.Exec(
		`UPDATE sprints SET name = ?, description = ?, track_id = ?, start_date = ?, end_date = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		sp.Name, sp.Description, sp.TrackID, sp.StartDate.String(), sp.EndDate.String(), boolInt(sp.IsActive), s.stamp(), sp.ID,
	)
	return affected(res, err, entity.KindSprint, sp.ID)
}

// DeleteSprint removes a sprint; its tasks are detached by the schema.
func (s *Store) DeleteSprint(id int64) error {
	res, err := s.db.Exec(`DELETE FROM sprints WHERE id = ?`, id)
	return affected(res, err, entity.KindSprint, id)
}

func scanSprint(r scanner) (entity.Sprint, error) {
	var sp entity.Sprint
	var trackID sql.NullInt64
	var start, end, createdAt string
	var active int
	if err := r.Scan(&sp.ID, &sp.Name, &sp.Description, &trackID, &start, &end, &active, &createdAt); err != nil {
		return entity.Sprint{}, err
	}
	sp.TrackID = scanID(trackID)
	var err error
	if sp.StartDate, err = entity.ParseDate(start); err != nil {
		return entity.Sprint{}, fmt.Errorf("sprint %d start_date: %w", sp.ID, err)
	}
	if sp.EndDate, err = entity.ParseDate(end); err != nil {
		return entity.Sprint{}, fmt.Errorf("sprint %d end_date: %w", sp.ID, err)
	}
	sp.IsActive = active == 1
	sp.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return sp, nil
}
