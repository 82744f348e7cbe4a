package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sadopc/sprintboard/internal/entity"
)

const trackColumns = `id, title, description, category, deadline, is_active, created_at`

func (s *Store) CreateTrack(t entity.Track) (*entity.Track, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	now := s.stamp()
	res, err := s.db.Exec(
		`INSERT INTO tracks (title, description, category, deadline, is_active, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.Title, t.Description, t.Category, nullDate(t.Deadline), boolInt(t.IsActive), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert track: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.GetTrack(id)
}

func (s *Store) GetTrack(id int64) (*entity.Track, error) {
	t, err := scanTrack(s.db.QueryRow(`SELECT `+trackColumns+` FROM tracks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get track %d: %w", id, &entity.NotFoundError{Kind: entity.KindTrack, ID: id})
	}
	if err != nil {
		return nil, fmt.Errorf("get track %d: %w", id, err)
	}
	return &t, nil
}

func (s *Store) ListTracks(f TrackFilter) ([]entity.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE 1=1`
	var args []any
	if f.Active != nil {
		query += ` AND is_active = ?`
		args = append(args, boolInt(*f.Active))
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	defer rows.Close()

	var tracks []entity.Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// UpdateTrack writes every editable column of t.
func (s *Store) UpdateTrack(t entity.Track) error {
	if err := t.Validate(); err != nil {
		return err
	}
	res, err := s.db.Exec(
		`UPDATE tracks SET title = ?, description = ?, category = ?, deadline = ?, is_active = ?, updated_at = ? WHERE id = ?`,
		t.Title, t.Description, t.Category, nullDate(t.Deadline), boolInt(t.IsActive), s.stamp(), t.ID,
	)
	return affected(res, err, entity.KindTrack, t.ID)
}

// DeleteTrack removes a track; sprints and tasks referencing it are detached by the schema.
func (s *Store) DeleteTrack(id int64) error {
	res, err := s.db.Exec(`DELETE FROM tracks WHERE id = ?`, id)
	return affected(res, err, entity.KindTrack, id)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTrack(r scanner) (entity.Track, error) {
	var t entity.Track
	var deadline sql.NullString
	var active int
	var createdAt string
	if err := r.Scan(&t.ID, &t.Title, &t.Description, &t.Category, &deadline, &active, &createdAt); err != nil {
		return entity.Track{}, err
	}
	t.Deadline = scanDate(deadline)
	t.IsActive = active == 1
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return t, nil
}

// affected turns a write that matched no row into a NotFoundError.
func affected(res sql.Result, err error, kind entity.Kind, id int64) error {
	if err != nil {
		return fmt.Errorf("write %s %d: %w", kind, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("write %s %d: %w", kind, id, err)
	}
	if n == 0 {
		return &entity.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}
