// Package filter turns board filter criteria into a task predicate.
package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sadopc/sprintboard/internal/entity"
)

// Spec holds independent filter criteria. Zero-valued fields impose no constraint.
type Spec struct {
	SearchText string
	Priority   entity.Priority
	Status     entity.Status
	TrackID    *int64
	SprintID   *int64
}

// Predicate reports whether a task passes a compiled Spec.
type Predicate func(entity.Task) bool

// Validate rejects unknown enum values.
func (s Spec) Validate() error {
	if s.Priority != "" && !s.Priority.Valid() {
		return &entity.ValidationError{Field: "priority", Reason: fmt.Sprintf("%q is not one of LOW, MEDIUM, HIGH", s.Priority)}
	}
	if s.Status != "" && !s.Status.Valid() {
		return &entity.ValidationError{Field: "status", Reason: fmt.Sprintf("%q is not one of TODO, IN_PROGRESS, DONE", s.Status)}
	}
	return nil
}

func (s Spec) IsEmpty() bool { return s.ActiveCount() == 0 }

// ActiveCount is the number of criteria that constrain the result.
func (s Spec) ActiveCount() int {
	n := 0
	if strings.TrimSpace(s.SearchText) != "" {
		n++
	}
	if s.Priority != "" {
		n++
	}
	if s.Status != "" {
		n++
	}
	if s.TrackID != nil {
		n++
	}
	if s.SprintID != nil {
		n++
	}
	return n
}

func (s Spec) String() string {
	var parts []string
	if q := strings.TrimSpace(s.SearchText); q != "" {
		parts = append(parts, fmt.Sprintf("search=%q", q))
	}
	if s.Priority != "" {
		parts = append(parts, "priority="+string(s.Priority))
	}
	if s.Status != "" {
		parts = append(parts, "status="+string(s.Status))
	}
	if s.TrackID != nil {
		parts = append(parts, fmt.Sprintf("track=%d", *s.TrackID))
	}
	if s.SprintID != nil {
		parts = append(parts, fmt.Sprintf("sprint=%d", *s.SprintID))
	}
	if len(parts) == 0 {
		return "no filters"
	}
	return strings.Join(parts, " ")
}

// Compile validates s and returns the AND of its non-empty criteria.
func (s Spec) Compile() (Predicate, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	var preds []Predicate

	if q := strings.ToLower(strings.TrimSpace(s.SearchText)); q != "" {
		preds = append(preds, func(t entity.Task) bool {
			return strings.Contains(strings.ToLower(t.Title), q) ||
				(t.Description != "" && strings.Contains(strings.ToLower(t.Description), q))
		})
	}
	if s.Priority != "" {
		want := s.Priority
		preds = append(preds, func(t entity.Task) bool { return t.Priority == want })
	}
	if s.Status != "" {
		want := s.Status
		preds = append(preds, func(t entity.Task) bool { return t.Status == want })
	}
	if s.TrackID != nil {
		want := *s.TrackID
		preds = append(preds, func(t entity.Task) bool { return t.TrackID != nil && *t.TrackID == want })
	}
	if s.SprintID != nil {
		want := *s.SprintID
		preds = append(preds, func(t entity.Task) bool { return t.SprintID != nil && *t.SprintID == want })
	}

	return func(t entity.Task) bool {
		for _, p := range preds {
			if !p(t) {
				return false
			}
		}
		return true
	}, nil
}

// Apply returns the tasks matching s in their original order.
func Apply(tasks []entity.Task, s Spec) ([]entity.Task, error) {
	pred, err := s.Compile()
	if err != nil {
		return nil, err
	}
	out := make([]entity.Task, 0, len(tasks))
	for _, t := range tasks {
		if pred(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// ParseSpec builds a Spec from query-style parameters: search, priority, status, track, sprint.
// Empty values are ignored.
func ParseSpec(params map[string]string) (Spec, error) {
	var s Spec
	s.SearchText = strings.TrimSpace(params["search"])

	if v := params["priority"]; v != "" {
		p, err := entity.ParsePriority(v)
		if err != nil {
			return Spec{}, err
		}
		s.Priority = p
	}
	if v := params["status"]; v != "" {
		st, err := entity.ParseStatus(v)
		if err != nil {
			return Spec{}, err
		}
		s.Status = st
	}

	var err error
	if s.TrackID, err = parseID("track", params["track"]); err != nil {
		return Spec{}, err
	}
	if s.SprintID, err = parseID("sprint", params["sprint"]); err != nil {
		return Spec{}, err
	}
	return s, nil
}

func parseID(field, v string) (*int64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return nil, &entity.ValidationError{Field: field, Reason: fmt.Sprintf("%q is not a valid id", v)}
	}
	return &id, nil
}
