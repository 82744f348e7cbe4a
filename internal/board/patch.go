package board

import (
	"fmt"
	"strconv"

	"github.com/sadopc/sprintboard/internal/entity"
)

// Patch values arrive loosely typed from forms, the CLI and tests. The
// decoders below are shared by the board, which validates a patch before it
// commits, and by gateways, which apply it. Pointer results are always fresh
// copies; nil means the field is cleared.

func PatchString(field string, v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case *string:
		if s == nil {
			return "", nil
		}
		return *s, nil
	case nil:
		return "", nil
	}
	return "", mismatch(field, "text", v)
}

func PatchBool(field string, v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case *bool:
		if b != nil {
			return *b, nil
		}
	case string:
		if parsed, err := strconv.ParseBool(b); err == nil {
			return parsed, nil
		}
	}
	return false, mismatch(field, "bool", v)
}

func PatchStatus(v any) (entity.Status, error) {
	switch s := v.(type) {
	case entity.Status:
		return entity.ParseStatus(string(s))
	case string:
		return entity.ParseStatus(s)
	}
	return "", mismatch("status", "status", v)
}

func PatchPriority(v any) (entity.Priority, error) {
	switch p := v.(type) {
	case entity.Priority:
		return entity.ParsePriority(string(p))
	case string:
		return entity.ParsePriority(p)
	}
	return "", mismatch("priority", "priority", v)
}

// PatchDate accepts a Date, a *Date or a YYYY-MM-DD string. Zero dates and
// empty strings clear the field.
func PatchDate(field string, v any) (*entity.Date, error) {
	switch d := v.(type) {
	case nil:
		return nil, nil
	case entity.Date:
		if d.IsZero() {
			return nil, nil
		}
		return &d, nil
	case *entity.Date:
		if d == nil || d.IsZero() {
			return nil, nil
		}
		c := *d
		return &c, nil
	case string:
		if d == "" {
			return nil, nil
		}
		parsed, err := entity.ParseDate(d)
		if err != nil {
			return nil, &entity.ValidationError{Field: field, Reason: fmt.Sprintf("%q is not a YYYY-MM-DD date", d)}
		}
		return &parsed, nil
	}
	return nil, mismatch(field, "date", v)
}

func PatchID(field string, v any) (*int64, error) {
	switch id := v.(type) {
	case nil:
		return nil, nil
	case int64:
		return &id, nil
	case int:
		x := int64(id)
		return &x, nil
	case *int64:
		if id == nil {
			return nil, nil
		}
		x := *id
		return &x, nil
	}
	return nil, mismatch(field, "id", v)
}

func PatchFloat(field string, v any) (*float64, error) {
	switch f := v.(type) {
	case nil:
		return nil, nil
	case float64:
		return &f, nil
	case int:
		x := float64(f)
		return &x, nil
	case int64:
		x := float64(f)
		return &x, nil
	case *float64:
		if f == nil {
			return nil, nil
		}
		x := *f
		return &x, nil
	}
	return nil, mismatch(field, "number", v)
}

func PatchInt(field string, v any) (*int, error) {
	switch n := v.(type) {
	case nil:
		return nil, nil
	case int:
		return &n, nil
	case int64:
		x := int(n)
		return &x, nil
	case *int:
		if n == nil {
			return nil, nil
		}
		x := *n
		return &x, nil
	}
	return nil, mismatch(field, "integer", v)
}

// PatchStrings decodes a habit list, trimmed and without duplicates.
func PatchStrings(field string, v any) ([]string, error) {
	switch s := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return entity.NormalizeHabits(s), nil
	}
	return nil, mismatch(field, "list of text", v)
}

func mismatch(field, want string, v any) error {
	return &entity.ValidationError{Field: field, Reason: fmt.Sprintf("expected %s, got %T", want, v)}
}
