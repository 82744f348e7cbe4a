package board

import (
	"context"
	"errors"
	"fmt"

	"github.com/sadopc/sprintboard/internal/entity"
)

// Gateway is the persistence boundary the board commits through.
// Any returned error is treated as a failed commit.
type Gateway interface {
	Fetch(ctx context.Context, kind entity.Kind, q Query) ([]entity.Record, error)
	Create(ctx context.Context, rec entity.Record) (entity.Record, error)
	Update(ctx context.Context, kind entity.Kind, id int64, patch Patch) (entity.Record, error)
	Delete(ctx context.Context, kind entity.Kind, id int64) error
}

// Query narrows a Fetch. Keys are gateway specific; an empty Query fetches everything.
type Query map[string]string

// Patch is a partial update keyed by field name (e.g. "status", "due_date").
type Patch map[string]any

// ErrCommitFailed matches every *CommitError.
var ErrCommitFailed = errors.New("commit failed")

// CommitError reports a gateway call that was rejected after, or instead of, a local change.
type CommitError struct {
	Op   string
	Kind entity.Kind
	ID   int64
	Err  error
}

func (e *CommitError) Error() string {
	if e.ID == 0 {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s %d: %v", e.Op, e.Kind, e.ID, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

func (e *CommitError) Is(target error) bool { return target == ErrCommitFailed }

type idempotencyKey struct{}

// WithIdempotencyKey tags a gateway call so a repeated commit is applied once.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKey{}, key)
}

// IdempotencyKey returns the key set by WithIdempotencyKey, if any.
func IdempotencyKey(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(idempotencyKey{}).(string)
	return key, ok && key != ""
}

// CommitOrder places a status commit among the other moves of the same board.
// Seq grows with every move a board makes; Session changes with every board.
type CommitOrder struct {
	Session string
	Seq     uint64
}

type commitOrderKey struct{}

// WithCommitOrder tags a status commit so a gateway can refuse one that was
// overtaken by a later move of the same task.
func WithCommitOrder(ctx context.Context, o CommitOrder) context.Context {
	return context.WithValue(ctx, commitOrderKey{}, o)
}

// CommitOrderFrom returns the order set by WithCommitOrder, if any.
func CommitOrderFrom(ctx context.Context) (CommitOrder, bool) {
	o, ok := ctx.Value(commitOrderKey{}).(CommitOrder)
	return o, ok && o.Session != ""
}
