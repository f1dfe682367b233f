package db

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate value")
	// ErrVideoNotFound is returned when a playback write references a video
	// that no longer exists.
	ErrVideoNotFound = errors.New("video not found")
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return &DuplicateError{Constraint: pqErr.Constraint}
	}
	return err
}

// DuplicateError names the unique constraint that rejected a write.
type DuplicateError struct {
	Constraint string
}

func (e *DuplicateError) Error() string { return "duplicate value violates " + e.Constraint }

func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicate }

// int64s widens ids for pq.Array.
func int64s(ids []int) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
