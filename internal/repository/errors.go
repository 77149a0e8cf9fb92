package repository

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrDuplicateKey is returned when an insert violates a unique constraint.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrStaleRecord is returned when a conditional update finds the row
	// changed or removed since it was read.
	ErrStaleRecord = errors.New("stale record")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
