package store

import (
	"errors"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail and ErrDuplicateMobile are returned when an insert or
// update trips the corresponding unique index. They cover the race window
// between a service-level existence check and the actual insert.
var (
	ErrDuplicateEmail  = errors.New("email already exists")
	ErrDuplicateMobile = errors.New("mobile already exists")
)

const pqUniqueViolation = "23505"

func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != pqUniqueViolation {
		return err
	}
	switch pqErr.Constraint {
	case "idx_users_email":
		return ErrDuplicateEmail
	case "idx_users_mobile":
		return ErrDuplicateMobile
	}
	return err
}
