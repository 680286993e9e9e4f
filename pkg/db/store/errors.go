package store

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Error kinds returned by LibraryStore implementations. Callers should test with errors.Is.
var (
	// A uniqueness or referential-integrity breach on a mutating call
	ErrConstraintViolation = errors.New("store: constraint violation")
	// Only returned by informational lookups; most reads degrade to empty results
	ErrNotFound = errors.New("store: record not found")
	// The underlying database cannot be opened or reached
	ErrStorageUnavailable = errors.New("store: storage unavailable")
)

func constraintViolation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConstraintViolation, fmt.Sprintf(format, args...))
}

// translateError maps driver errors onto the store error kinds
func translateError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrConstraintViolation), errors.Is(err, ErrNotFound), errors.Is(err, ErrStorageUnavailable):
		return err
	case errors.Is(err, gorm.ErrDuplicatedKey), errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: %v", ErrConstraintViolation, err)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case strings.Contains(err.Error(), "constraint failed"):
		return fmt.Errorf("%w: %v", ErrConstraintViolation, err)
	}

	return err
}
