package postgres

import (
	"errors"
	"fmt"

	"github.com/lib/pq"

	"vacancy_insight/internal/domain"
)

const (
	uniqueViolation     = pq.ErrorCode("23505")
	foreignKeyViolation = pq.ErrorCode("23503")
)

// classify tags a driver error with the domain error class it belongs to.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case uniqueViolation, foreignKeyViolation:
			return fmt.Errorf("%w: %w", domain.ErrConflict, err)
		}
	}
	return fmt.Errorf("%w: %w", domain.ErrDatabase, err)
}
