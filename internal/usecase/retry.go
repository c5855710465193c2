package usecase

import (
	"errors"

	"github.com/rs/zerolog"

	"streamshare/internal/domain"
	"streamshare/internal/infra/metrics"
)

// retryOnConflict runs fn and, if it lost a concurrency race, runs it exactly
// once more. A second conflict is returned to the caller.
func retryOnConflict(log *zerolog.Logger, op string, fn func() error) error {
	err := fn()
	if !errors.Is(err, domain.ErrConcurrencyConflict) {
		return err
	}
	metrics.IncConflictRetry(op)
	log.Debug().Err(err).Str("op", op).Msg("concurrency conflict, retrying once")
	return fn()
}

// errorCode extracts the stable code of a domain error for metrics and logs.
func errorCode(err error) string {
	var de *domain.Error
	if errors.As(err, &de) {
		return de.Code
	}
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	}
	return "internal"
}
