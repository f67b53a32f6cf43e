package postgres

import (
	"context"
	"errors"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"stockledger/internal/core/apperror"
)

// PostgreSQL SQLSTATE codes the repositories react to.
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgQueryCanceled        = "57014"
	pgNumericOutOfRange    = "22003"
	pgCheckViolation       = "23514"
)

// MapError converts driver failures into application errors.
// AppErrors and unknown errors pass through unchanged.
func MapError(err error) error {
	if err == nil || apperror.IsAppError(err) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected:
			return apperror.NewConcurrencyConflict(pgErr.TableName, pgErr.ConstraintName).WithCause(err)
		case pgQueryCanceled:
			return apperror.NewStorageUnavailable(err)
		case pgNumericOutOfRange:
			return apperror.NewInvalidQuantity("value out of range").WithCause(err)
		case pgCheckViolation:
			return apperror.NewValidation("value violates a constraint").
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		}
		return err
	}

	var connectErr *pgconn.ConnectError
	var netErr net.Error
	switch {
	case errors.As(err, &connectErr), errors.As(err, &netErr), pgconn.Timeout(err):
		return apperror.NewStorageUnavailable(err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperror.NewStorageUnavailable(err)
	}
	return err
}

// UniqueViolation reports the violated constraint of a unique-key error.
func UniqueViolation(err error) (constraint string, ok bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// ForeignKeyViolation reports the violated constraint of a foreign key error.
func ForeignKeyViolation(err error) (constraint string, ok bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// IsNoRows reports whether err means an empty result.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
