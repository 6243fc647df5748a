package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func mapPgErrorToServiceError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return newServiceError(http.StatusNotFound, "FUNCTREE_NODE_NOT_FOUND", "not found", err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return newServiceError(http.StatusInternalServerError, "FUNCTREE_INTERNAL", "internal error", err)
	}

	switch pgErr.Code {
	case "23503": // foreign_key_violation
		recordWriteConflict("foreign_key")
		return newServiceError(http.StatusUnprocessableEntity, "FUNCTREE_PARENT_NOT_FOUND", "parent node not found", err)
	case "23514": // check_violation
		recordWriteConflict("check")
		return newServiceError(http.StatusUnprocessableEntity, "FUNCTREE_INVALID_NODE", "node violates a table constraint", err)
	case "40001": // serialization_failure
		recordWriteConflict("serialization")
		return newServiceError(http.StatusConflict, "FUNCTREE_WRITE_CONFLICT", "concurrent tree update, retry the request", err)
	case "40P01": // deadlock_detected
		recordWriteConflict("deadlock")
		return newServiceError(http.StatusConflict, "FUNCTREE_WRITE_CONFLICT", "concurrent tree update, retry the request", err)
	default:
		return newServiceError(http.StatusInternalServerError, "FUNCTREE_INTERNAL", fmt.Sprintf("database error (%s)", pgErr.Code), err)
	}
}
