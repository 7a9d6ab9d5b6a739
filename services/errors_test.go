package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestStorageErrClassifiesPgError(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "uq_mcp_date_hour", Message: "duplicate key"}
	err := storageErr("upsert price", fmt.Errorf("exec: %w", pgErr))

	var se *StorageError
	assert.True(t, errors.As(err, &se))
	assert.Equal(t, "23505", se.Code)
	assert.Equal(t, "uq_mcp_date_hour", se.Constraint)
	assert.ErrorIs(t, err, pgErr)
	assert.Contains(t, err.Error(), "sqlstate 23505")
}

func TestStorageErrPassesTypedErrors(t *testing.T) {
	for _, in := range []error{
		&ValidationError{Field: "date", Reason: "bad"},
		&NotFoundError{Resource: "week", Key: "2025-10-20"},
		&ConflictError{Resource: "forecast", Key: "x", Reason: "exists"},
		context.Canceled,
	} {
		assert.Same(t, in, storageErr("op", in))
	}
	assert.Nil(t, storageErr("op", nil))
}

func TestErrorPredicates(t *testing.T) {
	assert.True(t, IsValidation(invalid("startDate", "required")))
	assert.True(t, IsNotFound(fmt.Errorf("wrap: %w", &NotFoundError{Resource: "week", Key: "k"})))
	assert.True(t, IsConflict(&ConflictError{Resource: "forecast", Key: "k"}))
	assert.False(t, IsNotFound(errors.New("plain")))
	assert.Equal(t, "invalid startDate: required", invalid("startDate", "required").Error())
}
