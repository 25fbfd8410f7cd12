package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/yourorg/vetting-worker/internal/model"
)

func TestIsInsufficientPrivilege(t *testing.T) {
	assert.True(t, IsInsufficientPrivilege(fmt.Errorf("ensure schema: %w", &pgconn.PgError{Code: "42501"})))
	assert.False(t, IsInsufficientPrivilege(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsInsufficientPrivilege(errors.New("boom")))
}

func TestNotFound(t *testing.T) {
	assert.ErrorIs(t, notFound(pgx.ErrNoRows), model.ErrNotFound)
	other := errors.New("conn reset")
	assert.Equal(t, other, notFound(other))
}

func TestNullableString(t *testing.T) {
	assert.Nil(t, nullableString(""))
	assert.Equal(t, "x", *nullableString("x"))
	assert.Equal(t, "", deref(nil))
}
