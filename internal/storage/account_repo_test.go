package storage

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"shipdocs/internal/util"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestFormatBOLNumber(t *testing.T) {
	now := time.Date(2025, 3, 5, 14, 0, 0, 0, time.UTC)
	require.Equal(t, "2025030501", FormatBOLNumber(now, 1))
	require.Equal(t, "2025030512", FormatBOLNumber(now, 12))
	require.Equal(t, "20250305123", FormatBOLNumber(now, 123))
}

func TestNotFoundWrapsNoRows(t *testing.T) {
	err := notFound("get document", pgx.ErrNoRows)
	require.True(t, errors.Is(err, util.ErrNotFound))
	require.Contains(t, err.Error(), "get document")

	other := notFound("get document", errors.New("boom"))
	require.False(t, errors.Is(other, util.ErrNotFound))
}

func TestIsUniqueViolation(t *testing.T) {
	require.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	require.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	require.False(t, isUniqueViolation(errors.New("plain")))
}

func TestJSONArg(t *testing.T) {
	require.Nil(t, jsonArg(nil))
	require.Equal(t, `{"a":1}`, jsonArg([]byte(`{"a":1}`)))
	require.Nil(t, rawJSON(""))
}
