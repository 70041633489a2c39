package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestRetryable(t *testing.T) {
	require.True(t, retryable(&pgconn.PgError{Code: "40001"}))
	require.True(t, retryable(fmt.Errorf("post: %w", &pgconn.PgError{Code: "40P01"})))
	require.False(t, retryable(&pgconn.PgError{Code: "23505"}))
	require.False(t, retryable(errors.New("boom")))
	require.False(t, retryable(nil))
}
