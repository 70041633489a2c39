package shared

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type execRecorder struct {
	sql  string
	args []any
}

func (e *execRecorder) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	e.sql, e.args = sql, args
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func TestAuditLoggerRecord(t *testing.T) {
	rec := &execRecorder{}
	logger := NewAuditLogger(rec)

	err := logger.Record(context.Background(), AuditLog{ActorID: 7, Action: "journal.post", Entity: "journal_entry", EntityID: "12"})
	require.NoError(t, err)
	require.Contains(t, rec.sql, "INSERT INTO audit_logs")
	require.Len(t, rec.args, 6)
	require.Nil(t, rec.args[4])
	require.Nil(t, rec.args[5].(*time.Time))

	at := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	err = logger.Record(context.Background(), AuditLog{Action: "period.close", Entity: "period", EntityID: "2024-03", Meta: map[string]any{"status": "CLOSED"}, At: at})
	require.NoError(t, err)
	require.JSONEq(t, `{"status":"CLOSED"}`, string(rec.args[4].([]byte)))
	require.Equal(t, at, *rec.args[5].(*time.Time))

	require.ErrorIs(t, logger.Record(context.Background(), AuditLog{Action: "x"}), ErrIncompleteAudit)
}

func TestLogAuditorWritesStructuredLine(t *testing.T) {
	var buf bytes.Buffer
	auditor := NewLogAuditor(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, auditor.Record(context.Background(), AuditLog{ActorID: 3, Action: "journal.reverse", Entity: "journal_entry", EntityID: "9"}))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "journal.reverse", line["msg"])
	require.Equal(t, "audit", line["channel"])
	require.Equal(t, "9", line["entity_id"])
	require.NotContains(t, line, "meta")

	require.ErrorIs(t, auditor.Record(context.Background(), AuditLog{}), ErrIncompleteAudit)
}
