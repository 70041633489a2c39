package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrIncompleteAudit rejects records missing action, entity or entity id.
var ErrIncompleteAudit = errors.New("audit: action, entity and entity_id are required")

// AuditLog is one audit trail record. A zero At means "now" at the store.
type AuditLog struct {
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

func (l AuditLog) check() error {
	if l.Action == "" || l.Entity == "" || l.EntityID == "" {
		return ErrIncompleteAudit
	}
	return nil
}

// Execer is satisfied by *pgxpool.Pool and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AuditLogger appends records to the audit_logs table.
type AuditLogger struct {
	db Execer
}

func NewAuditLogger(db Execer) *AuditLogger {
	return &AuditLogger{db: db}
}

const insertAudit = `INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`

// Record inserts log.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if err := log.check(); err != nil {
		return err
	}
	var meta []byte
	if len(log.Meta) > 0 {
		var err error
		if meta, err = json.Marshal(log.Meta); err != nil {
			return fmt.Errorf("audit: encode meta: %w", err)
		}
	}
	var at *time.Time
	if !log.At.IsZero() {
		at = &log.At
	}
	if _, err := l.db.Exec(ctx, insertAudit, log.ActorID, log.Action, log.Entity, log.EntityID, meta, at); err != nil {
		return fmt.Errorf("audit: insert %s %s/%s: %w", log.Action, log.Entity, log.EntityID, err)
	}
	return nil
}

// LogAuditor emits audit records as structured log lines, for stores
// without an audit_logs table.
type LogAuditor struct {
	logger *slog.Logger
}

func NewLogAuditor(logger *slog.Logger) *LogAuditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogAuditor{logger: logger.With(slog.String("channel", "audit"))}
}

func (a *LogAuditor) Record(ctx context.Context, log AuditLog) error {
	if err := log.check(); err != nil {
		return err
	}
	attrs := []slog.Attr{
		slog.Int64("actor_id", log.ActorID),
		slog.String("entity", log.Entity),
		slog.String("entity_id", log.EntityID),
	}
	if len(log.Meta) > 0 {
		attrs = append(attrs, slog.Any("meta", log.Meta))
	}
	if !log.At.IsZero() {
		attrs = append(attrs, slog.Time("at", log.At))
	}
	a.logger.LogAttrs(ctx, slog.LevelInfo, log.Action, attrs...)
	return nil
}
