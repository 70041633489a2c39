package periods

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	internalShared "github.com/odyssey-erp/koperasi/internal/shared"
)

type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

type Service struct {
	repo   Repository
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Status returns the stored status of p.
func (s *Service) Status(ctx context.Context, p Period) (PeriodStatus, error) {
	return s.repo.Status(ctx, p.Code())
}

func (s *Service) List(ctx context.Context) ([]State, error) {
	return s.repo.List(ctx)
}

// Close soft-closes the period.
func (s *Service) Close(ctx context.Context, code string, actorID int64) (State, error) {
	return s.transition(ctx, code, PeriodStatusClosed, actorID)
}

// Lock hard-closes the period; posting into it is rejected.
func (s *Service) Lock(ctx context.Context, code string, actorID int64) (State, error) {
	return s.transition(ctx, code, PeriodStatusLocked, actorID)
}

// Unlock reopens a closed or locked period.
func (s *Service) Unlock(ctx context.Context, code string, actorID int64) (State, error) {
	return s.transition(ctx, code, PeriodStatusOpen, actorID)
}

func (s *Service) transition(ctx context.Context, code string, target PeriodStatus, actorID int64) (State, error) {
	p, err := Parse(code)
	if err != nil {
		return State{}, err
	}
	current, err := s.repo.Status(ctx, p.Code())
	if err != nil {
		return State{}, err
	}
	if err := ValidateTransition(current, target); err != nil {
		return State{}, err
	}
	state, err := s.repo.Save(ctx, State{Code: p.Code(), Status: target, UpdatedBy: actorID, UpdatedAt: s.now()})
	if err != nil {
		return State{}, fmt.Errorf("save period %s: %w", p.Code(), err)
	}
	s.logger.Info("period status changed",
		slog.String("period", p.Code()),
		slog.String("from", string(current)),
		slog.String("to", string(target)),
		slog.Int64("actor_id", actorID))
	if s.audit != nil {
		_ = s.audit.Record(ctx, internalShared.AuditLog{
			ActorID:  actorID,
			Action:   "period." + string(target),
			Entity:   "period",
			EntityID: p.Code(),
			Meta:     map[string]any{"from": string(current)},
			At:       s.now(),
		})
	}
	return state, nil
}
