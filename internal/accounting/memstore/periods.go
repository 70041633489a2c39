package memstore

import (
	"context"
	"slices"
	"strings"

	"github.com/odyssey-erp/koperasi/internal/accounting/mappings"
	"github.com/odyssey-erp/koperasi/internal/accounting/periods"
	"github.com/odyssey-erp/koperasi/internal/accounting/shared"
)

type periodRepo struct{ s *Store }

func (r periodRepo) Status(_ context.Context, code string) (periods.PeriodStatus, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if state, ok := r.s.periods[code]; ok {
		return state.Status, nil
	}
	return periods.PeriodStatusOpen, nil
}

func (r periodRepo) Save(_ context.Context, state periods.State) (periods.State, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	state.UpdatedAt = r.s.now()
	r.s.periods[state.Code] = state
	return state, nil
}

func (r periodRepo) List(_ context.Context) ([]periods.State, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]periods.State, 0, len(r.s.periods))
	for _, state := range r.s.periods {
		out = append(out, state)
	}
	slices.SortFunc(out, func(a, b periods.State) int { return strings.Compare(a.Code, b.Code) })
	return out, nil
}

type mappingRepo struct{ s *Store }

func mappingKey(module, key string) string {
	return module + "/" + key
}

func (r mappingRepo) Get(_ context.Context, module, key string) (mappings.AccountMapping, error) {
	module, key = mappings.Normalize(module, key)
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	m, ok := r.s.mappings[mappingKey(module, key)]
	if !ok {
		return mappings.AccountMapping{}, shared.ErrMappingNotFound
	}
	return m, nil
}

func (r mappingRepo) Upsert(_ context.Context, m mappings.AccountMapping) error {
	m.Module, m.Key = mappings.Normalize(m.Module, m.Key)
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now()
	if existing, ok := r.s.mappings[mappingKey(m.Module, m.Key)]; ok {
		m.CreatedAt = existing.CreatedAt
	} else {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	r.s.mappings[mappingKey(m.Module, m.Key)] = m
	return nil
}

func (r mappingRepo) List(_ context.Context) ([]mappings.AccountMapping, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]mappings.AccountMapping, 0, len(r.s.mappings))
	for _, m := range r.s.mappings {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b mappings.AccountMapping) int {
		return strings.Compare(mappingKey(a.Module, a.Key), mappingKey(b.Module, b.Key))
	})
	return out, nil
}
