package memstore

import (
	"context"
	"slices"
	"strings"

	"github.com/odyssey-erp/koperasi/internal/accounting/accounts"
	"github.com/odyssey-erp/koperasi/internal/accounting/shared"
)

type accountRepo struct{ s *Store }

func (r accountRepo) Create(_ context.Context, acc accounts.Account) (accounts.Account, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.codeTaken(acc.Code, 0) {
		return accounts.Account{}, shared.ErrDuplicateCode
	}
	if acc.ParentID != nil {
		if _, ok := s.accounts[*acc.ParentID]; !ok {
			return accounts.Account{}, shared.ErrInvalidHierarchy
		}
	}
	s.accountSeq++
	acc.ID = s.accountSeq
	acc.CreatedAt = s.now()
	acc.UpdatedAt = acc.CreatedAt
	s.accounts[acc.ID] = acc
	return acc, nil
}

func (r accountRepo) Get(_ context.Context, id int64) (accounts.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	acc, ok := r.s.accounts[id]
	if !ok {
		return accounts.Account{}, shared.ErrAccountNotFound
	}
	return acc, nil
}

func (r accountRepo) GetByCode(_ context.Context, code string) (accounts.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, acc := range r.s.accounts {
		if strings.EqualFold(acc.Code, code) {
			return acc, nil
		}
	}
	return accounts.Account{}, shared.ErrAccountNotFound
}

func (r accountRepo) Modify(_ context.Context, id int64, apply func(accounts.Account, accounts.Usage) (accounts.Account, error)) (accounts.Account, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.accounts[id]
	if !ok {
		return accounts.Account{}, shared.ErrAccountNotFound
	}
	acc, err := apply(current, accounts.Usage{LineRefs: s.lineRefs(id), Children: s.children(id)})
	if err != nil {
		return accounts.Account{}, err
	}
	acc.ID = id
	if s.codeTaken(acc.Code, id) {
		return accounts.Account{}, shared.ErrDuplicateCode
	}
	if acc.ParentID != nil {
		if _, ok := s.accounts[*acc.ParentID]; !ok {
			return accounts.Account{}, shared.ErrInvalidHierarchy
		}
	}
	acc.CreatedAt = current.CreatedAt
	acc.UpdatedAt = s.now()
	s.accounts[id] = acc
	return acc, nil
}

func (r accountRepo) Delete(_ context.Context, id int64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return shared.ErrAccountNotFound
	}
	if s.lineRefs(id) > 0 {
		return shared.ErrAccountInUse
	}
	delete(s.accounts, id)
	for childID, child := range s.accounts {
		if child.ParentID != nil && *child.ParentID == id {
			child.ParentID = nil
			s.accounts[childID] = child
		}
	}
	return nil
}

func (r accountRepo) List(_ context.Context, filter accounts.Filter) ([]accounts.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]accounts.Account, 0, len(r.s.accounts))
	for _, acc := range r.s.accounts {
		if filter.Match(acc) {
			out = append(out, acc)
		}
	}
	slices.SortFunc(out, func(a, b accounts.Account) int { return strings.Compare(a.Code, b.Code) })
	return out, nil
}

func (r accountRepo) CountLineReferences(_ context.Context, id int64) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.lineRefs(id), nil
}

func (s *Store) children(id int64) int64 {
	var n int64
	for _, acc := range s.accounts {
		if acc.ParentID != nil && *acc.ParentID == id {
			n++
		}
	}
	return n
}

func (s *Store) codeTaken(code string, exceptID int64) bool {
	for id, acc := range s.accounts {
		if id != exceptID && strings.EqualFold(acc.Code, code) {
			return true
		}
	}
	return false
}
