package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/odyssey-erp/koperasi/internal/accounting/shared"
)

// Service manages the chart of accounts.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Create registers a new account. NormalSide is always derived from Type.
func (s *Service) Create(ctx context.Context, in CreateInput) (Account, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.ToUpper(strings.TrimSpace(in.Category))
	if err := shared.ValidateStruct(in); err != nil {
		return Account{}, err
	}
	if err := s.checkParent(ctx, 0, in.ParentID); err != nil {
		return Account{}, err
	}
	acc := Account{
		Code:       in.Code,
		Name:       in.Name,
		Type:       in.Type,
		Category:   in.Category,
		NormalSide: NormalSideFor(in.Type),
		IsGroup:    in.IsGroup,
		ParentID:   in.ParentID,
		IsActive:   true,
	}
	created, err := s.repo.Create(ctx, acc)
	if err != nil {
		if errors.Is(err, shared.ErrDuplicateCode) {
			return Account{}, shared.NewFieldError("code", err)
		}
		return Account{}, err
	}
	s.logger.Info("account created", slog.Int64("account_id", created.ID), slog.String("code", created.Code))
	return created, nil
}

// Update applies a patch. Type, NormalSide and the group flag are frozen
// once any journal line references the account, and a group keeps its flag
// while it has children.
func (s *Service) Update(ctx context.Context, id int64, patch Patch) (Account, error) {
	if err := shared.ValidateStruct(patch); err != nil {
		return Account{}, err
	}
	if !patch.ClearParent && patch.ParentID != nil {
		if *patch.ParentID == id {
			return Account{}, shared.NewFieldError("parent_id", shared.ErrInvalidHierarchy)
		}
		if err := s.checkParent(ctx, id, patch.ParentID); err != nil {
			return Account{}, err
		}
	}
	updated, err := s.repo.Modify(ctx, id, func(current Account, usage Usage) (Account, error) {
		return applyPatch(current, patch, usage)
	})
	if err != nil {
		if errors.Is(err, shared.ErrDuplicateCode) {
			return Account{}, shared.NewFieldError("code", err)
		}
		return Account{}, err
	}
	return updated, nil
}

func applyPatch(current Account, patch Patch, usage Usage) (Account, error) {
	next := current
	if patch.Code != nil {
		next.Code = strings.TrimSpace(*patch.Code)
		if next.Code == "" {
			return Account{}, shared.NewFieldError("code", shared.ErrValidation)
		}
	}
	if patch.Name != nil {
		next.Name = strings.TrimSpace(*patch.Name)
		if next.Name == "" {
			return Account{}, shared.NewFieldError("name", shared.ErrValidation)
		}
	}
	if patch.Category != nil {
		next.Category = strings.ToUpper(strings.TrimSpace(*patch.Category))
	}
	if patch.Type != nil {
		next.Type = *patch.Type
		next.NormalSide = NormalSideFor(next.Type)
	}
	if patch.NormalSide != nil {
		next.NormalSide = *patch.NormalSide
	}
	if patch.IsGroup != nil {
		next.IsGroup = *patch.IsGroup
	}
	if patch.ClearParent {
		next.ParentID = nil
	} else if patch.ParentID != nil {
		next.ParentID = patch.ParentID
	}

	if current.IsGroup && !next.IsGroup && usage.Children > 0 {
		return Account{}, shared.NewFieldError("is_group", shared.ErrInvalidHierarchy)
	}
	if usage.LineRefs > 0 {
		switch {
		case next.Type != current.Type:
			return Account{}, shared.NewFieldError("type", shared.ErrImmutableField)
		case next.NormalSide != current.NormalSide:
			return Account{}, shared.NewFieldError("normal_side", shared.ErrImmutableField)
		case next.IsGroup && !current.IsGroup:
			return Account{}, shared.NewFieldError("is_group", shared.ErrImmutableField)
		}
	}
	return next, nil
}

// Deactivate hides the account from new postings. Calling it on an inactive
// account is a no-op.
func (s *Service) Deactivate(ctx context.Context, id int64) (Account, error) {
	var changed bool
	updated, err := s.repo.Modify(ctx, id, func(current Account, _ Usage) (Account, error) {
		changed = current.IsActive
		current.IsActive = false
		return current, nil
	})
	if err != nil {
		return Account{}, err
	}
	if changed {
		s.logger.Info("account deactivated", slog.Int64("account_id", id))
	}
	return updated, nil
}

// Delete removes an account that no journal line references.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	refs, err := s.repo.CountLineReferences(ctx, id)
	if err != nil {
		return err
	}
	if refs > 0 {
		return fmt.Errorf("account %d has %d journal lines: %w", id, refs, shared.ErrAccountInUse)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("account deleted", slog.Int64("account_id", id))
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) GetByCode(ctx context.Context, code string) (Account, error) {
	return s.repo.GetByCode(ctx, strings.TrimSpace(code))
}

// List returns accounts ordered by code.
func (s *Service) List(ctx context.Context, filter Filter) ([]Account, error) {
	accounts, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(accounts, func(i, j int) bool { return accounts[i].Code < accounts[j].Code })
	return accounts, nil
}

// Tree returns the chart of accounts as a forest ordered by code. Accounts
// whose parent no longer exists surface as roots.
func (s *Service) Tree(ctx context.Context) ([]*Node, error) {
	accounts, err := s.List(ctx, Filter{})
	if err != nil {
		return nil, err
	}
	return BuildTree(accounts), nil
}

// BuildTree arranges code-ordered accounts into parent/child nodes.
func BuildTree(accounts []Account) []*Node {
	nodes := make(map[int64]*Node, len(accounts))
	for _, acc := range accounts {
		nodes[acc.ID] = &Node{Account: acc}
	}
	var roots []*Node
	for _, acc := range accounts {
		node := nodes[acc.ID]
		if acc.ParentID != nil {
			if parent, ok := nodes[*acc.ParentID]; ok && parent.ID != acc.ID {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}
	return roots
}

func (s *Service) checkParent(ctx context.Context, selfID int64, parentID *int64) error {
	if parentID == nil {
		return nil
	}
	parent, err := s.repo.Get(ctx, *parentID)
	if err != nil {
		if errors.Is(err, shared.ErrAccountNotFound) {
			return shared.NewFieldError("parent_id", shared.ErrInvalidHierarchy)
		}
		return err
	}
	if !parent.IsGroup {
		return shared.NewFieldError("parent_id", shared.ErrInvalidHierarchy)
	}
	// walk up to reject cycles
	seen := map[int64]bool{parent.ID: true}
	for parent.ParentID != nil {
		if *parent.ParentID == selfID && selfID != 0 {
			return shared.NewFieldError("parent_id", shared.ErrInvalidHierarchy)
		}
		if seen[*parent.ParentID] {
			break
		}
		seen[*parent.ParentID] = true
		parent, err = s.repo.Get(ctx, *parent.ParentID)
		if err != nil {
			break
		}
	}
	return nil
}
