// Package seed loads the cooperative chart of accounts, the auto-sync account
// mappings and optional demo loans from a YAML file.
package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/odyssey-erp/koperasi/internal/accounting/accounts"
	"github.com/odyssey-erp/koperasi/internal/accounting/mappings"
	"github.com/odyssey-erp/koperasi/internal/accounting/shared"
	"github.com/odyssey-erp/koperasi/internal/integration"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// AccountSpec describes one chart-of-accounts row. Parent refers to a code
// listed earlier in the file or already stored.
type AccountSpec struct {
	Code     string `yaml:"code"`
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Category string `yaml:"category"`
	Group    bool   `yaml:"group"`
	Parent   string `yaml:"parent"`
}

// MappingSpec binds an integration key to an account code.
type MappingSpec struct {
	Module  string `yaml:"module"`
	Key     string `yaml:"key"`
	Account string `yaml:"account"`
}

// LoanSpec seeds the static loan directory used by the memory and sqlite drivers.
type LoanSpec struct {
	ID          int64  `yaml:"id"`
	MemberID    int64  `yaml:"member_id"`
	Principal   int64  `yaml:"principal"`
	Category    string `yaml:"category"`
	MonthlyRate string `yaml:"monthly_rate"`
}

type MemberSpec struct {
	ID   int64  `yaml:"id"`
	Name string `yaml:"name"`
}

// File is the seed document.
type File struct {
	Accounts []AccountSpec `yaml:"accounts"`
	Mappings []MappingSpec `yaml:"mappings"`
	Members  []MemberSpec  `yaml:"members"`
	Loans    []LoanSpec    `yaml:"loans"`
}

// Load reads and parses path.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a seed document, rejecting unknown keys.
func Parse(data []byte) (File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return File{}, fmt.Errorf("parse seed file: %w", err)
	}
	return f, nil
}

// Registry is the slice of the COA registry the seeder writes through.
type Registry interface {
	GetByCode(ctx context.Context, code string) (accounts.Account, error)
	Create(ctx context.Context, in accounts.CreateInput) (accounts.Account, error)
}

// Result counts what Apply changed.
type Result struct {
	AccountsCreated  int
	AccountsExisting int
	Mappings         int
	Loans            int
}

// Apply creates missing accounts in file order and upserts every mapping.
// Accounts already present by code are left untouched, so re-running a seed
// is safe.
func Apply(ctx context.Context, f File, registry Registry, mappingRepo mappings.Repository, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var res Result
	for _, spec := range f.Accounts {
		if _, err := registry.GetByCode(ctx, spec.Code); err == nil {
			res.AccountsExisting++
			continue
		} else if !errors.Is(err, shared.ErrAccountNotFound) {
			return res, fmt.Errorf("account %s: %w", spec.Code, err)
		}
		in := accounts.CreateInput{
			Code:     spec.Code,
			Name:     spec.Name,
			Type:     accounts.AccountType(strings.ToUpper(spec.Type)),
			Category: spec.Category,
			IsGroup:  spec.Group,
		}
		if spec.Parent != "" {
			parent, err := registry.GetByCode(ctx, spec.Parent)
			if err != nil {
				return res, fmt.Errorf("account %s parent %s: %w", spec.Code, spec.Parent, err)
			}
			in.ParentID = &parent.ID
		}
		if _, err := registry.Create(ctx, in); err != nil {
			return res, fmt.Errorf("account %s: %w", spec.Code, err)
		}
		res.AccountsCreated++
	}
	for _, m := range f.Mappings {
		acc, err := registry.GetByCode(ctx, m.Account)
		if err != nil {
			return res, fmt.Errorf("mapping %s/%s: %w", m.Module, m.Key, err)
		}
		if err := mappingRepo.Upsert(ctx, mappings.AccountMapping{Module: m.Module, Key: m.Key, AccountID: acc.ID}); err != nil {
			return res, fmt.Errorf("mapping %s/%s: %w", m.Module, m.Key, err)
		}
		res.Mappings++
	}
	logger.Info("seed applied",
		slog.Int("accounts_created", res.AccountsCreated),
		slog.Int("accounts_existing", res.AccountsExisting),
		slog.Int("mappings", res.Mappings))
	return res, nil
}

// FillDirectory registers the file's members and loans.
func FillDirectory(f File, dir *integration.StaticDirectory) (int, error) {
	for _, m := range f.Members {
		dir.PutMember(m.ID, m.Name)
	}
	for _, l := range f.Loans {
		rate, err := decimal.NewFromString(l.MonthlyRate)
		if err != nil {
			return 0, fmt.Errorf("loan %d monthly_rate %q: %w", l.ID, l.MonthlyRate, err)
		}
		dir.PutLoan(integration.Loan{ID: l.ID, MemberID: l.MemberID, Principal: l.Principal, Category: l.Category, MonthlyRate: rate})
	}
	return len(f.Loans), nil
}
