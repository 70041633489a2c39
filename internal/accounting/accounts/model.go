package accounts

import (
	"strings"
	"time"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Valid reports whether t is one of the five account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// NormalSide is the side on which an account's balance increases.
type NormalSide string

const (
	NormalDebit  NormalSide = "DEBIT"
	NormalCredit NormalSide = "CREDIT"
)

// NormalSideFor derives the normal balance side from the account type.
func NormalSideFor(t AccountType) NormalSide {
	if t == AccountTypeAsset || t == AccountTypeExpense {
		return NormalDebit
	}
	return NormalCredit
}

// Well-known categories consumed by the statement generator.
const (
	CategoryCash          = "CASH"
	CategoryReceivable    = "RECEIVABLE"
	CategoryFixedAsset    = "FIXED_ASSET"
	CategoryInvestment    = "INVESTMENT"
	CategoryBorrowing     = "BORROWING"
	CategoryMemberSavings = "MEMBER_SAVINGS"
)

// Account models a chart of accounts node.
type Account struct {
	ID         int64       `json:"id"`
	Code       string      `json:"code"`
	Name       string      `json:"name"`
	Type       AccountType `json:"type"`
	Category   string      `json:"category,omitempty"`
	NormalSide NormalSide  `json:"normal_side"`
	IsGroup    bool        `json:"is_group"`
	ParentID   *int64      `json:"parent_id,omitempty"`
	IsActive   bool        `json:"is_active"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// Postable reports whether journal lines may reference the account.
func (a Account) Postable() bool {
	return a.IsActive && !a.IsGroup
}

// SignedBalance converts raw debit and credit totals into a balance on the
// account's normal side.
func (a Account) SignedBalance(debit, credit int64) int64 {
	if a.NormalSide == NormalCredit {
		return credit - debit
	}
	return debit - credit
}

// Usage counts the records that depend on an account.
type Usage struct {
	LineRefs int64 // journal lines of any status
	Children int64
}

// Filter narrows account listings.
type Filter struct {
	Type     AccountType
	IsActive *bool
	Search   string
}

// Match applies the filter in memory. Stores without query pushdown use it.
func (f Filter) Match(a Account) bool {
	if f.Type != "" && a.Type != f.Type {
		return false
	}
	if f.IsActive != nil && a.IsActive != *f.IsActive {
		return false
	}
	if f.Search == "" {
		return true
	}
	needle := strings.ToLower(f.Search)
	for _, field := range []string{a.Code, a.Name, a.Category} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// CreateInput carries fields for a new account.
type CreateInput struct {
	Code     string      `json:"code" validate:"required,max=32"`
	Name     string      `json:"name" validate:"required,max=160"`
	Type     AccountType `json:"type" validate:"required,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
	Category string      `json:"category" validate:"max=64"`
	IsGroup  bool        `json:"is_group"`
	ParentID *int64      `json:"parent_id"`
}

// Patch carries optional account changes. Nil fields are left untouched.
type Patch struct {
	Code        *string      `json:"code" validate:"omitempty,max=32"`
	Name        *string      `json:"name" validate:"omitempty,max=160"`
	Type        *AccountType `json:"type" validate:"omitempty,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
	Category    *string      `json:"category" validate:"omitempty,max=64"`
	NormalSide  *NormalSide  `json:"normal_side" validate:"omitempty,oneof=DEBIT CREDIT"`
	IsGroup     *bool        `json:"is_group"`
	ParentID    *int64       `json:"parent_id"`
	ClearParent bool         `json:"clear_parent"`
}

// Node is an account with its children, used for the COA tree.
type Node struct {
	Account
	Children []*Node `json:"children,omitempty"`
}
