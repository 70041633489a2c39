package integration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/koperasi/internal/accounting/journals"
	"github.com/odyssey-erp/koperasi/internal/accounting/shared"
	"github.com/shopspring/decimal"
)

// TransactionType names the cooperative event behind a sync request.
type TransactionType string

const (
	TypeInstallment  TransactionType = "Angsuran"
	TypeDisbursement TransactionType = "Pencairan"
	TypeDeposit      TransactionType = "Simpanan"
	TypeWithdrawal   TransactionType = "Penarikan"
	TypeIncome       TransactionType = "Pemasukan"
	TypeExpense      TransactionType = "Pengeluaran"
)

// Source modules stamped on generated entries.
const (
	ModuleInstallment  = "LOAN.INSTALLMENT"
	ModuleDisbursement = "LOAN.DISBURSEMENT"
	ModuleDeposit      = "SAVINGS.DEPOSIT"
	ModuleWithdrawal   = "SAVINGS.WITHDRAWAL"
	ModuleIncome       = "KEUANGAN.INCOME"
	ModuleExpense      = "KEUANGAN.EXPENSE"
)

// Mapping modules used to resolve accounts.
const (
	mappingLoan     = "LOAN"
	mappingSavings  = "SAVINGS"
	mappingKeuangan = "KEUANGAN"
)

// Module returns the journal source module for the type.
func (t TransactionType) Module() string {
	switch t {
	case TypeInstallment:
		return ModuleInstallment
	case TypeDisbursement:
		return ModuleDisbursement
	case TypeDeposit:
		return ModuleDeposit
	case TypeWithdrawal:
		return ModuleWithdrawal
	case TypeIncome:
		return ModuleIncome
	case TypeExpense:
		return ModuleExpense
	}
	return ""
}

// NeedsLoan reports whether the type refers to a loan.
func (t TransactionType) NeedsLoan() bool {
	return t == TypeInstallment || t == TypeDisbursement
}

// Transaction is a cooperative event delivered by the host application.
type Transaction struct {
	ID          string          `json:"id" validate:"required,max=64"`
	Type        TransactionType `json:"type" validate:"required,oneof=Angsuran Pencairan Simpanan Penarikan Pemasukan Pengeluaran"`
	LoanID      int64           `json:"loan_id"`
	MemberID    int64           `json:"member_id"`
	Amount      int64           `json:"amount"`
	Date        time.Time       `json:"date" validate:"required"`
	Category    string          `json:"category" validate:"max=64"`
	Description string          `json:"description" validate:"max=255"`
}

// EventID is the structured idempotency key stored on the generated entry.
func (t Transaction) EventID() string {
	return strings.ToUpper(string(t.Type)) + ":" + t.ID
}

// Validate checks the event shape before any lookup.
func (t Transaction) Validate() error {
	if err := shared.ValidateStruct(t); err != nil {
		return err
	}
	if t.Amount < 0 {
		return shared.NewFieldError("amount", shared.ErrNegativeAmount)
	}
	if t.Amount == 0 {
		return shared.NewFieldError("amount", fmt.Errorf("%w: amount must be positive", shared.ErrValidation))
	}
	if t.Type.NeedsLoan() && t.LoanID <= 0 {
		return shared.NewFieldError("loan_id", fmt.Errorf("%w: loan required for %s", shared.ErrValidation, t.Type))
	}
	return nil
}

// Loan is the slice of loan settings the allocation needs.
type Loan struct {
	ID          int64
	MemberID    int64
	Principal   int64
	Category    string
	MonthlyRate decimal.Decimal
}

// Subject is the SourceSubject tag shared by every entry of the loan.
func (l Loan) Subject() string {
	return fmt.Sprintf("LOAN:%d", l.ID)
}

// LoanSettings reads loan terms from the host application.
type LoanSettings interface {
	GetLoan(ctx context.Context, loanID int64) (Loan, error)
}

// MemberDirectory resolves member display names for batch error labels.
type MemberDirectory interface {
	MemberName(ctx context.Context, memberID int64) (string, error)
}

// Outcome is the result of syncing one transaction.
type Outcome struct {
	TransactionID string               `json:"transaction_id"`
	Entry         journals.JournalEntry `json:"entry"`
	Allocation    *Allocation          `json:"allocation,omitempty"`
	Duplicate     bool                 `json:"duplicate"`
}

// BatchError describes one failed item of a batch.
type BatchError struct {
	TransactionID string `json:"transaction_id"`
	Member        string `json:"member,omitempty"`
	Message       string `json:"error"`
	Err           error  `json:"-"`
}

// BatchResult summarises a batch run. Duplicates count as succeeded.
type BatchResult struct {
	Succeeded  int          `json:"succeeded"`
	Failed     int          `json:"failed"`
	Duplicates int          `json:"duplicates"`
	Errors     []BatchError `json:"errors"`
}
