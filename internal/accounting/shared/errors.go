package shared

import (
	"errors"
	"fmt"
)

// Error kinds. Concrete errors below wrap exactly one kind so callers can
// branch with errors.Is on either the specific error or its kind.
var (
	// ErrValidation rejects input before any state change.
	ErrValidation = errors.New("accounting: validation failed")
	// ErrState rejects an operation not allowed in the current lifecycle state.
	ErrState = errors.New("accounting: invalid state")
	// ErrReferential rejects removal of a record still referenced elsewhere.
	ErrReferential = errors.New("accounting: referenced record")
	// ErrConsistency flags a ledger integrity violation found on read.
	ErrConsistency = errors.New("accounting: ledger inconsistency")
	// ErrNotFound indicates a missing record.
	ErrNotFound = errors.New("accounting: not found")
)

var (
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = kind(ErrValidation, "journal lines must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = kind(ErrValidation, "journal requires at least two lines")
	// ErrInvalidLine indicates a line with both or neither side populated.
	ErrInvalidLine = kind(ErrValidation, "line must carry exactly one of debit or credit")
	// ErrNegativeAmount indicates an amount below zero.
	ErrNegativeAmount = kind(ErrValidation, "amount must not be negative")
	// ErrUnknownAccount indicates a line referencing a missing account.
	ErrUnknownAccount = kind(ErrValidation, "unknown account")
	// ErrGroupAccount indicates a posting to a structural account.
	ErrGroupAccount = kind(ErrValidation, "group account cannot receive postings")
	// ErrInactiveAccount indicates a posting to a deactivated account.
	ErrInactiveAccount = kind(ErrValidation, "account is inactive")
	// ErrDuplicateCode indicates an account code collision.
	ErrDuplicateCode = kind(ErrValidation, "account code already exists")
	// ErrInvalidHierarchy indicates a parent that is missing or not a group.
	ErrInvalidHierarchy = kind(ErrValidation, "parent must be an existing group account")
	// ErrImmutableField indicates an edit to a field frozen by existing postings.
	ErrImmutableField = kind(ErrValidation, "field cannot change once the account has postings")
	// ErrInvalidPeriod indicates a malformed YYYY-MM period.
	ErrInvalidPeriod = kind(ErrValidation, "period must be formatted YYYY-MM")
	// ErrOverpayment indicates a payment exceeding interest due plus remaining principal.
	ErrOverpayment = kind(ErrValidation, "payment exceeds outstanding loan balance")

	// ErrEntryNotEditable indicates a change to a non-draft entry.
	ErrEntryNotEditable = kind(ErrState, "only draft entries can be changed")
	// ErrEntryNotPosted indicates a reversal of an entry that is not posted.
	ErrEntryNotPosted = kind(ErrState, "only posted entries can be reversed")
	// ErrPeriodLocked indicates a posting into a locked period.
	ErrPeriodLocked = kind(ErrState, "period locked")

	// ErrAccountInUse indicates deletion of an account referenced by journal lines.
	ErrAccountInUse = kind(ErrReferential, "account is referenced by journal lines")

	// ErrAccountNotFound indicates missing account.
	ErrAccountNotFound = kind(ErrNotFound, "account not found")
	// ErrJournalNotFound indicates missing entry.
	ErrJournalNotFound = kind(ErrNotFound, "journal entry not found")
	// ErrMappingNotFound indicates account mapping missing.
	ErrMappingNotFound = kind(ErrNotFound, "account mapping not found")

	// ErrSourceConflict indicates the source event is already linked to an entry.
	ErrSourceConflict = errors.New("accounting: source event already linked")
)

func kind(base error, msg string) error {
	return fmt.Errorf("%w: %s", base, msg)
}

// FieldError attaches the offending input field to a validation error.
type FieldError struct {
	Field string
	Err   error
}

// NewFieldError wraps err with the field name.
func NewFieldError(field string, err error) *FieldError {
	return &FieldError{Field: field, Err: err}
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// ConsistencyError reports an integrity violation detected while aggregating
// the ledger. It is surfaced to operators and never auto-corrected.
type ConsistencyError struct {
	Report   string
	Check    string
	Expected int64
	Actual   int64
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("accounting: %s %s mismatch: expected %d, got %d (difference %d)",
		e.Report, e.Check, e.Expected, e.Actual, e.Expected-e.Actual)
}

func (e *ConsistencyError) Unwrap() error {
	return ErrConsistency
}
