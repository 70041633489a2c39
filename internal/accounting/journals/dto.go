package journals

import (
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/koperasi/internal/accounting/shared"
)

// LineInput describes a journal line for create and update requests.
type LineInput struct {
	AccountID int64  `json:"account_id"`
	Debit     int64  `json:"debit"`
	Credit    int64  `json:"credit"`
	Note      string `json:"note" validate:"max=255"`
}

// EntryInput groups fields required to create or replace a draft entry.
type EntryInput struct {
	Date          time.Time   `json:"date" validate:"required"`
	Description   string      `json:"description" validate:"required,max=255"`
	Reference     string      `json:"reference" validate:"max=64"`
	SourceModule  string      `json:"source_module" validate:"max=64"`
	SourceEventID string      `json:"source_event_id" validate:"max=128"`
	SourceSubject string      `json:"source_subject" validate:"max=64"`
	CreatedBy     int64       `json:"-"`
	Lines         []LineInput `json:"lines" validate:"dive"`
}

// Validate checks line structure and balance. Account checks need the store
// and run inside the transaction.
func (in EntryInput) Validate() error {
	if len(in.Lines) < 2 {
		return shared.NewFieldError("lines", shared.ErrTooFewLines)
	}
	var debit, credit int64
	for idx, line := range in.Lines {
		prefix := fmt.Sprintf("lines[%d]", idx)
		if line.AccountID <= 0 {
			return shared.NewFieldError(prefix+".account_id", shared.ErrUnknownAccount)
		}
		if line.Debit < 0 {
			return shared.NewFieldError(prefix+".debit", shared.ErrNegativeAmount)
		}
		if line.Credit < 0 {
			return shared.NewFieldError(prefix+".credit", shared.ErrNegativeAmount)
		}
		if (line.Debit > 0) == (line.Credit > 0) {
			return shared.NewFieldError(prefix, shared.ErrInvalidLine)
		}
		debit += line.Debit
		credit += line.Credit
	}
	if debit != credit {
		return fmt.Errorf("debit %d credit %d: %w", debit, credit, shared.ErrUnbalanced)
	}
	return shared.ValidateStruct(in)
}

func (in EntryInput) normalized() EntryInput {
	in.Date = dateOnly(in.Date)
	in.Description = strings.TrimSpace(in.Description)
	in.Reference = strings.TrimSpace(in.Reference)
	in.SourceModule = strings.ToUpper(strings.TrimSpace(in.SourceModule))
	in.SourceEventID = strings.TrimSpace(in.SourceEventID)
	return in
}

func (in EntryInput) lines() []JournalLine {
	out := make([]JournalLine, 0, len(in.Lines))
	for idx, line := range in.Lines {
		out = append(out, JournalLine{
			LineNo:    idx + 1,
			AccountID: line.AccountID,
			Debit:     line.Debit,
			Credit:    line.Credit,
			Note:      strings.TrimSpace(line.Note),
		})
	}
	return out
}

// ReverseInput wraps parameters for reversal.
type ReverseInput struct {
	EntryID     int64
	ActorID     int64
	Date        *time.Time
	Description string
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func totals(lines []JournalLine) (debit, credit int64) {
	for _, line := range lines {
		debit += line.Debit
		credit += line.Credit
	}
	return debit, credit
}
