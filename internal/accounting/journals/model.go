package journals

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// JournalStatus enumerates journal lifecycle values.
type JournalStatus string

const (
	JournalStatusDraft    JournalStatus = "DRAFT"
	JournalStatusPosted   JournalStatus = "POSTED"
	JournalStatusReversed JournalStatus = "REVERSED"
)

// Counted reports whether entries in this status contribute to the ledger.
// A reversed entry stays in history next to its mirror so both net to zero.
func (s JournalStatus) Counted() bool {
	return s == JournalStatusPosted || s == JournalStatusReversed
}

// ReversalSuffix marks the source module of mirror entries.
const ReversalSuffix = ":REVERSAL"

// JournalEntry captures posting metadata.
type JournalEntry struct {
	ID            int64         `json:"id"`
	Number        int64         `json:"number"`
	Date          time.Time     `json:"date"`
	Description   string        `json:"description"`
	Reference     string        `json:"reference,omitempty"`
	SourceModule  string        `json:"source_module,omitempty"`
	SourceEventID string        `json:"source_event_id,omitempty"`
	SourceSubject string        `json:"source_subject,omitempty"`
	TotalDebit    int64         `json:"total_debit"`
	TotalCredit   int64         `json:"total_credit"`
	Status        JournalStatus `json:"status"`
	ReversalOf    *int64        `json:"reversal_of,omitempty"`
	ReversedBy    *int64        `json:"reversed_by,omitempty"`
	CreatedBy     int64         `json:"created_by,omitempty"`
	PostedAt      *time.Time    `json:"posted_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	Lines         []JournalLine `json:"lines,omitempty"`
}

// DisplayNumber renders the entry number as shown on vouchers, e.g. JU-000042.
func (e JournalEntry) DisplayNumber() string {
	return fmt.Sprintf("JU-%06d", e.Number)
}

// Clone returns a deep copy safe to hand across store boundaries.
func (e JournalEntry) Clone() JournalEntry {
	e.Lines = slices.Clone(e.Lines)
	if e.ReversalOf != nil {
		v := *e.ReversalOf
		e.ReversalOf = &v
	}
	if e.ReversedBy != nil {
		v := *e.ReversedBy
		e.ReversedBy = &v
	}
	if e.PostedAt != nil {
		v := *e.PostedAt
		e.PostedAt = &v
	}
	return e
}

// JournalLine stores debit or credit amount for an account in minor units.
type JournalLine struct {
	ID        int64  `json:"id,omitempty"`
	JournalID int64  `json:"journal_id,omitempty"`
	LineNo    int    `json:"line_no"`
	AccountID int64  `json:"account_id"`
	Debit     int64  `json:"debit"`
	Credit    int64  `json:"credit"`
	Note      string `json:"note,omitempty"`
}

// PostedLine is a journal line joined with its entry header, as consumed by
// the ledger and statements.
type PostedLine struct {
	EntryID       int64
	Number        int64
	Date          time.Time
	Description   string
	Reference     string
	SourceModule  string
	SourceSubject string
	Status        JournalStatus
	LineNo        int
	AccountID     int64
	Debit         int64
	Credit        int64
	Note          string
}

// LineQuery selects counted journal lines. Zero values do not filter.
type LineQuery struct {
	AccountID     int64
	From          time.Time // inclusive
	Until         time.Time // exclusive
	SourceSubject string
	SourceModules []string
	// IncludeDrafts also selects lines of DRAFT entries, for callers that
	// must treat pending entries as committed.
	IncludeDrafts bool
}

// Statuses lists the entry statuses the query selects.
func (q LineQuery) Statuses() []JournalStatus {
	out := []JournalStatus{JournalStatusPosted, JournalStatusReversed}
	if q.IncludeDrafts {
		out = append(out, JournalStatusDraft)
	}
	return out
}

// MatchEntry applies the entry-level part of the query.
func (q LineQuery) MatchEntry(e JournalEntry) bool {
	if !slices.Contains(q.Statuses(), e.Status) {
		return false
	}
	if !q.From.IsZero() && e.Date.Before(q.From) {
		return false
	}
	if !q.Until.IsZero() && !e.Date.Before(q.Until) {
		return false
	}
	if q.SourceSubject != "" && e.SourceSubject != q.SourceSubject {
		return false
	}
	if len(q.SourceModules) > 0 && !slices.Contains(q.SourceModules, e.SourceModule) {
		return false
	}
	return true
}

// MatchLine applies the line-level part of the query.
func (q LineQuery) MatchLine(l JournalLine) bool {
	return q.AccountID == 0 || l.AccountID == q.AccountID
}

// AccountTotal sums counted debits and credits for an account.
type AccountTotal struct {
	AccountID int64
	Debit     int64
	Credit    int64
}

// ListFilter narrows journal listings.
type ListFilter struct {
	Status    JournalStatus
	From      time.Time
	To        time.Time // inclusive
	AccountID int64
	Search    string
	Limit     int
}

// Match applies the filter in memory.
func (f ListFilter) Match(e JournalEntry) bool {
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if !f.From.IsZero() && e.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Date.After(f.To) {
		return false
	}
	if f.AccountID != 0 && !slices.ContainsFunc(e.Lines, func(l JournalLine) bool { return l.AccountID == f.AccountID }) {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		hay := strings.ToLower(e.Description + " " + e.Reference + " " + e.DisplayNumber())
		if !strings.Contains(hay, needle) {
			return false
		}
	}
	return true
}

// SortLines orders posted lines by date, entry number and line order.
func SortLines(lines []PostedLine) {
	slices.SortStableFunc(lines, func(a, b PostedLine) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		if a.Number != b.Number {
			if a.Number < b.Number {
				return -1
			}
			return 1
		}
		return a.LineNo - b.LineNo
	})
}
