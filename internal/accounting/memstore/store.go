// Package memstore keeps the whole ledger in process memory. It backs tests
// and STORE_DRIVER=memory demo runs.
package memstore

import (
	"maps"
	"sync"
	"time"

	"github.com/odyssey-erp/koperasi/internal/accounting/accounts"
	"github.com/odyssey-erp/koperasi/internal/accounting/journals"
	"github.com/odyssey-erp/koperasi/internal/accounting/mappings"
	"github.com/odyssey-erp/koperasi/internal/accounting/periods"
)

// Store is a single mutex-guarded ledger. Journal transactions work on a
// copy of the journal tables that replaces the committed state on success.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	accounts   map[int64]accounts.Account
	accountSeq int64

	journal  journalTables
	periods  map[string]periods.State
	mappings map[string]mappings.AccountMapping
}

type journalTables struct {
	entries   map[int64]journals.JournalEntry
	bySource  map[string]int64
	entrySeq  int64
	numberSeq int64
	lineSeq   int64
}

func (t journalTables) clone() journalTables {
	return journalTables{
		entries:   maps.Clone(t.entries),
		bySource:  maps.Clone(t.bySource),
		entrySeq:  t.entrySeq,
		numberSeq: t.numberSeq,
		lineSeq:   t.lineSeq,
	}
}

func New() *Store {
	return &Store{
		now:      time.Now,
		accounts: make(map[int64]accounts.Account),
		journal: journalTables{
			entries:  make(map[int64]journals.JournalEntry),
			bySource: make(map[string]int64),
		},
		periods:  make(map[string]periods.State),
		mappings: make(map[string]mappings.AccountMapping),
	}
}

// WithNow overrides the clock used for timestamps.
func (s *Store) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Store) Accounts() accounts.Repository { return accountRepo{s} }
func (s *Store) Journals() journals.Repository { return journalRepo{s} }
func (s *Store) Periods() periods.Repository   { return periodRepo{s} }
func (s *Store) Mappings() mappings.Repository { return mappingRepo{s} }

// lineRefs counts lines of any status referencing the account. Callers hold mu.
func (s *Store) lineRefs(accountID int64) int64 {
	var n int64
	for _, e := range s.journal.entries {
		for _, l := range e.Lines {
			if l.AccountID == accountID {
				n++
			}
		}
	}
	return n
}
