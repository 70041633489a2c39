package mappings

import (
	"strings"
	"time"
)

// AccountMapping links integration keys to ledger accounts.
type AccountMapping struct {
	Module    string    `json:"module" yaml:"module"`
	Key       string    `json:"key" yaml:"key"`
	AccountID int64     `json:"account_id" yaml:"-"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// Normalize upper-cases the module and trims the key.
func Normalize(module, key string) (string, string) {
	return strings.ToUpper(strings.TrimSpace(module)), strings.TrimSpace(key)
}
