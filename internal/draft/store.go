// Package draft snapshots in-progress, not-yet-created contracts into
// durable local storage so a crash or reload does not lose the form.
// Snapshots never leave the machine and are never sent to the server.
package draft

import (
	"errors"
	"fmt"
	"time"

	"github.com/krasl809/tradedesk/internal/model"
)

var ErrNotFound = errors.New("draft not found")

// Store is the durable key/value port. The production implementation
// is badger-backed; tests substitute an in-memory fake.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Remove(key string) error
	Close() error
}

// Snapshot is the recoverable form state, keyed by (mode, "new").
type Snapshot struct {
	FormData     map[string]any       `json:"formData"`
	Items        []model.ContractItem `json:"items"`
	CharterItems []model.CharterItem  `json:"charterItems"`
	Timestamp    time.Time            `json:"timestamp"`
}

// Key builds the storage key for a new-contract draft in the given
// editing mode (e.g. "export", "import").
func Key(mode string) string {
	return fmt.Sprintf("contract_temp_%s_new", mode)
}
