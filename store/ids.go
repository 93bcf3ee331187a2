package store

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var idMu sync.Mutex
var idEntropy = ulid.Monotonic(rand.Reader, 0)

// newID returns a lexicographically sortable unique id. ULIDs sort by
// creation time, which keeps index pages append-mostly.
func newID() string {
	idMu.Lock()
	defer idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), idEntropy).String()
}
