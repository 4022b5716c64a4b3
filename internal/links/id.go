package links

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// idGenerator hands out lexicographically sortable ULIDs. The monotonic
// entropy source is not safe for concurrent use, hence the mutex.
type idGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

func newIDGenerator() *idGenerator {
	return &idGenerator{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (g *idGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy).String()
}

