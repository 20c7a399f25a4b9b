package commission

import "sync"

// numberer hands out monotonically increasing invoice numbers per
// seller. Adapted from middleware/concurrency.go's AtomicCounter,
// generalized from one global atomic.Int64 to a map of per-seller
// counters guarded by a single mutex, since invoice numbering must be
// independent per seller rather than global.
type numberer struct {
	mu      sync.Mutex
	bySeller map[string]int64
}

func newNumberer() *numberer {
	return &numberer{bySeller: make(map[string]int64)}
}

// seed primes a seller's counter from the database's last-known
// invoice number, so in-process numbering never regresses after a
// restart.
func (n *numberer) seed(sellerID string, last int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if last > n.bySeller[sellerID] {
		n.bySeller[sellerID] = last
	}
}

// next returns the next invoice number for sellerID, guaranteed
// monotonic and unique within this process.
func (n *numberer) next(sellerID string) int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.bySeller[sellerID]++
	return n.bySeller[sellerID]
}
