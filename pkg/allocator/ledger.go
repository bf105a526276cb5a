package allocator

import (
	"github.com/aretw0/topograph/pkg/domain"
)

type ledgerKey struct {
	node string
	typ  domain.HandleType
}

// Ledger tracks which ports are taken per (node, direction) during one
// allocation pass. Ports are identified by their canonical id, which encodes
// side and index; implicit-mode ids are tracked verbatim.
type Ledger struct {
	used map[ledgerKey]map[string]int
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{used: make(map[ledgerKey]map[string]int)}
}

// Used reports whether handleID is taken on node for direction t.
func (l *Ledger) Used(node string, t domain.HandleType, handleID string) bool {
	return l.used[ledgerKey{node, t}][handleID] > 0
}

// Claim records one more use of handleID.
func (l *Ledger) Claim(node string, t domain.HandleType, handleID string) {
	if handleID == "" {
		return
	}
	k := ledgerKey{node, t}
	if l.used[k] == nil {
		l.used[k] = make(map[string]int)
	}
	l.used[k][handleID]++
}

// Uses returns how many edges claimed handleID.
func (l *Ledger) Uses(node string, t domain.HandleType, handleID string) int {
	return l.used[ledgerKey{node, t}][handleID]
}

// ClaimEdges records the handles already held by edges, so a later
// AllocateEdge avoids them.
func (l *Ledger) ClaimEdges(edges []domain.Edge) {
	for _, e := range edges {
		l.Claim(e.Source, domain.HandleSource, e.SourceHandle)
		l.Claim(e.Target, domain.HandleTarget, e.TargetHandle)
	}
}
