// Package selector picks the node to use for the next outbound request.
package selector

import (
	"bytes"
	"math/rand"
	"sort"

	"github.com/google/uuid"

	"github.com/vipnode/nodehealth/node"
)

// Options control node selection.
type Options struct {
	// SortedBySpeed selects the node with the lowest ping instead of a
	// random eligible node.
	SortedBySpeed bool
	// NeedsWebsocket restricts selection to websocket-enabled nodes.
	NeedsWebsocket bool
	// WebsocketFallback drops the websocket requirement when it alone
	// eliminated every candidate.
	WebsocketFallback bool
	// Excluding is the set of node IDs that must not be selected.
	Excluding map[uuid.UUID]struct{}
	// Rand is the source for random selection. A shared source is used if
	// nil. Callers selecting from several goroutines must serialize use of
	// their own source.
	Rand *rand.Rand
}

// Eligible returns true if the node may serve requests at all.
func Eligible(n node.Node) bool {
	return n.Status == node.Allowed && n.IsEnabled
}

// Select returns the best node under the given options, or false if no node
// qualifies.
func Select(nodes []node.Node, opts Options) (node.Node, bool) {
	candidates := make([]node.Node, 0, len(nodes))
	var withoutWS []node.Node
	for _, n := range nodes {
		if !Eligible(n) {
			continue
		}
		if _, excluded := opts.Excluding[n.ID]; excluded {
			continue
		}
		if opts.NeedsWebsocket && !n.WSEnabled {
			withoutWS = append(withoutWS, n)
			continue
		}
		candidates = append(candidates, n)
	}
	if len(candidates) == 0 && opts.WebsocketFallback {
		candidates = withoutWS
	}
	if len(candidates) == 0 {
		return node.Node{}, false
	}

	if opts.SortedBySpeed {
		sortBySpeed(candidates)
		return candidates[0], true
	}
	return candidates[intn(opts.Rand, len(candidates))], true
}

// Ranked returns the IDs of eligible nodes, fastest first.
func Ranked(nodes []node.Node) []uuid.UUID {
	eligible := make([]node.Node, 0, len(nodes))
	for _, n := range nodes {
		if Eligible(n) {
			eligible = append(eligible, n)
		}
	}
	sortBySpeed(eligible)
	ids := make([]uuid.UUID, 0, len(eligible))
	for _, n := range eligible {
		ids = append(ids, n.ID)
	}
	return ids
}

// sortBySpeed orders nodes by ascending ping. Nodes without a ping go last,
// and ties are broken by ID.
func sortBySpeed(nodes []node.Node) {
	sort.Slice(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		switch {
		case a.Ping == nil && b.Ping == nil:
		case a.Ping == nil:
			return false
		case b.Ping == nil:
			return true
		case *a.Ping != *b.Ping:
			return *a.Ping < *b.Ping
		}
		return bytes.Compare(a.ID[:], b.ID[:]) < 0
	})
}

func intn(r *rand.Rand, n int) int {
	if r == nil {
		return rand.Intn(n)
	}
	return r.Intn(n)
}
