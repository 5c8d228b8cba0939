// Package aggregate folds one cycle of probe outcomes into updated node
// states. It is pure: the same inputs always produce the same output.
package aggregate

import (
	"github.com/vipnode/nodehealth/node"
	"github.com/vipnode/nodehealth/probe"
)

// Apply returns the nodes updated with the probe results.
//
// Nodes with a successful probe take the probed metrics and become Allowed
// (or Synchronizing when the node says so). Nodes with a failed probe become
// Offline and lose their ping. A node that prefers its alternate origin goes
// back to its main origin when the main origin answered. Nodes without a result keep their previous
// state. Disabled nodes are always NotExists. Nodes that lag the best height
// by more than params.Threshold, or that run a version below
// params.MinNodeVersion, are downgraded to Outdated.
//
// The input slice and its nodes are not modified.
func Apply(prev []node.Node, results probe.Results, params node.Params) []node.Node {
	out := make([]node.Node, len(prev))
	probed := make([]bool, len(prev))
	for i, n := range prev {
		n = n.Clone()
		res, ok := results[n.ID]
		probed[i] = ok
		switch {
		case !ok:
		case res.OK():
			n.Ping = node.Duration(res.Info.Ping)
			n.Height = nil
			if res.Info.Height != nil {
				n.Height = node.Uint64(*res.Info.Height)
			}
			n.Version = nil
			if res.Info.Version != nil {
				v := *res.Info.Version
				n.Version = &v
			}
			n.WSEnabled = res.Info.WSEnabled
			if res.Info.WSPort != 0 {
				n.WSPort = res.Info.WSPort
			}
			if res.Info.Origin == n.Main && n.Alt != nil && n.PreferMainOrigin != nil && !*n.PreferMainOrigin {
				// The main origin answered again.
				n.PreferMainOrigin = nil
			}
			n.Status = node.Allowed
			if res.Info.Syncing {
				n.Status = node.Synchronizing
			}
		default:
			n.Status = node.Offline
			n.Ping = nil
		}
		out[i] = n
	}

	best, hasBest := bestHeight(out, probed)

	for i := range out {
		n := &out[i]
		if !n.IsEnabled {
			n.Status = node.NotExists
			continue
		}
		if !probed[i] || !results[n.ID].OK() {
			continue
		}
		if hasBest && n.Height != nil && best-*n.Height > params.Threshold {
			n.Status = node.Outdated
		}
		if params.MinNodeVersion != nil && n.Version != nil && n.Version.Less(*params.MinNodeVersion) {
			n.Status = node.Outdated
		}
	}
	return out
}

// bestHeight is the highest height among enabled nodes that reported one
// this cycle. When only some nodes were probed, the heights that unprobed
// nodes held while online also count, so a lone re-probe is judged against
// the best known height.
func bestHeight(nodes []node.Node, probed []bool) (uint64, bool) {
	var best uint64
	var found bool
	for i, n := range nodes {
		if !n.IsEnabled || n.Height == nil {
			continue
		}
		if !probed[i] && !isOnline(n.Status) {
			continue
		}
		if n.Status == node.Offline {
			continue
		}
		if !found || *n.Height > best {
			best = *n.Height
			found = true
		}
	}
	return best, found
}

func isOnline(s node.Status) bool {
	return s == node.Allowed || s == node.Synchronizing || s == node.Outdated
}
