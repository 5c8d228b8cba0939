package nodeset

import (
	"context"

	"github.com/vipnode/nodehealth/node"
)

// Subscriber publishes snapshots of a node set, such as a *Controller.
type Subscriber interface {
	Subscribe() (<-chan []node.Node, func())
}

// WaitFor blocks until cond returns true for a snapshot of the set, and
// returns that snapshot. It's the building block for retrying work once the
// set reaches some state, such as having an allowed node.
func WaitFor(ctx context.Context, c Subscriber, cond func([]node.Node) bool) ([]node.Node, error) {
	ch, cancel := c.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case nodes, ok := <-ch:
			if !ok {
				return nil, ErrClosed
			}
			if cond(nodes) {
				return nodes, nil
			}
		}
	}
}
