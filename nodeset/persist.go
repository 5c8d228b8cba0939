package nodeset

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/vipnode/nodehealth/node"
	"github.com/vipnode/nodehealth/store"
)

// savedNode is the persisted form of a node. Health metrics are transient
// and not saved.
type savedNode struct {
	ID               uuid.UUID    `json:"id"`
	Main             node.Origin  `json:"main"`
	Alt              *node.Origin `json:"alt,omitempty"`
	WSEnabled        bool         `json:"ws_enabled"`
	WSPort           int          `json:"ws_port,omitempty"`
	IsEnabled        bool         `json:"is_enabled"`
	PreferMainOrigin *bool        `json:"prefer_main_origin,omitempty"`
}

// StoreKey returns the storage key for a network's node list.
func StoreKey(network string) string {
	return "nodes/" + network
}

func encodeNodes(nodes []node.Node) (string, error) {
	saved := make([]savedNode, 0, len(nodes))
	for _, n := range nodes {
		saved = append(saved, savedNode{
			ID:               n.ID,
			Main:             n.Main,
			Alt:              n.Alt,
			WSEnabled:        n.WSEnabled,
			WSPort:           n.WSPort,
			IsEnabled:        n.IsEnabled,
			PreferMainOrigin: n.PreferMainOrigin,
		})
	}
	b, err := json.Marshal(saved)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeNodes(raw string) ([]node.Node, error) {
	var saved []savedNode
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		return nil, err
	}
	nodes := make([]node.Node, 0, len(saved))
	for _, s := range saved {
		n := node.Node{
			ID:               s.ID,
			Main:             s.Main,
			Alt:              s.Alt,
			WSEnabled:        s.WSEnabled,
			WSPort:           s.WSPort,
			IsEnabled:        s.IsEnabled,
			PreferMainOrigin: s.PreferMainOrigin,
			Status:           node.Offline,
		}
		if !n.IsEnabled {
			n.Status = node.NotExists
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// restore loads the persisted set and appends any seed whose main origin is
// not in it. A corrupt saved set is logged and replaced by the seeds.
func (c *Controller) restore(seeds []node.Node) ([]node.Node, error) {
	var nodes []node.Node
	if c.store != nil {
		raw, err := c.store.Get(StoreKey(c.network))
		switch err {
		case nil:
			if nodes, err = decodeNodes(raw); err != nil {
				logger.Printf("%s: ignoring corrupt saved nodes: %s", c.network, err)
				nodes = nil
			} else {
				c.lastSaved = raw
			}
		case store.ErrNotFound:
		default:
			return nil, err
		}
	}

	known := make(map[node.Origin]struct{}, len(nodes))
	ids := make(map[uuid.UUID]struct{}, len(nodes))
	unique := nodes[:0]
	for _, n := range nodes {
		if _, dup := ids[n.ID]; dup {
			continue
		}
		ids[n.ID] = struct{}{}
		known[n.Main] = struct{}{}
		unique = append(unique, n)
	}
	nodes = unique

	for _, seed := range seeds {
		if _, ok := known[seed.Main]; ok {
			continue
		}
		n := seed.Clone()
		if _, dup := ids[n.ID]; dup || n.ID == uuid.Nil {
			n.ID = uuid.New()
		}
		n.Status = node.Offline
		if !n.IsEnabled {
			n.Status = node.NotExists
		}
		ids[n.ID] = struct{}{}
		known[n.Main] = struct{}{}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// saveLocked persists the set if its saved form changed.
func (c *Controller) saveLocked(nodes []node.Node) error {
	if c.store == nil {
		return nil
	}
	raw, err := encodeNodes(nodes)
	if err != nil {
		return err
	}
	if raw == c.lastSaved {
		return nil
	}
	if err := c.store.Set(StoreKey(c.network), raw); err != nil {
		return err
	}
	c.lastSaved = raw
	return nil
}
