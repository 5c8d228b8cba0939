package node

import (
	"time"

	"github.com/google/uuid"
)

// Node is one configured RPC endpoint for a blockchain network, along with
// the health metrics from its most recent probe.
//
// Node values are treated as immutable once published by a controller. Use
// Clone before modifying a node obtained from a snapshot.
type Node struct {
	ID   uuid.UUID `json:"id"`
	Main Origin    `json:"main"`
	// Alt is a fallback origin, such as an IP-based endpoint that is still
	// reachable when DNS or TLS fails for Main. (Optional)
	Alt *Origin `json:"alt,omitempty"`

	WSEnabled bool `json:"ws_enabled"`
	WSPort    int  `json:"ws_port,omitempty"`
	IsEnabled bool `json:"is_enabled"`

	Version *Version       `json:"version,omitempty"`
	Height  *uint64        `json:"height,omitempty"`
	Ping    *time.Duration `json:"ping,omitempty"`
	Status  Status         `json:"status"`

	// PreferMainOrigin is set once a request has succeeded on one of the
	// origins after the other failed. Nil means no preference (main first).
	PreferMainOrigin *bool `json:"prefer_main_origin,omitempty"`
}

// New returns an enabled node with a fresh ID. The node starts Offline until
// it has been probed.
func New(main Origin, alt *Origin) Node {
	n := Node{
		ID:        uuid.New(),
		Main:      main,
		IsEnabled: true,
		Status:    Offline,
	}
	if alt != nil {
		a := *alt
		n.Alt = &a
	}
	return n
}

// Clone returns a deep copy of the node so that the copy's optional fields
// can be modified without touching the original.
func (n Node) Clone() Node {
	c := n
	if n.Alt != nil {
		alt := *n.Alt
		c.Alt = &alt
	}
	if n.Version != nil {
		v := *n.Version
		c.Version = &v
	}
	if n.Height != nil {
		h := *n.Height
		c.Height = &h
	}
	if n.Ping != nil {
		p := *n.Ping
		c.Ping = &p
	}
	if n.PreferMainOrigin != nil {
		b := *n.PreferMainOrigin
		c.PreferMainOrigin = &b
	}
	return c
}

// Origins returns the origins to try, in order. The alternate origin goes
// first only when the node has a sticky preference against its main origin.
func (n Node) Origins() []Origin {
	if n.Alt == nil {
		return []Origin{n.Main}
	}
	if n.PreferMainOrigin != nil && !*n.PreferMainOrigin {
		return []Origin{*n.Alt, n.Main}
	}
	return []Origin{n.Main, *n.Alt}
}

// IsAlt returns true if the origin is this node's alternate origin.
func (n Node) IsAlt(o Origin) bool {
	return n.Alt != nil && *n.Alt == o && n.Main != o
}

// String returns a short description for logging.
func (n Node) String() string {
	return n.Main.String() + " (" + n.Status.String() + ")"
}

// Uint64 returns a pointer to v, for filling optional height fields.
func Uint64(v uint64) *uint64 {
	return &v
}

// Duration returns a pointer to d, for filling optional ping fields.
func Duration(d time.Duration) *time.Duration {
	return &d
}

// Bool returns a pointer to b.
func Bool(b bool) *bool {
	return &b
}

// StatusInfo is the raw outcome of one successful probe. It is consumed by
// the aggregator and never persisted.
type StatusInfo struct {
	Ping      time.Duration
	Height    *uint64
	WSEnabled bool
	WSPort    int
	Version   *Version
	// Syncing is true when the node reports that it is still catching up
	// with the chain.
	Syncing bool
	// Origin is the origin that answered.
	Origin Origin
}
