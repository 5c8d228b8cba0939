package probe

import (
	"strings"

	"github.com/vipnode/nodehealth/node"
)

// ClientKind represents the different node implementations we know about.
type ClientKind int

const (
	UnknownClient ClientKind = iota
	Geth
	Parity
	Besu
	Nethermind
	Erigon
	BitcoinCore
	Adamant
)

func (k ClientKind) String() string {
	switch k {
	case Geth:
		return "geth"
	case Parity:
		return "parity"
	case Besu:
		return "besu"
	case Nethermind:
		return "nethermind"
	case Erigon:
		return "erigon"
	case BitcoinCore:
		return "bitcoin-core"
	case Adamant:
		return "adamant"
	default:
		return "unknown"
	}
}

// Client is the parsed identity of a node implementation.
type Client struct {
	Raw     string
	Kind    ClientKind
	Version *node.Version
}

// ParseClient takes the client identifier reported by a node, such as the
// result of web3_clientVersion or a bitcoin subversion string, and returns
// the parsed client. A missing version is not an error, it's left nil.
func ParseClient(raw string) Client {
	c := Client{Raw: raw}
	lower := strings.ToLower(strings.TrimPrefix(raw, "/"))
	switch {
	case strings.HasPrefix(lower, "geth/"):
		c.Kind = Geth
	case strings.HasPrefix(lower, "parity-ethereum/"), strings.HasPrefix(lower, "parity/"), strings.HasPrefix(lower, "openethereum/"):
		c.Kind = Parity
	case strings.HasPrefix(lower, "besu/"), strings.HasPrefix(lower, "pantheon/"):
		c.Kind = Besu
	case strings.HasPrefix(lower, "nethermind/"):
		c.Kind = Nethermind
	case strings.HasPrefix(lower, "erigon/"):
		c.Kind = Erigon
	case strings.HasPrefix(lower, "satoshi:"):
		c.Kind = BitcoinCore
	}
	if v, err := node.ExtractVersion(raw); err == nil {
		c.Version = &v
	}
	return c
}
