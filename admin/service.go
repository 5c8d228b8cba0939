// Package admin exposes signed JSONRPC methods for managing the node sets of
// a running server, and a client for calling them.
package admin

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/vipnode/nodehealth/node"
	"github.com/vipnode/nodehealth/store"
)

// Prefix is the JSONRPC namespace the service is registered under.
const Prefix = "admin_"

var (
	// ErrNotAuthorized is returned when a request is signed by an address
	// that is not an admin.
	ErrNotAuthorized = errors.New("address is not authorized")
	// ErrInvalidNonce is returned when a request's nonce is not higher than
	// the last one accepted for its address.
	ErrInvalidNonce = errors.New("invalid nonce")
	// ErrUnknownNetwork is returned for networks the service does not manage.
	ErrUnknownNetwork = errors.New("unknown network")
	// ErrUnknownNode is returned when no node matches an ID prefix.
	ErrUnknownNode = errors.New("no node matches id")
	// ErrAmbiguousNode is returned when more than one node matches an ID prefix.
	ErrAmbiguousNode = errors.New("more than one node matches id")
)

// Controller is the part of a node set that admin requests can change.
type Controller interface {
	Nodes() []node.Node
	SetEnabled(id uuid.UUID, enabled bool) error
	Add(n node.Node) (node.Node, error)
	Remove(id uuid.UUID) error
}

// Service is the admin JSONRPC service. Every method takes the signature,
// signing address and nonce as its first params.
type Service struct {
	Controllers map[string]Controller
	// Admins are the hex addresses allowed to make requests.
	Admins []string
	// Store keeps the last nonce of each admin so that requests can't be
	// replayed, including across restarts.
	Store store.Store

	mu sync.Mutex
}

func nonceKey(address string) string {
	return "admin/nonce/" + strings.ToLower(address)
}

// checkAndSaveNonce asserts that this is the highest nonce seen for address.
func (s *Service) checkAndSaveNonce(address string, nonce int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := nonceKey(address)
	raw, err := s.Store.Get(key)
	switch {
	case err == store.ErrNotFound:
	case err != nil:
		return err
	default:
		last, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		if nonce <= last {
			return ErrInvalidNonce
		}
	}
	return s.Store.Set(key, strconv.FormatInt(nonce, 10))
}

func (s *Service) verify(method string, sig string, address string, nonce int64, args ...interface{}) error {
	authorized := false
	for _, a := range s.Admins {
		if SameAddress(a, address) {
			authorized = true
			break
		}
	}
	if !authorized {
		return ErrNotAuthorized
	}
	req := Request{
		Method:  Prefix + method,
		Address: address,
		Nonce:   nonce,
		Args:    args,
	}
	if err := req.Verify(sig); err != nil {
		return err
	}
	if err := s.checkAndSaveNonce(address, nonce); err != nil {
		return err
	}
	logger.Printf("%s accepted from %s: %v", req.Method, address, args)
	return nil
}

func (s *Service) controller(network string) (Controller, error) {
	c, ok := s.Controllers[network]
	if !ok {
		return nil, ErrUnknownNetwork
	}
	return c, nil
}

// FindNode returns the ID of the single node whose ID starts with prefix.
func FindNode(nodes []node.Node, prefix string) (uuid.UUID, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return uuid.Nil, ErrUnknownNode
	}
	found := uuid.Nil
	for _, n := range nodes {
		if !strings.HasPrefix(n.ID.String(), prefix) {
			continue
		}
		if found != uuid.Nil {
			return uuid.Nil, ErrAmbiguousNode
		}
		found = n.ID
	}
	if found == uuid.Nil {
		return uuid.Nil, ErrUnknownNode
	}
	return found, nil
}

// SetEnabled turns a node on or off. The node is picked by an ID prefix, such
// as the short ID shown in status output.
func (s *Service) SetEnabled(ctx context.Context, sig string, address string, nonce int64, network string, id string, enabled bool) error {
	if err := s.verify("setEnabled", sig, address, nonce, network, id, enabled); err != nil {
		return err
	}
	c, err := s.controller(network)
	if err != nil {
		return err
	}
	nodeID, err := FindNode(c.Nodes(), id)
	if err != nil {
		return err
	}
	return c.SetEnabled(nodeID, enabled)
}

// AddNode adds a node to a network and returns its ID. The alt origin is
// optional.
func (s *Service) AddNode(ctx context.Context, sig string, address string, nonce int64, network string, main string, alt string) (string, error) {
	if err := s.verify("addNode", sig, address, nonce, network, main, alt); err != nil {
		return "", err
	}
	c, err := s.controller(network)
	if err != nil {
		return "", err
	}
	mainOrigin, err := node.ParseOrigin(main)
	if err != nil {
		return "", err
	}
	var altOrigin *node.Origin
	if alt != "" {
		o, err := node.ParseOrigin(alt)
		if err != nil {
			return "", err
		}
		altOrigin = &o
	}
	n, err := c.Add(node.New(mainOrigin, altOrigin))
	if err != nil {
		return "", err
	}
	return n.ID.String(), nil
}

// RemoveNode deletes a node from a network.
func (s *Service) RemoveNode(ctx context.Context, sig string, address string, nonce int64, network string, id string) error {
	if err := s.verify("removeNode", sig, address, nonce, network, id); err != nil {
		return err
	}
	c, err := s.controller(network)
	if err != nil {
		return err
	}
	nodeID, err := FindNode(c.Nodes(), id)
	if err != nil {
		return err
	}
	return c.Remove(nodeID)
}
