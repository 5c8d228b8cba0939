package healthcheck

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/vipnode/nodehealth/node"
)

// ErrNoNodesAvailable is returned when no node may serve a request.
var ErrNoNodesAvailable = errors.New("no nodes available")

// NodeError is a network failure of one node during a request.
type NodeError struct {
	ID     uuid.UUID
	Origin node.Origin
	Err    error
}

func (err NodeError) Error() string {
	return fmt.Sprintf("node %s: %s", err.Origin, err.Err)
}

func (err NodeError) Unwrap() error {
	return err.Err
}

// NodesFailedError is returned when every node tried failed at the network
// layer.
type NodesFailedError struct {
	NumTried int
	Errors   []NodeError
}

func (err *NodesFailedError) Error() string {
	msgs := make([]string, 0, len(err.Errors))
	for _, e := range err.Errors {
		msgs = append(msgs, e.Error())
	}
	return fmt.Sprintf("all %d nodes tried failed: %s", err.NumTried, strings.Join(msgs, "; "))
}

// Unwrap returns the failure of the last node tried.
func (err *NodesFailedError) Unwrap() error {
	if len(err.Errors) == 0 {
		return nil
	}
	return err.Errors[len(err.Errors)-1].Err
}
