// Package fakenode serves a scriptable blockchain node over HTTP for tests.
// One fake answers the EVM and bitcoind JSONRPC probes, the REST status
// endpoint, and websocket upgrades on the same address.
package fakenode

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/websocket"

	"github.com/vipnode/nodehealth/jsonrpc2"
	"github.com/vipnode/nodehealth/jsonrpc2/ws"
)

// ErrAccountNotFound is the application error returned by GetBalance for
// unknown accounts.
var ErrAccountNotFound = &jsonrpc2.ErrResponse{Code: -32000, Message: "account not found"}

// FakeNode holds the state reported by the fake.
type FakeNode struct {
	mu            sync.Mutex
	height        uint64
	clientVersion string
	syncing       bool
	down          bool
	balances      map[string]uint64

	calls int64
}

// Node returns a fake node at the given height.
func Node(height uint64, clientVersion string) *FakeNode {
	return &FakeNode{
		height:        height,
		clientVersion: clientVersion,
		balances:      map[string]uint64{},
	}
}

func (n *FakeNode) SetHeight(height uint64) {
	n.mu.Lock()
	n.height = height
	n.mu.Unlock()
}

func (n *FakeNode) SetSyncing(syncing bool) {
	n.mu.Lock()
	n.syncing = syncing
	n.mu.Unlock()
}

// SetDown makes the node answer every request with 503.
func (n *FakeNode) SetDown(down bool) {
	n.mu.Lock()
	n.down = down
	n.mu.Unlock()
}

func (n *FakeNode) SetBalance(account string, balance uint64) {
	n.mu.Lock()
	n.balances[account] = balance
	n.mu.Unlock()
}

// Calls returns the number of HTTP requests served, including failed ones.
func (n *FakeNode) Calls() int {
	return int(atomic.LoadInt64(&n.calls))
}

func (n *FakeNode) state() (uint64, string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.height, n.clientVersion, n.syncing
}

// Eth serves the eth_ namespace.
type Eth struct{ n *FakeNode }

func (e *Eth) BlockNumber() hexutil.Uint64 {
	height, _, _ := e.n.state()
	return hexutil.Uint64(height)
}

func (e *Eth) Syncing() interface{} {
	height, _, syncing := e.n.state()
	if !syncing {
		return false
	}
	return map[string]hexutil.Uint64{
		"currentBlock": hexutil.Uint64(height),
		"highestBlock": hexutil.Uint64(height + 100),
	}
}

// GetBalance ignores the block parameter.
func (e *Eth) GetBalance(account string, block *string) (hexutil.Uint64, error) {
	e.n.mu.Lock()
	defer e.n.mu.Unlock()
	balance, ok := e.n.balances[account]
	if !ok {
		return 0, ErrAccountNotFound
	}
	return hexutil.Uint64(balance), nil
}

// Web3 serves the web3_ namespace.
type Web3 struct{ n *FakeNode }

func (w *Web3) ClientVersion() (string, error) {
	_, clientVersion, _ := w.n.state()
	if clientVersion == "" {
		return "", errors.New("method not supported")
	}
	return clientVersion, nil
}

// Bitcoind serves the unprefixed bitcoind methods.
type Bitcoind struct{ n *FakeNode }

func (b *Bitcoind) Getblockchaininfo() map[string]interface{} {
	height, _, syncing := b.n.state()
	return map[string]interface{}{
		"chain":                "main",
		"blocks":               height,
		"headers":              height,
		"initialblockdownload": syncing,
	}
}

func (b *Bitcoind) Getnetworkinfo() map[string]interface{} {
	_, clientVersion, _ := b.n.state()
	return map[string]interface{}{
		"version":    250000,
		"subversion": clientVersion,
	}
}

// Handler returns the http.Handler for the fake.
func (n *FakeNode) Handler() http.Handler {
	srv := &jsonrpc2.HTTPServer{}
	for prefix, receiver := range map[string]interface{}{
		"eth_":  &Eth{n},
		"web3_": &Web3{n},
		"":      &Bitcoind{n},
	} {
		if err := srv.Register(prefix, receiver); err != nil {
			panic(err)
		}
	}
	wsHandler := ws.Handler(&srv.Server)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/node/status", n.serveStatus)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) {
			wsHandler(w, r)
			return
		}
		srv.ServeHTTP(w, r)
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&n.calls, 1)
		n.mu.Lock()
		down := n.down
		n.mu.Unlock()
		if down {
			http.Error(w, "node is down", http.StatusServiceUnavailable)
			return
		}
		mux.ServeHTTP(w, r)
	})
}

func (n *FakeNode) serveStatus(w http.ResponseWriter, r *http.Request) {
	height, clientVersion, _ := n.state()
	resp := map[string]interface{}{
		"success": true,
		"network": map[string]interface{}{"height": height},
		"version": map[string]interface{}{"version": clientVersion},
		"wsClient": map[string]interface{}{
			"enabled": true,
			"port":    36668,
		},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Serve starts an httptest server for the fake. Callers must Close it.
func (n *FakeNode) Serve() *httptest.Server {
	return httptest.NewServer(n.Handler())
}
