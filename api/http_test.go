package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vipnode/nodehealth/jsonrpc2"
	"github.com/vipnode/nodehealth/node"
)

type Chain struct{}

func (c *Chain) BlockNumber() string {
	return "0x2a"
}

func (c *Chain) GetBalance(addr string) (string, error) {
	return "", &jsonrpc2.ErrResponse{Code: -32000, Message: "account not found"}
}

func rpcServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := &jsonrpc2.HTTPServer{}
	if err := srv.Register("eth_", &Chain{}); err != nil {
		t.Fatal(err)
	}
	return httptest.NewServer(srv)
}

func TestHTTPCoreCall(t *testing.T) {
	ts := rpcServer(t)
	defer ts.Close()

	core := NewHTTPCore(time.Second, 0)
	origin := node.MustParseOrigin(ts.URL)
	ctx := context.Background()

	var height string
	if err := core.Call(ctx, origin, &height, "eth_blockNumber"); err != nil {
		t.Fatal(err)
	}
	if height != "0x2a" {
		t.Errorf("got: %q", height)
	}

	err := core.Call(ctx, origin, nil, "eth_getBalance", "0x00")
	if got := KindOf(err); got != KindApplication {
		t.Errorf("application error: got kind %s; %v", got, err)
	}
	if IsNetwork(err) {
		t.Error("application error must not be a network error")
	}
	if !jsonrpc2.IsErrResponse(err) {
		t.Errorf("application error should unwrap to the rpc error: %v", err)
	}

	var wrong int
	err = core.Call(ctx, origin, &wrong, "eth_blockNumber")
	if got := KindOf(err); got != KindDecode {
		t.Errorf("decode error: got kind %s; %v", got, err)
	}

	elems := []jsonrpc2.BatchElem{
		{Method: "eth_blockNumber", Result: &height},
		{Method: "eth_getBalance", Params: []interface{}{"0x00"}},
	}
	if err := core.Batch(ctx, origin, elems); err != nil {
		t.Fatal(err)
	}
	if elems[0].Error != nil {
		t.Errorf("unexpected batch error: %s", elems[0].Error)
	}
	if got := KindOf(elems[1].Error); got != KindApplication {
		t.Errorf("batch application error: got kind %s", got)
	}
}

func TestClassification(t *testing.T) {
	unavailable := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer unavailable.Close()

	notFound := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer notFound.Close()

	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>not json</html>")
	}))
	defer garbage.Close()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()

	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	core := NewHTTPCore(200*time.Millisecond, 0)

	testcases := []struct {
		URL     string
		Kind    Kind
		Network bool
	}{
		{unavailable.URL, KindServer, true},
		{notFound.URL, KindApplication, false},
		{garbage.URL, KindDecode, false},
		{slow.URL, KindTimeout, true},
		{closedURL, KindConnection, true},
	}

	for i, tc := range testcases {
		origin := node.MustParseOrigin(tc.URL)
		for _, call := range []func() error{
			func() error { return core.Call(context.Background(), origin, nil, "eth_blockNumber") },
			func() error {
				var out map[string]interface{}
				return core.Get(context.Background(), origin, "/api/node/status", &out)
			},
		} {
			err := call()
			if got := KindOf(err); got != tc.Kind {
				t.Errorf("[case %d] got kind %s; want %s: %v", i, got, tc.Kind, err)
			}
			if got := IsNetwork(err); got != tc.Network {
				t.Errorf("[case %d] IsNetwork got %v; want %v", i, got, tc.Network)
			}
		}
	}
}

func TestCancellationIsNotNetwork(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer ts.Close()

	core := NewHTTPCore(0, 0)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	err := core.Call(ctx, node.MustParseOrigin(ts.URL), nil, "eth_blockNumber")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got: %v", err)
	}
	if IsNetwork(err) {
		t.Error("cancellation must not be a network error")
	}
}

func TestRateLimit(t *testing.T) {
	ts := rpcServer(t)
	defer ts.Close()

	core := NewHTTPCore(time.Second, 1)
	origin := node.MustParseOrigin(ts.URL)

	// Burst is 2 at 1rps, the third call within the deadline can't proceed.
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	for i := 0; i < 2; i++ {
		if err := core.Call(ctx, origin, nil, "eth_blockNumber"); err != nil {
			t.Fatalf("[call %d] unexpected error: %s", i, err)
		}
	}
	err := core.Call(ctx, origin, nil, "eth_blockNumber")
	if err == nil {
		t.Fatal("missing expected rate limit error")
	}
	if got := KindOf(err); got != KindTimeout {
		t.Errorf("got kind %s; %v", got, err)
	}
}
