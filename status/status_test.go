package status

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/vipnode/nodehealth/jsonrpc2"
	"github.com/vipnode/nodehealth/node"
)

func compareJSON(t *testing.T, got, want interface{}) {
	t.Helper()

	gotBytes, err := json.Marshal(got)
	if err != nil {
		t.Errorf("compareJSON: failed to marshal got value: %s", err)
		return
	}
	wantBytes, err := json.Marshal(want)
	if err != nil {
		t.Errorf("compareJSON: failed to marshal want value: %s", err)
		return
	}

	if !bytes.Equal(gotBytes, wantBytes) {
		t.Errorf("compareJSON failed:\n got: %s\nwant: %s", gotBytes, wantBytes)
	}
}

type fakeSource struct {
	nodes      []node.Node
	refreshes  int
	refreshErr error
}

func (s *fakeSource) Network() string    { return "eth" }
func (s *fakeSource) Nodes() []node.Node { return s.nodes }
func (s *fakeSource) RefreshAll(ctx context.Context) error {
	s.refreshes++
	return s.refreshErr
}

func testNodes() []node.Node {
	a := node.New(node.MustParseOrigin("https://a.example.org"), nil)
	a.Status = node.Allowed
	a.Ping = node.Duration(1500 * time.Microsecond)
	a.Height = node.Uint64(100)
	a.Version = &node.Version{Major: 1, Minor: 13, Patch: 5}

	alt := node.MustParseOrigin("http://10.0.0.2:8545")
	b := node.New(node.MustParseOrigin("https://b.example.org"), &alt)
	b.Status = node.Allowed
	b.Ping = node.Duration(time.Millisecond)
	b.PreferMainOrigin = node.Bool(false)

	c := node.New(node.MustParseOrigin("https://c.example.org"), nil)
	return []node.Node{a, b, c}
}

func TestNetworkStatus(t *testing.T) {
	now := time.Now()
	src := &fakeSource{nodes: testNodes()}
	s := NetworkStatus{
		Source:        src,
		TimeStarted:   now,
		Version:       "foo",
		CacheDuration: time.Minute * 10,
	}

	r, err := s.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	pingA, pingB := 1.5, 1.0
	a, b, c := src.nodes[0], src.nodes[1], src.nodes[2]
	expected := &Response{
		TimeUpdated: r.TimeUpdated,
		TimeStarted: now,
		Version:     "foo",
		Network:     "eth",
		Nodes: []Node{
			{ShortID: ShortID(a.ID), Origin: "https://a.example.org", Status: node.Allowed, PingMS: &pingA, Height: node.Uint64(100), Version: "1.13.5", Enabled: true},
			{ShortID: ShortID(b.ID), Origin: "https://b.example.org", Status: node.Allowed, PingMS: &pingB, Enabled: true, UsingAlt: true},
			{ShortID: ShortID(c.ID), Origin: "https://c.example.org", Status: node.Offline, Enabled: true},
		},
		Preferred: []string{ShortID(b.ID), ShortID(a.ID)},
		Allowed:   2,
	}
	compareJSON(t, r, expected)

	// Cached
	src.nodes = nil
	if r2, _ := s.Status(context.Background()); r2 != r {
		t.Error("expected cached response")
	}
	if src.refreshes != 0 {
		t.Errorf("unexpected refresh: %d", src.refreshes)
	}
}

func TestNetworkStatusRefresh(t *testing.T) {
	src := &fakeSource{nodes: testNodes()}
	s := NetworkStatus{Source: src, RefreshOnMiss: true}

	if _, err := s.Status(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Status(context.Background()); err != nil {
		t.Fatal(err)
	}
	if src.refreshes != 2 {
		t.Errorf("expected a refresh per cache miss, got %d", src.refreshes)
	}

	src.refreshErr = errors.New("refresh failed")
	r, err := s.Refresh(context.Background())
	if err != src.refreshErr {
		t.Errorf("expected refresh error, got: %v", err)
	}
	if r == nil || r.Error != "refresh failed" {
		t.Errorf("error should be reported in the response: %+v", r)
	}
}

func TestService(t *testing.T) {
	src := &fakeSource{nodes: testNodes()}
	svc := &Service{ByNetwork: map[string]*NetworkStatus{
		"eth": {Source: src, CacheDuration: time.Minute},
		"btc": {Source: &fakeSource{}},
	}}

	rpc := jsonrpc2.Local{}
	if err := rpc.Server.Register("health_", svc); err != nil {
		t.Fatal(err)
	}

	var networks []string
	if err := rpc.Call(context.Background(), &networks, "health_networks"); err != nil {
		t.Fatal(err)
	}
	compareJSON(t, networks, []string{"btc", "eth"})

	var r Response
	if err := rpc.Call(context.Background(), &r, "health_status", "eth"); err != nil {
		t.Fatal(err)
	}
	if r.Allowed != 2 || len(r.Nodes) != 3 {
		t.Errorf("unexpected status: %+v", r)
	}

	if err := rpc.Call(context.Background(), &r, "health_refresh", "eth"); err != nil {
		t.Fatal(err)
	}
	if src.refreshes != 1 {
		t.Errorf("expected one refresh, got %d", src.refreshes)
	}

	err := rpc.Call(context.Background(), &r, "health_status", "doge")
	if !jsonrpc2.IsErrResponse(err) {
		t.Errorf("expected an error response, got: %v", err)
	}
}
