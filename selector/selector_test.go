package selector

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vipnode/nodehealth/node"
)

func allowed(ping time.Duration) node.Node {
	n := node.New(node.Origin{URL: "https://" + uuid.NewString() + ".example.org"}, nil)
	n.Status = node.Allowed
	n.Ping = node.Duration(ping)
	return n
}

func TestSelectOnlyAllowed(t *testing.T) {
	nodes := []node.Node{}
	for _, st := range []node.Status{node.Synchronizing, node.Outdated, node.Offline, node.NotExists} {
		n := allowed(time.Millisecond)
		n.Status = st
		nodes = append(nodes, n)
	}
	disabled := allowed(time.Microsecond)
	disabled.IsEnabled = false
	nodes = append(nodes, disabled)

	r := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		for _, opts := range []Options{
			{},
			{SortedBySpeed: true},
			{NeedsWebsocket: true, WebsocketFallback: true, Rand: r},
		} {
			if n, ok := Select(nodes, opts); ok {
				t.Fatalf("selected ineligible node: %s", n)
			}
		}
	}

	good := allowed(time.Second)
	nodes = append(nodes, good)
	for i := 0; i < 50; i++ {
		n, ok := Select(nodes, Options{Rand: r})
		if !ok || n.ID != good.ID {
			t.Fatalf("expected the only allowed node, got: %v %v", n, ok)
		}
	}
}

func TestSelectFastest(t *testing.T) {
	nodes := []node.Node{
		allowed(500 * time.Millisecond),
		allowed(100 * time.Millisecond),
		allowed(300 * time.Millisecond),
	}
	n, ok := Select(nodes, Options{SortedBySpeed: true})
	if !ok {
		t.Fatal("no node selected")
	}
	if n.ID != nodes[1].ID {
		t.Errorf("got ping %s; want 100ms", *n.Ping)
	}

	// Excluding the fastest picks the next one.
	n, _ = Select(nodes, Options{SortedBySpeed: true, Excluding: map[uuid.UUID]struct{}{nodes[1].ID: {}}})
	if n.ID != nodes[2].ID {
		t.Errorf("got ping %s; want 300ms", *n.Ping)
	}
}

func TestSelectNilPingLast(t *testing.T) {
	noPing := allowed(0)
	noPing.Ping = nil
	nodes := []node.Node{noPing, allowed(time.Second)}
	n, _ := Select(nodes, Options{SortedBySpeed: true})
	if n.ID != nodes[1].ID {
		t.Errorf("node without ping should sort last")
	}
}

func TestSelectWebsocket(t *testing.T) {
	plain := allowed(time.Millisecond)
	ws := allowed(time.Second)
	ws.WSEnabled = true

	n, ok := Select([]node.Node{plain, ws}, Options{SortedBySpeed: true, NeedsWebsocket: true})
	if !ok || n.ID != ws.ID {
		t.Errorf("expected the websocket node")
	}

	if _, ok := Select([]node.Node{plain}, Options{NeedsWebsocket: true}); ok {
		t.Error("no fallback should be applied unless enabled")
	}
	n, ok = Select([]node.Node{plain}, Options{NeedsWebsocket: true, WebsocketFallback: true})
	if !ok || n.ID != plain.ID {
		t.Error("fallback should drop the websocket requirement")
	}

	// Fallback must not loosen anything but the websocket filter.
	offline := plain
	offline.Status = node.Offline
	if _, ok := Select([]node.Node{offline}, Options{NeedsWebsocket: true, WebsocketFallback: true}); ok {
		t.Error("fallback selected an offline node")
	}
	excluded := map[uuid.UUID]struct{}{plain.ID: {}}
	if _, ok := Select([]node.Node{plain}, Options{NeedsWebsocket: true, WebsocketFallback: true, Excluding: excluded}); ok {
		t.Error("fallback selected an excluded node")
	}
}

func TestSelectRandomSpread(t *testing.T) {
	nodes := []node.Node{allowed(time.Millisecond), allowed(time.Millisecond), allowed(time.Millisecond)}
	r := rand.New(rand.NewSource(42))
	seen := map[uuid.UUID]int{}
	for i := 0; i < 300; i++ {
		n, _ := Select(nodes, Options{Rand: r})
		seen[n.ID]++
	}
	if len(seen) != len(nodes) {
		t.Errorf("random selection should reach every node: %v", seen)
	}
}

func TestRanked(t *testing.T) {
	offline := allowed(time.Microsecond)
	offline.Status = node.Offline
	nodes := []node.Node{allowed(300 * time.Millisecond), offline, allowed(100 * time.Millisecond)}
	got := Ranked(nodes)
	if len(got) != 2 || got[0] != nodes[2].ID || got[1] != nodes[0].ID {
		t.Errorf("wrong ranking: %v", got)
	}
}
