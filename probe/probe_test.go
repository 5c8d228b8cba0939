package probe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vipnode/nodehealth/api"
	"github.com/vipnode/nodehealth/internal/fakecore"
	"github.com/vipnode/nodehealth/internal/fakenode"
	"github.com/vipnode/nodehealth/node"
)

// fakeClock advances by step on every reading.
func fakeClock(step time.Duration) func() time.Time {
	t := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(step)
		return t
	}
}

func TestEVMProbe(t *testing.T) {
	fake := fakenode.Node(42, "Geth/v1.13.5-stable-916d6a44/linux-amd64/go1.21.4")
	ts := fake.Serve()
	defer ts.Close()

	p := NewEVM(api.NewHTTPCore(time.Second, 0))
	p.nowFn = fakeClock(10 * time.Millisecond)
	p.CheckWebsocket = true

	n := node.New(node.MustParseOrigin(ts.URL), nil)
	info, err := p.Probe(context.Background(), n)
	if err != nil {
		t.Fatal(err)
	}
	if info.Height == nil || *info.Height != 42 {
		t.Errorf("wrong height: %v", info.Height)
	}
	if info.Ping != 10*time.Millisecond {
		t.Errorf("wrong ping: %s", info.Ping)
	}
	if want := (node.Version{Major: 1, Minor: 13, Patch: 5, Pre: "stable-916d6a44"}); info.Version == nil || *info.Version != want {
		t.Errorf("wrong version: %v", info.Version)
	}
	if info.Syncing {
		t.Error("node should not be syncing")
	}
	if !info.WSEnabled {
		t.Error("websocket should be detected")
	}

	fake.SetSyncing(true)
	info, err = p.Probe(context.Background(), n)
	if err != nil {
		t.Fatal(err)
	}
	if !info.Syncing {
		t.Error("node should be syncing")
	}
}

func TestEVMProbeMissingVersion(t *testing.T) {
	fake := fakenode.Node(7, "")
	ts := fake.Serve()
	defer ts.Close()

	p := NewEVM(api.NewHTTPCore(time.Second, 0))
	info, err := p.Probe(context.Background(), node.New(node.MustParseOrigin(ts.URL), nil))
	if err != nil {
		t.Fatal(err)
	}
	if info.Version != nil {
		t.Errorf("version should be unknown: %v", info.Version)
	}
	if info.Height == nil || *info.Height != 7 {
		t.Errorf("wrong height: %v", info.Height)
	}
}

func TestBitcoinProbe(t *testing.T) {
	fake := fakenode.Node(800000, "/Satoshi:25.0.0/")
	ts := fake.Serve()
	defer ts.Close()

	p := NewBitcoin(api.NewHTTPCore(time.Second, 0))
	info, err := p.Probe(context.Background(), node.New(node.MustParseOrigin(ts.URL), nil))
	if err != nil {
		t.Fatal(err)
	}
	if info.Height == nil || *info.Height != 800000 {
		t.Errorf("wrong height: %v", info.Height)
	}
	if want := (node.Version{Major: 25}); info.Version == nil || *info.Version != want {
		t.Errorf("wrong version: %v", info.Version)
	}
}

func TestRESTProbe(t *testing.T) {
	fake := fakenode.Node(1234, "0.8.0")
	ts := fake.Serve()
	defer ts.Close()

	p := NewREST(api.NewHTTPCore(time.Second, 0))
	info, err := p.Probe(context.Background(), node.New(node.MustParseOrigin(ts.URL), nil))
	if err != nil {
		t.Fatal(err)
	}
	if info.Height == nil || *info.Height != 1234 {
		t.Errorf("wrong height: %v", info.Height)
	}
	if want := (node.Version{Minor: 8}); info.Version == nil || *info.Version != want {
		t.Errorf("wrong version: %v", info.Version)
	}
	if !info.WSEnabled || info.WSPort != 36668 {
		t.Errorf("wrong websocket info: %v %d", info.WSEnabled, info.WSPort)
	}
}

func TestRESTProbeOptionalFields(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true}`))
	}))
	defer ts.Close()

	p := NewREST(api.NewHTTPCore(time.Second, 0))
	info, err := p.Probe(context.Background(), node.New(node.MustParseOrigin(ts.URL), nil))
	if err != nil {
		t.Fatal(err)
	}
	if info.Height != nil || info.Version != nil || info.WSEnabled {
		t.Errorf("missing fields should be empty: %+v", info)
	}
}

func TestProbeErrors(t *testing.T) {
	down := fakenode.Node(1, "Geth/v1.0.0")
	down.SetDown(true)
	downServer := down.Serve()
	defer downServer.Close()

	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`this is not json`))
	}))
	defer garbage.Close()

	core := api.NewHTTPCore(time.Second, 0)
	probes := map[string]Probe{
		"evm":     NewEVM(core),
		"bitcoin": NewBitcoin(core),
		"rest":    NewREST(core),
	}

	testcases := []struct {
		URL  string
		Kind Kind
	}{
		{downServer.URL, KindNetwork},
		{garbage.URL, KindParsingFailed},
	}

	for name, p := range probes {
		for i, tc := range testcases {
			_, err := p.Probe(context.Background(), node.New(node.MustParseOrigin(tc.URL), nil))
			if got := KindOf(err); got != tc.Kind {
				t.Errorf("[%s case %d] got kind %s; want %s: %v", name, i, got, tc.Kind, err)
			}
		}
	}
}

func TestProbeUsesPreferredOrigin(t *testing.T) {
	down := fakenode.Node(1, "")
	down.SetDown(true)
	mainServer := down.Serve()
	defer mainServer.Close()

	up := fakenode.Node(5, "")
	altServer := up.Serve()
	defer altServer.Close()

	alt := node.MustParseOrigin(altServer.URL)
	n := node.New(node.MustParseOrigin(mainServer.URL), &alt)
	n.PreferMainOrigin = node.Bool(false)

	p := NewEVM(api.NewHTTPCore(time.Second, 0))
	info, err := p.Probe(context.Background(), n)
	if err != nil {
		t.Fatal(err)
	}
	if *info.Height != 5 {
		t.Errorf("probe should hit the alt origin, got height %d", *info.Height)
	}
}

// healthyHandler answers the health requests of every probe family.
func healthyHandler(origin node.Origin) fakecore.Handler {
	return func(ctx context.Context, method string, params []interface{}) (interface{}, error) {
		switch method {
		case "eth_blockNumber":
			return "0x2a", nil
		case "web3_clientVersion":
			return "Geth/v1.13.5-stable/linux-amd64/go1.21.4", nil
		case "eth_syncing":
			return false, nil
		case "getblockchaininfo":
			return map[string]interface{}{"blocks": 42}, nil
		case "getnetworkinfo":
			return map[string]interface{}{"subversion": "/Satoshi:25.0.0/"}, nil
		case DefaultStatusPath:
			return map[string]interface{}{"network": map[string]interface{}{"height": 42}}, nil
		}
		return nil, &api.Error{Kind: api.KindApplication, Origin: origin, Err: errors.New("method not found")}
	}
}

func TestProbeFallsBackToAlt(t *testing.T) {
	main := node.MustParseOrigin("https://node.example.org")
	alt := node.MustParseOrigin("http://10.0.0.1:8545")
	n := node.New(main, &alt)

	for _, family := range []string{"evm", "bitcoin", "rest"} {
		core := fakecore.New()
		core.Fail(main, api.KindConnection)
		core.Handle(alt, healthyHandler(alt))
		probes := map[string]Probe{
			"evm":     NewEVM(core),
			"bitcoin": NewBitcoin(core),
			"rest":    NewREST(core),
		}

		info, err := probes[family].Probe(context.Background(), n)
		if err != nil {
			t.Errorf("[%s] expected the alt origin to answer: %s", family, err)
			continue
		}
		if info.Height == nil || *info.Height != 42 {
			t.Errorf("[%s] wrong height: %v", family, info.Height)
		}
		if info.Origin != alt {
			t.Errorf("[%s] got origin %s; want %s", family, info.Origin, alt)
		}
	}

	// Only network failures move on to the other origin.
	core := fakecore.New()
	core.Reply(main, "not a block number")
	core.Handle(alt, healthyHandler(alt))
	_, err := NewEVM(core).Probe(context.Background(), n)
	if KindOf(err) != KindParsingFailed {
		t.Errorf("expected a parsing failure from main, got: %v", err)
	}
	if calls := core.Calls(alt); calls != 0 {
		t.Errorf("alt origin should not be tried after a parsing failure, got %d calls", calls)
	}

	// Both origins down.
	core = fakecore.New()
	core.Fail(main, api.KindConnection)
	core.Fail(alt, api.KindTimeout)
	_, err = NewEVM(core).Probe(context.Background(), n)
	if KindOf(err) != KindNetwork {
		t.Errorf("expected a network failure, got: %v", err)
	}
	if core.Calls(main) == 0 || core.Calls(alt) == 0 {
		t.Errorf("expected both origins to be tried: %v", core.Requests())
	}

	// A healthy main origin answers without touching alt.
	core = fakecore.New()
	core.Handle(main, healthyHandler(main))
	core.Handle(alt, healthyHandler(alt))
	info, err := NewEVM(core).Probe(context.Background(), n)
	if err != nil {
		t.Fatal(err)
	}
	if info.Origin != main || core.Calls(alt) != 0 {
		t.Errorf("expected only main to be probed, got origin %s and %d alt calls", info.Origin, core.Calls(alt))
	}
}

func TestParseClient(t *testing.T) {
	testcases := []struct {
		Raw     string
		Kind    ClientKind
		Version string
	}{
		{"Geth/v1.8.16-unstable/linux-amd64/go1.10.3", Geth, "1.8.16-unstable"},
		{"Parity-Ethereum//v2.0.5-stable-7dc4d349a1-20180917/x86_64-linux-gnu/rustc1.29.0", Parity, "2.0.5-stable-7dc4d349a1-20180917"},
		{"pantheon/v1.1.3-dev-1d4946cd/linux-x86_64/oracle-java-11", Besu, "1.1.3-dev-1d4946cd"},
		{"erigon/2.48.1/linux-amd64/go1.20.5", Erigon, "2.48.1"},
		{"/Satoshi:25.0.0/", BitcoinCore, "25.0.0"},
		{"somenode", UnknownClient, ""},
	}

	for i, tc := range testcases {
		c := ParseClient(tc.Raw)
		if c.Kind != tc.Kind {
			t.Errorf("[case %d] got kind %s; want %s", i, c.Kind, tc.Kind)
		}
		var version string
		if c.Version != nil {
			version = c.Version.String()
		}
		if version != tc.Version {
			t.Errorf("[case %d] got version %q; want %q", i, version, tc.Version)
		}
	}
}
