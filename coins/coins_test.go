package coins

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vipnode/nodehealth/internal/fakecore"
	"github.com/vipnode/nodehealth/node"
	"github.com/vipnode/nodehealth/probe"
)

func TestBuiltin(t *testing.T) {
	for name, n := range Builtin() {
		if n.Name != name {
			t.Errorf("%s: mismatched name %q", name, n.Name)
		}
		nodes, err := n.Nodes()
		if err != nil {
			t.Errorf("%s: %s", name, err)
			continue
		}
		if len(nodes) == 0 {
			t.Errorf("%s: no seeds", name)
		}
		if err := n.Params.WithDefaults().Validate(); err != nil {
			t.Errorf("%s: %s", name, err)
		}
		if _, err := n.Probe(fakecore.New()); err != nil {
			t.Errorf("%s: %s", name, err)
		}
	}
}

func TestProbeFamily(t *testing.T) {
	networks := Builtin()
	testcases := []struct {
		Network string
		Check   func(probe.Probe) bool
	}{
		{"eth", func(p probe.Probe) bool { _, ok := p.(*probe.EVM); return ok }},
		{"btc", func(p probe.Probe) bool { _, ok := p.(*probe.Bitcoin); return ok }},
		{"adm", func(p probe.Probe) bool { _, ok := p.(*probe.REST); return ok }},
	}
	for i, tc := range testcases {
		p, err := networks[tc.Network].Probe(fakecore.New())
		if err != nil {
			t.Fatalf("[case %d] %s", i, err)
		}
		if !tc.Check(p) {
			t.Errorf("[case %d] wrong probe for %s: %T", i, tc.Network, p)
		}
	}

	if _, err := (Network{Name: "doge", Family: "scrypt"}).Probe(fakecore.New()); err == nil {
		t.Error("expected unknown family error")
	}
}

func TestLoad(t *testing.T) {
	networks := Builtin()
	cfg := `
networks:
  eth:
    seeds:
      - main: https://eth.example.org
        alt: http://10.0.0.1:8545
    params:
      normal_update_interval: 2m
      threshold: 3
      min_node_version: 1.10.0
  local:
    family: evm
    seeds:
      - main: http://localhost:8545
    params:
      normal_update_interval: 1m
      crucial_update_interval: 5s
      onscreen_update_interval: 5s
`
	if err := Load(strings.NewReader(cfg), networks); err != nil {
		t.Fatal(err)
	}

	eth := networks["eth"]
	if len(eth.Seeds) != 1 || eth.Seeds[0].Alt != "http://10.0.0.1:8545" {
		t.Errorf("seeds were not replaced: %+v", eth.Seeds)
	}
	if eth.Params.NormalUpdateInterval != 2*time.Minute || eth.Params.Threshold != 3 {
		t.Errorf("params were not overridden: %+v", eth.Params)
	}
	if eth.Params.CrucialUpdateInterval != 30*time.Second {
		t.Errorf("unset params should be kept: %s", eth.Params.CrucialUpdateInterval)
	}
	if eth.Params.MinNodeVersion == nil || *eth.Params.MinNodeVersion != (node.Version{Major: 1, Minor: 10}) {
		t.Errorf("min version was not parsed: %v", eth.Params.MinNodeVersion)
	}

	local, ok := networks["local"]
	if !ok || local.Family != EVM {
		t.Fatalf("custom network was not added: %+v", local)
	}
	if len(networks["btc"].Seeds) != 2 {
		t.Error("untouched networks should be kept")
	}
}

func TestLoadErrors(t *testing.T) {
	testcases := []string{
		"networks:\n  doge:\n    seeds:\n      - main: https://doge.example.org\n",
		"networks:\n  eth:\n    seeds:\n      - main: ftp://eth.example.org\n",
		"networks:\n  eth:\n    params:\n      normal_update_interval: 1s\n",
		"networks:\n  eth:\n    bogus: true\n",
	}
	for i, cfg := range testcases {
		if err := Load(strings.NewReader(cfg), Builtin()); err == nil {
			t.Errorf("[case %d] expected error", i)
		}
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "networks.yaml")
	if err := os.WriteFile(path, []byte("networks:\n  btc:\n    params:\n      threshold: 4\n"), 0600); err != nil {
		t.Fatal(err)
	}
	networks, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := networks["btc"].Params.Threshold; got != 4 {
		t.Errorf("got threshold %d; want 4", got)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSelect(t *testing.T) {
	networks := Builtin()
	all, err := Select(networks)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].Name != "adm" {
		t.Errorf("unexpected networks: %v", all)
	}
	if _, err := Select(networks, "ETH"); err != nil {
		t.Error(err)
	}
	if _, err := Select(networks, "doge"); err == nil {
		t.Error("expected unknown network error")
	}
}

func TestHeartbeat(t *testing.T) {
	core := fakecore.New()
	origin := node.MustParseOrigin("https://node.example.org")
	var methods []string
	core.Handle(origin, func(ctx context.Context, method string, params []interface{}) (interface{}, error) {
		methods = append(methods, method)
		switch method {
		case "eth_blockNumber":
			return "0x10", nil
		case "getblockcount":
			return 16, nil
		}
		return map[string]interface{}{"success": true}, nil
	})

	networks := Builtin()
	for _, name := range []string{"eth", "btc", "adm"} {
		if err := networks[name].Heartbeat(context.Background(), core, origin); err != nil {
			t.Errorf("%s: %s", name, err)
		}
	}
	want := []string{"eth_blockNumber", "getblockcount", probe.DefaultStatusPath}
	if strings.Join(methods, ",") != strings.Join(want, ",") {
		t.Errorf("got requests %v; want %v", methods, want)
	}
}
