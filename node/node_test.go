package node

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func TestParseOrigin(t *testing.T) {
	testcases := []struct {
		Input     string
		IsError   bool
		Endpoint  string
		Websocket string
	}{
		{"https://ethnode1.example.org", false, "https://ethnode1.example.org", "wss://ethnode1.example.org"},
		{"https://ethnode1.example.org/", false, "https://ethnode1.example.org", "wss://ethnode1.example.org"},
		{"http://5.161.68.61:36666/rpc/", false, "http://5.161.68.61:36666/rpc", "ws://5.161.68.61:36666/rpc"},
		{"ftp://foo", true, "", ""},
		{"https://", true, "", ""},
	}

	for i, tc := range testcases {
		o, err := ParseOrigin(tc.Input)
		if err != nil {
			if !tc.IsError {
				t.Errorf("[case %d] unexpected error: %q", i, err)
			}
			continue
		} else if tc.IsError {
			t.Errorf("[case %d] missing expected error", i)
			continue
		}
		if got, want := o.Endpoint(), tc.Endpoint; got != want {
			t.Errorf("[case %d] Endpoint - got: %q; want %q", i, got, want)
		}
		if got, want := o.WebsocketEndpoint(0), tc.Websocket; got != want {
			t.Errorf("[case %d] WebsocketEndpoint - got: %q; want %q", i, got, want)
		}
	}
}

func TestOriginOverrides(t *testing.T) {
	o := Origin{URL: "https://node.example.org", Port: 8443, Path: "/api"}
	if got, want := o.Endpoint("node/status"), "https://node.example.org:8443/api/node/status"; got != want {
		t.Errorf("got: %q; want %q", got, want)
	}
	if got, want := o.WebsocketEndpoint(36668), "wss://node.example.org:36668/api"; got != want {
		t.Errorf("got: %q; want %q", got, want)
	}
}

func TestNodeOrigins(t *testing.T) {
	main := MustParseOrigin("https://main.example.org")
	alt := MustParseOrigin("http://10.0.0.1:8545")

	n := New(main, nil)
	if got := n.Origins(); !reflect.DeepEqual(got, []Origin{main}) {
		t.Errorf("no alt: got %v", got)
	}

	n = New(main, &alt)
	if got := n.Origins(); !reflect.DeepEqual(got, []Origin{main, alt}) {
		t.Errorf("no preference: got %v", got)
	}
	n.PreferMainOrigin = Bool(false)
	if got := n.Origins(); !reflect.DeepEqual(got, []Origin{alt, main}) {
		t.Errorf("prefer alt: got %v", got)
	}
	n.PreferMainOrigin = Bool(true)
	if got := n.Origins(); !reflect.DeepEqual(got, []Origin{main, alt}) {
		t.Errorf("prefer main: got %v", got)
	}
	if !n.IsAlt(alt) || n.IsAlt(main) {
		t.Error("IsAlt mismatch")
	}
}

func TestNodeClone(t *testing.T) {
	alt := MustParseOrigin("http://10.0.0.1:8545")
	n := New(MustParseOrigin("https://main.example.org"), &alt)
	n.Height = Uint64(42)
	n.Ping = Duration(time.Millisecond)
	n.Version = &Version{Major: 1}

	c := n.Clone()
	*c.Height = 43
	*c.Ping = time.Second
	c.Version.Major = 2
	c.Alt.URL = "http://changed"

	if *n.Height != 42 || *n.Ping != time.Millisecond || n.Version.Major != 1 || n.Alt.URL != alt.URL {
		t.Errorf("clone modified original: %+v", n)
	}
}

func TestStatusJSON(t *testing.T) {
	for st := Allowed; st <= NotExists; st++ {
		b, err := json.Marshal(st)
		if err != nil {
			t.Fatal(err)
		}
		var got Status
		if err := json.Unmarshal(b, &got); err != nil {
			t.Fatal(err)
		}
		if got != st {
			t.Errorf("got: %s; want %s", got, st)
		}
	}
	var st Status
	if err := json.Unmarshal([]byte(`"bogus"`), &st); err == nil {
		t.Error("missing expected error")
	}
}

func TestParamsValidate(t *testing.T) {
	p := Params{
		NormalUpdateInterval:   time.Minute,
		CrucialUpdateInterval:  10 * time.Second,
		OnScreenUpdateInterval: 30 * time.Second,
	}.WithDefaults()
	if err := p.Validate(); err != nil {
		t.Errorf("unexpected error: %s", err)
	}
	if p.MaxConcurrentProbes != DefaultMaxConcurrentProbes {
		t.Errorf("wrong default probe cap: %d", p.MaxConcurrentProbes)
	}
	if p.ServiceIntervals() != p.NodeIntervals() {
		t.Errorf("service intervals should default to node intervals: %+v", p.ServiceIntervals())
	}

	p.ProbeTimeout = 2 * time.Minute
	if err := p.Validate(); err == nil {
		t.Error("missing expected error for long probe timeout")
	}
}
