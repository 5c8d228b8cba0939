package metrics

import (
	"io/ioutil"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vipnode/nodehealth/node"
)

func TestObserveNodes(t *testing.T) {
	m := New()

	a := node.New(node.MustParseOrigin("https://a.example.org"), nil)
	a.Status = node.Allowed
	a.Height = node.Uint64(100)
	a.Ping = node.Duration(250 * time.Millisecond)
	b := node.New(node.MustParseOrigin("https://b.example.org"), nil)

	m.ObserveNodes("eth", []node.Node{a, b})
	m.ObserveRefresh("eth", time.Second)
	m.ProbeStarted("eth")
	m.ProbeDone("eth", "network")

	// Status changes replace the previous label.
	a.Status = node.Offline
	m.ObserveNodes("eth", []node.Node{a, b})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := ioutil.ReadAll(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	out := string(body)

	for _, want := range []string{
		`nodehealth_node_height{network="eth",node="https://a.example.org"} 100`,
		`nodehealth_node_ping_seconds{network="eth",node="https://a.example.org"} 0.25`,
		`nodehealth_node_status{network="eth",node="https://a.example.org",status="offline"} 1`,
		`nodehealth_allowed_nodes{network="eth"} 0`,
		`nodehealth_refreshes_total{network="eth"} 1`,
		`nodehealth_probe_failures_total{kind="network",network="eth"} 1`,
		`nodehealth_probes_in_flight{network="eth"} 0`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing metric: %s", want)
		}
	}
	if strings.Contains(out, `status="allowed"`) {
		t.Error("stale status label was not removed")
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveNodes("eth", nil)
	m.ObserveRefresh("eth", time.Second)
	m.ProbeStarted("eth")
	m.ProbeDone("eth", "")
	m.Demoted("eth")
	m.FailedOver("eth", "node")
}
