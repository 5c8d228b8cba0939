package pretty

import (
	"math/big"
	"testing"
	"time"

	"github.com/vipnode/nodehealth/node"
)

func TestEther(t *testing.T) {
	cases := []struct {
		Amount *big.Int
		Want   string
	}{
		{big.NewInt(0), "0 wei"},
		{big.NewInt(120), "120 wei"},
		{big.NewInt(5000000000), "5 gwei"},
		{big.NewInt(500000), "0.0005 gwei"},
		{big.NewInt(-10000000), "-0.01 gwei"},
		{new(big.Int).Mul(ethInWei, big.NewInt(15)), "15 ether"},
	}

	for i, tc := range cases {
		got := Ether(*tc.Amount).String()
		if got != tc.Want {
			t.Errorf("case #%d: got: %q; want %q", i, got, tc.Want)
		}
	}
}

func TestFormat(t *testing.T) {
	cases := []struct {
		Got  string
		Want string
	}{
		{Abbrev("https://node.example.org", 10), "https://n…"},
		{Abbrev("short", 10), "short"},
		{Ping(nil), "-"},
		{Ping(node.Duration(1500 * time.Microsecond)), "1.5ms"},
		{Ping(node.Duration(120 * time.Millisecond)), "120ms"},
		{Uint(nil), "-"},
		{Uint(node.Uint64(42)), "42"},
		{String(node.Version{Major: 1, Minor: 2}, true), "1.2.0"},
		{String(nil, false), "-"},
	}
	for i, tc := range cases {
		if tc.Got != tc.Want {
			t.Errorf("case #%d: got: %q; want %q", i, tc.Got, tc.Want)
		}
	}
}
