package node

import "testing"

func TestExtractVersion(t *testing.T) {
	testcases := []struct {
		client  string
		want    Version
		IsError bool
	}{
		{"Geth/v1.8.16-unstable/linux-amd64/go1.10.3", Version{1, 8, 16, "unstable"}, false},
		{"Geth/foo/v1.8.13-unstable/linux-amd64/go1.10.3", Version{1, 8, 13, "unstable"}, false},
		{"Parity-Ethereum//v2.0.5-stable-7dc4d349a1-20180917/x86_64-linux-gnu/rustc1.29.0", Version{2, 0, 5, "stable-7dc4d349a1-20180917"}, false},
		{"pantheon/v1.1.3-dev-1d4946cd/linux-x86_64/oracle-java-11", Version{1, 1, 3, "dev-1d4946cd"}, false},
		{"/Satoshi:25.0.0/", Version{25, 0, 0, ""}, false},
		{"0.8.0", Version{0, 8, 0, ""}, false},
		{"v3.3", Version{3, 3, 0, ""}, false},
		{"Nethermind/v1.25.4+20b10b35/linux-x64/dotnet8.0.2", Version{1, 25, 4, ""}, false},
		{"somenode", Version{}, true},
		{"", Version{}, true},
	}

	for i, tc := range testcases {
		got, err := ExtractVersion(tc.client)
		if err != nil {
			if !tc.IsError {
				t.Errorf("[case %d] unexpected error: %s", i, err)
			}
			continue
		} else if tc.IsError {
			t.Errorf("[case %d] missing expected error", i)
			continue
		}
		if got != tc.want {
			t.Errorf("[case %d] got: %+v; want %+v", i, got, tc.want)
		}
	}
}

func TestVersionCompare(t *testing.T) {
	testcases := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.0", "1.0.1", -1},
		{"1.2.0", "1.10.0", -1},
		{"2.0.0", "1.99.99", 1},
		{"v0.8.0-beta", "0.8.0", 0},
	}

	for i, tc := range testcases {
		a, err := ParseVersion(tc.a)
		if err != nil {
			t.Fatal(err)
		}
		b, err := ParseVersion(tc.b)
		if err != nil {
			t.Fatal(err)
		}
		if got := a.Compare(b); got != tc.want {
			t.Errorf("[case %d] %s <=> %s: got %d; want %d", i, tc.a, tc.b, got, tc.want)
		}
		if got, want := a.Less(b), tc.want < 0; got != want {
			t.Errorf("[case %d] %s < %s: got %v", i, tc.a, tc.b, got)
		}
	}
}
