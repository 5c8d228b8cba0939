package node

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidVersion is returned when a version string can't be parsed.
var ErrInvalidVersion = errors.New("invalid version")

// Version is a semantic version reported by a node.
type Version struct {
	Major int
	Minor int
	Patch int
	Pre   string // Pre-release suffix, such as "stable" or "beta.1"
}

// ParseVersion parses a single "[v]MAJOR.MINOR[.PATCH][-PRE][+BUILD]" token.
func ParseVersion(s string) (Version, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "v")
	if i := strings.IndexByte(s, '+'); i >= 0 {
		s = s[:i]
	}
	var v Version
	if i := strings.IndexByte(s, '-'); i >= 0 {
		v.Pre = s[i+1:]
		s = s[:i]
	}
	parts := strings.Split(s, ".")
	if len(parts) < 2 || len(parts) > 3 {
		return Version{}, ErrInvalidVersion
	}
	nums := [3]int{}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, ErrInvalidVersion
		}
		nums[i] = n
	}
	v.Major, v.Minor, v.Patch = nums[0], nums[1], nums[2]
	return v, nil
}

// ExtractVersion finds the first version token inside a client identifier
// such as "Geth/v1.13.5-stable-916d6a44/linux-amd64/go1.21.4" or
// "/Satoshi:25.0.0/".
func ExtractVersion(client string) (Version, error) {
	fields := strings.FieldsFunc(client, func(r rune) bool {
		return r == '/' || r == ':' || r == ' ' || r == '(' || r == ')'
	})
	for _, f := range fields {
		if f == "" || !(f[0] == 'v' || (f[0] >= '0' && f[0] <= '9')) {
			continue
		}
		if v, err := ParseVersion(f); err == nil {
			return v, nil
		}
	}
	return Version{}, fmt.Errorf("%w: no version in %q", ErrInvalidVersion, client)
}

// Compare returns -1, 0, or 1 depending on whether v is lower, equal, or
// higher than o. Pre-release suffixes are not ordered, only major, minor and
// patch numbers are compared.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major != o.Major:
		return cmpInt(v.Major, o.Major)
	case v.Minor != o.Minor:
		return cmpInt(v.Minor, o.Minor)
	default:
		return cmpInt(v.Patch, o.Patch)
	}
}

// Less returns true if v is lower than o.
func (v Version) Less(o Version) bool {
	return v.Compare(o) < 0
}

func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Pre != "" {
		s += "-" + v.Pre
	}
	return s
}

func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *Version) UnmarshalText(text []byte) error {
	parsed, err := ParseVersion(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func cmpInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}
