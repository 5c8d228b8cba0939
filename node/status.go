package node

import "fmt"

// Status is a node's connection status as judged by the last probe cycle.
type Status int

const (
	Allowed Status = iota
	Synchronizing
	Outdated
	Offline
	NotExists
)

func (s Status) String() string {
	switch s {
	case Allowed:
		return "allowed"
	case Synchronizing:
		return "synchronizing"
	case Outdated:
		return "outdated"
	case Offline:
		return "offline"
	case NotExists:
		return "not_exists"
	default:
		return "unknown"
	}
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(s string) (Status, error) {
	for st := Allowed; st <= NotExists; st++ {
		if st.String() == s {
			return st, nil
		}
	}
	return Offline, fmt.Errorf("unknown node status: %q", s)
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	st, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}
