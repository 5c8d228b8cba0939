package node

import (
	"errors"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Origin is a resolved, request-ready endpoint: a base URL plus an optional
// port override and path prefix.
type Origin struct {
	URL  string `json:"url"`
	Port int    `json:"port,omitempty"`
	Path string `json:"path,omitempty"`
}

// ParseOrigin takes an http(s) URL string and returns the Origin for it. Any
// path component of the URL becomes the origin's path prefix.
func ParseOrigin(raw string) (Origin, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Origin{}, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Origin{}, errors.New("invalid origin scheme: " + u.Scheme)
	}
	if u.Hostname() == "" {
		return Origin{}, errors.New("missing origin host: " + raw)
	}
	o := Origin{
		URL:  u.Scheme + "://" + u.Host,
		Path: strings.TrimSuffix(u.Path, "/"),
	}
	return o, nil
}

// MustParseOrigin is like ParseOrigin but panics on error. It is intended for
// static seed lists.
func MustParseOrigin(raw string) Origin {
	o, err := ParseOrigin(raw)
	if err != nil {
		panic(err)
	}
	return o
}

func (o Origin) base() (*url.URL, error) {
	u, err := url.Parse(o.URL)
	if err != nil {
		return nil, err
	}
	if o.Port != 0 {
		u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(o.Port))
	}
	u.Path = o.Path
	return u, nil
}

// Endpoint returns the full URL for requests against this origin, joined
// with an optional sub-path.
func (o Origin) Endpoint(subpath ...string) string {
	u, err := o.base()
	if err != nil {
		return o.URL
	}
	for _, p := range subpath {
		if p == "" {
			continue
		}
		u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(p, "/")
	}
	return u.String()
}

// WebsocketEndpoint returns the ws:// or wss:// URL on the given port. If
// port is 0, the origin's own port is used.
func (o Origin) WebsocketEndpoint(port int) string {
	u, err := o.base()
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	if port != 0 {
		u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(port))
	}
	return u.String()
}

func (o Origin) String() string {
	return o.Endpoint()
}
