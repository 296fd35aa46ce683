package couchbase

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/couchbaselabs/gocbconnstr/v2"
)

// DefaultEndpoints is a single local node on the cluster management port.
const DefaultEndpoints = "http://127.0.0.1:8091/pools"

// ErrInvalidEndpoint is returned for endpoint lists that cannot be turned
// into a connection string.
var ErrInvalidEndpoint = errors.New("invalid endpoint")

var supportedSchemes = map[string]bool{
	"http":       true,
	"couchbase":  true,
	"couchbases": true,
}

// Endpoint is one connection target from an endpoint list.
type Endpoint struct {
	Scheme string
	Host   string
	// Port is 0 when the URI did not name one.
	Port int
}

// Address returns host[:port].
func (e Endpoint) Address() string {
	if e.Port == 0 {
		if strings.Contains(e.Host, ":") {
			return "[" + e.Host + "]"
		}
		return e.Host
	}
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func (e Endpoint) String() string {
	return e.Scheme + "://" + e.Address()
}

// bootstrap returns the scheme and address the SDK should dial for e. The
// SDK bootstraps over the key-value protocol only, so an http endpoint names
// a management port it cannot use: it becomes couchbase:// on the default
// key-value port.
func (e Endpoint) bootstrap() (string, string) {
	if e.Scheme == "http" {
		return "couchbase", Endpoint{Host: e.Host}.Address()
	}
	return e.Scheme, e.Address()
}

// ParseEndpoints splits a comma-separated list of URIs such as
// "http://a:8091/pools,http://b:8091/pools" into endpoints, keeping their
// order. Every entry needs a supported scheme and a host; paths are dropped.
func ParseEndpoints(list string) ([]Endpoint, error) {
	if strings.TrimSpace(list) == "" {
		return nil, fmt.Errorf("%w: endpoint list is empty", ErrInvalidEndpoint)
	}

	parts := strings.Split(list, ",")
	endpoints := make([]Endpoint, 0, len(parts))
	for _, part := range parts {
		raw := strings.TrimSpace(part)
		if raw == "" {
			return nil, fmt.Errorf("%w: empty entry in %q", ErrInvalidEndpoint, list)
		}

		e, err := parseEndpoint(raw)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, e)
	}

	return endpoints, nil
}

func parseEndpoint(raw string) (Endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %q: %v", ErrInvalidEndpoint, raw, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		return Endpoint{}, fmt.Errorf("%w: %q has no scheme", ErrInvalidEndpoint, raw)
	}
	if !supportedSchemes[scheme] {
		return Endpoint{}, fmt.Errorf("%w: %q has unsupported scheme %q", ErrInvalidEndpoint, raw, u.Scheme)
	}
	if u.Hostname() == "" {
		return Endpoint{}, fmt.Errorf("%w: %q has no host", ErrInvalidEndpoint, raw)
	}

	e := Endpoint{Scheme: scheme, Host: u.Hostname()}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return Endpoint{}, fmt.Errorf("%w: %q has invalid port %q", ErrInvalidEndpoint, raw, p)
		}
		e.Port = port
	}

	return e, nil
}

// ConnectionString merges endpoints into a single SDK connection string.
// http endpoints are rewritten to couchbase:// without their port, so
// "http://a:8091/pools,http://b:8091/pools" becomes "couchbase://a,b".
// All endpoints must resolve to the same scheme.
func ConnectionString(endpoints []Endpoint) (string, error) {
	if len(endpoints) == 0 {
		return "", fmt.Errorf("%w: no endpoints", ErrInvalidEndpoint)
	}

	scheme, _ := endpoints[0].bootstrap()
	addrs := make([]string, 0, len(endpoints))
	for _, e := range endpoints {
		s, addr := e.bootstrap()
		if s != scheme {
			return "", fmt.Errorf("%w: mixed schemes %q and %q", ErrInvalidEndpoint, scheme, s)
		}
		addrs = append(addrs, addr)
	}

	connStr := scheme + "://" + strings.Join(addrs, ",")
	if _, err := gocbconnstr.Parse(connStr); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidEndpoint, connStr, err)
	}

	return connStr, nil
}
