package headercodec

import (
	"fmt"
	"net/url"
	"strings"
)

// Logical URI schemes and the physical schemes they are carried over.
const (
	SchemeMALHTTP  = "malhttp"
	SchemeMALHTTPS = "malhttps"
)

// Destination holds the optional wire fields describing where a message goes.
type Destination struct {
	Host          string
	RequestTarget string
	URITo         string
}

// PhysicalScheme maps a logical scheme onto the HTTP scheme that carries it.
// Other schemes are returned unchanged.
func PhysicalScheme(scheme string) string {
	switch strings.ToLower(scheme) {
	case SchemeMALHTTP:
		return "http"
	case SchemeMALHTTPS:
		return "https"
	}
	return scheme
}

// LogicalScheme is the inverse of PhysicalScheme.
func LogicalScheme(scheme string) string {
	switch strings.ToLower(scheme) {
	case "http":
		return SchemeMALHTTP
	case "https":
		return SchemeMALHTTPS
	}
	return scheme
}

// ToPhysical rewrites the scheme of a logical URI to its HTTP scheme.
func ToPhysical(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", malformed(HeaderURITo, uri, err)
	}
	if u.Host == "" {
		return "", malformed(HeaderURITo, uri, fmt.Errorf("no host"))
	}
	u.Scheme = PhysicalScheme(u.Scheme)
	return u.String(), nil
}

// ToLogical rewrites an http or https URI to its logical scheme. Anything else,
// including unparseable input, is returned unchanged.
func ToLogical(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Host == "" {
		return uri
	}
	scheme := LogicalScheme(u.Scheme)
	if scheme == u.Scheme {
		return uri
	}
	u.Scheme = scheme
	return u.String()
}

// SplitDestination chooses the wire fields for a message addressed to uriTo and
// carried to the physical endpoint. When physical is empty it is derived from
// uriTo. If both name the same place only Host and RequestTarget are needed;
// otherwise the full logical URI travels in URITo next to the physical Host.
func SplitDestination(uriTo, physical string) (Destination, error) {
	if uriTo == "" {
		return Destination{}, missing(HeaderURITo)
	}
	derived, err := ToPhysical(uriTo)
	if err != nil {
		return Destination{}, err
	}
	if physical == "" {
		physical = derived
	}
	pu, err := url.Parse(physical)
	if err != nil || pu.Host == "" {
		return Destination{}, malformed(HeaderHost, physical, err)
	}
	if sameEndpoint(derived, physical) {
		target := pu.Path
		if target == "" {
			target = "/"
		}
		return Destination{Host: pu.Host, RequestTarget: target}, nil
	}
	return Destination{Host: pu.Host, URITo: uriTo}, nil
}

// JoinDestination is the inverse of SplitDestination. scheme is the logical scheme
// used when the destination has to be rebuilt from Host and RequestTarget. An
// empty result means the destination is unknown.
func JoinDestination(scheme string, d Destination) string {
	if d.URITo != "" {
		return d.URITo
	}
	if d.Host == "" || d.RequestTarget == "" {
		return ""
	}
	u := url.URL{Scheme: scheme, Host: d.Host, Path: d.RequestTarget}
	return u.String()
}

func sameEndpoint(a, b string) bool {
	return strings.TrimSuffix(a, "/") == strings.TrimSuffix(b, "/")
}
