// Package origin implements the relay's browser-origin policy: Origin
// headers are canonicalized to scheme://host[:port] form and checked
// against either an explicit allowlist or the request's own host.
package origin

import (
	"net/url"
	"strconv"
	"strings"
)

// NormalizeHeader canonicalizes a browser Origin header.
//
// On success it returns the origin as scheme://host[:port] with the scheme
// and hostname lowercased and default ports stripped, plus the host[:port]
// part alone for same-host checks. The opaque Origin "null" passes through
// unchanged with an empty host. Only http and https origins are accepted.
func NormalizeHeader(originHeader string) (normalizedOrigin string, host string, ok bool) {
	trimmed := strings.TrimSpace(originHeader)
	if trimmed == "" {
		return "", "", false
	}
	if trimmed == "null" {
		return "null", "", true
	}

	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", "", false
	}
	// An Origin is an authority, nothing more.
	if u.User != nil || u.RawQuery != "" || u.Fragment != "" {
		return "", "", false
	}
	if u.Path != "" && u.Path != "/" {
		return "", "", false
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", "", false
	}

	hostname, rawPort, ok := splitHostPort(u.Host)
	if !ok {
		return "", "", false
	}
	host, ok = canonicalHost(hostname, rawPort, scheme)
	if !ok {
		return "", "", false
	}
	return scheme + "://" + host, host, true
}

// IsAllowed reports whether a normalized origin may reach the relay.
//
// With a non-empty allowlist, entries are matched literally: "*" admits
// everything, anything else must equal the normalized origin. With no
// allowlist the policy is same-host: the origin's host[:port] must equal
// the request's Host header once both are canonicalized.
func IsAllowed(normalizedOrigin, originHost, requestHost string, allowedOrigins []string) bool {
	if len(allowedOrigins) > 0 {
		for _, allowed := range allowedOrigins {
			if allowed == "*" || allowed == normalizedOrigin {
				return true
			}
		}
		return false
	}

	// The same-host comparison ignores the scheme: behind a TLS-terminating
	// proxy the request arrives as plain HTTP while the browser Origin stays
	// https. The origin's scheme still decides which default port folds away
	// on the request side.
	var scheme string
	switch {
	case strings.HasPrefix(normalizedOrigin, "http://"):
		scheme = "http"
	case strings.HasPrefix(normalizedOrigin, "https://"):
		scheme = "https"
	default:
		// "null" and anything unnormalized never match a host.
		return false
	}

	hostname, rawPort, ok := splitHostPort(strings.TrimSpace(requestHost))
	if !ok {
		return false
	}
	reqHost, ok := canonicalHost(hostname, rawPort, scheme)
	if !ok {
		return false
	}
	return originHost == reqHost
}

// canonicalHost lowercases the hostname, validates the port, drops the
// scheme's default port and re-brackets IPv6 literals.
func canonicalHost(hostname, rawPort, scheme string) (string, bool) {
	hostname = strings.ToLower(hostname)
	if hostname == "" {
		return "", false
	}

	var port uint64
	if rawPort != "" {
		n, err := strconv.ParseUint(rawPort, 10, 16)
		if err != nil || n == 0 {
			return "", false
		}
		port = n
	}
	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		port = 0
	}

	host := hostname
	if strings.Contains(hostname, ":") {
		host = "[" + hostname + "]"
	}
	if port != 0 {
		host += ":" + strconv.FormatUint(port, 10)
	}
	return host, true
}

// splitHostPort splits an authority into hostname and optional port. IPv6
// literals lose their brackets; the port is not validated here.
func splitHostPort(rawHost string) (hostname, port string, ok bool) {
	if rawHost == "" {
		return "", "", false
	}

	if rawHost[0] == '[' {
		end := strings.IndexByte(rawHost, ']')
		if end < 0 {
			return "", "", false
		}
		hostname, rest := rawHost[1:end], rawHost[end+1:]
		switch {
		case rest == "":
			return hostname, "", true
		case len(rest) > 1 && rest[0] == ':':
			return hostname, rest[1:], true
		default:
			return "", "", false
		}
	}

	switch i := strings.IndexByte(rawHost, ':'); {
	case i < 0:
		return rawHost, "", true
	case i == 0, i == len(rawHost)-1:
		return "", "", false
	case strings.IndexByte(rawHost[i+1:], ':') >= 0:
		// A second colon means an unbracketed IPv6 literal.
		return "", "", false
	default:
		return rawHost[:i], rawHost[i+1:], true
	}
}
