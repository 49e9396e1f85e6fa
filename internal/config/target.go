package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// NormalizeTarget turns user input into a bare lowercase domain.
// Scheme, credentials, path, port, a trailing dot and a leading "*." are
// removed. The result must contain a dot, must not be an IP address, and
// must have a registrable domain under the public suffix list.
func NormalizeTarget(raw string) (string, error) {
	host := strings.ToLower(strings.TrimSpace(raw))
	if host == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidTarget)
	}

	if strings.Contains(host, "://") {
		u, err := url.Parse(host)
		if err != nil {
			return "", fmt.Errorf("%w: %q: %v", ErrInvalidTarget, raw, err) //nolint:errorlint // sentinel is the wrapped error
		}
		host = u.Hostname()
	} else {
		if i := strings.IndexAny(host, "/?#"); i >= 0 {
			host = host[:i]
		}
		if i := strings.LastIndex(host, "@"); i >= 0 {
			host = host[i+1:]
		}
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
	}

	host = strings.TrimSuffix(host, ".")
	host = strings.TrimPrefix(host, "*.")

	if host == "" || !strings.Contains(host, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidTarget, raw)
	}
	if strings.ContainsAny(host, " \t*") {
		return "", fmt.Errorf("%w: %q", ErrInvalidTarget, raw)
	}
	if net.ParseIP(host) != nil {
		return "", fmt.Errorf("%w: %q is an IP address", ErrInvalidTarget, raw)
	}
	if _, err := publicsuffix.EffectiveTLDPlusOne(host); err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidTarget, raw, err) //nolint:errorlint // sentinel is the wrapped error
	}

	return host, nil
}

// InScope reports whether host is target itself or one of its subdomains.
// Both arguments are expected in normalized form.
func InScope(host, target string) bool {
	return host == target || strings.HasSuffix(host, "."+target)
}
