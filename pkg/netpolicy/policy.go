// Package netpolicy decides which URLs a workflow execution may touch. It is
// a pure predicate layer: the executor consults it before every navigation
// and the browser driver applies it to every intercepted outbound request.
package netpolicy

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"strings"
)

var (
	// ErrBlockedScheme rejects URL schemes that never point at a website.
	ErrBlockedScheme = errors.New("url scheme is blocked")

	// ErrUnparseableURL rejects input that is not a well-formed absolute URL.
	ErrUnparseableURL = errors.New("url is not parseable")

	// ErrPrivateAddress rejects hosts inside private or reserved IP ranges.
	ErrPrivateAddress = errors.New("host resolves to a private address range")

	// ErrPrivateHostname rejects well-known internal hostnames.
	ErrPrivateHostname = errors.New("host is a private hostname")

	// ErrDomainNotAllowed rejects hosts outside the execution's allow-list.
	ErrDomainNotAllowed = errors.New("host is not in the domain allow-list")
)

// Checked as a case-insensitive prefix on the raw input, before URL parsing,
// so malformed pseudo-URLs like "javascript:alert(1)" never reach the parser.
var blockedSchemes = []string{"file:", "javascript:", "data:", "blob:", "ftp:"}

var privateHostnames = map[string]bool{
	"localhost":                true,
	"::1":                      true,
	"metadata.google.internal": true,
}

// Dotted prefixes of reserved IPv4 ranges. 172.16.0.0/12 is handled
// separately because a plain prefix cannot express it.
var privateIPPrefixes = []string{"127.", "10.", "192.168.", "169.254.", "0."}

// ValidateURL applies every policy check in order; the first failing check
// wins. An empty allow-list means no domain restriction and is only meant for
// trusted test setups; production executions always carry the target city's
// registered domains.
func ValidateURL(raw string, allowedDomains []string) error {
	lowered := strings.ToLower(strings.TrimSpace(raw))

	for _, scheme := range blockedSchemes {
		if strings.HasPrefix(lowered, scheme) {
			return fmt.Errorf("%w: %s", ErrBlockedScheme, strings.TrimSuffix(scheme, ":"))
		}
	}

	parsed, err := url.Parse(raw)
	if err != nil || !parsed.IsAbs() || parsed.Hostname() == "" {
		return fmt.Errorf("%w: %q", ErrUnparseableURL, raw)
	}

	host := strings.ToLower(parsed.Hostname())

	if err := checkHost(host); err != nil {
		return err
	}

	if len(allowedDomains) == 0 {
		return nil
	}

	for _, domain := range allowedDomains {
		domain = strings.ToLower(domain)
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return nil
		}
	}

	return fmt.Errorf("%w: %s", ErrDomainNotAllowed, host)
}

func checkHost(host string) error {
	if privateHostnames[host] {
		return fmt.Errorf("%w: %s", ErrPrivateHostname, host)
	}

	for _, prefix := range privateIPPrefixes {
		if strings.HasPrefix(host, prefix) {
			return fmt.Errorf("%w: %s", ErrPrivateAddress, host)
		}
	}

	// 172.16.0.0/12 and any IPv6 literal the string patterns cannot cover.
	if addr, err := netip.ParseAddr(host); err == nil {
		if addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() || addr.IsUnspecified() {
			return fmt.Errorf("%w: %s", ErrPrivateAddress, host)
		}
	}

	return nil
}
