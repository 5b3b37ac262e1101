// Package guard validates untrusted input before it reaches the network or
// a URL path: target URLs (scheme and private address checks) and page
// identifiers.
package guard

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

var (
	// ErrPrivateAddress is returned when a URL targets a private, loopback or
	// link-local address.
	ErrPrivateAddress = errors.New("guard: URL targets a private or loopback address")

	// ErrUnsafeScheme is returned when a URL is not http or https.
	ErrUnsafeScheme = errors.New("guard: only http and https URLs are allowed")

	// ErrInvalidIdentifier is returned for identifiers unfit for a URL path.
	ErrInvalidIdentifier = errors.New("guard: invalid identifier")
)

// Resolver looks up host addresses. *net.Resolver satisfies it.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// ValidateURL checks that rawURL is http(s) with a host. When
// blockPrivate is set, the host must not be or resolve to a private
// address; a lookup failure lets the URL through and the fetch fails later.
func ValidateURL(ctx context.Context, rawURL string, blockPrivate bool) error {
	return validateURL(ctx, net.DefaultResolver, rawURL, blockPrivate)
}

func validateURL(ctx context.Context, res Resolver, rawURL string, blockPrivate bool) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("guard: invalid URL: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("%w: %q", ErrUnsafeScheme, u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("guard: URL %q has no host", rawURL)
	}
	if !blockPrivate {
		return nil
	}

	if ip := net.ParseIP(host); ip != nil {
		if IsPrivateIP(ip) {
			return fmt.Errorf("%w: %s", ErrPrivateAddress, host)
		}
		return nil
	}
	addrs, err := res.LookupHost(ctx, host)
	if err != nil {
		return nil
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && IsPrivateIP(ip) {
			return fmt.Errorf("%w: %s resolves to %s", ErrPrivateAddress, host, a)
		}
	}
	return nil
}

// ValidateIdentifier accepts 1 to 256 characters from [A-Za-z0-9_.-].
func ValidateIdentifier(s string) error {
	if s == "" {
		return fmt.Errorf("%w: empty", ErrInvalidIdentifier)
	}
	if len(s) > 256 {
		return fmt.Errorf("%w: longer than 256 bytes", ErrInvalidIdentifier)
	}
	for _, r := range s {
		if !isIdentChar(r) {
			return fmt.Errorf("%w: character %q in %q", ErrInvalidIdentifier, r, s)
		}
	}
	return nil
}

func isIdentChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_' || r == '-' || r == '.'
}

var privateNets = func() []*net.IPNet {
	var out []*net.IPNet
	for _, cidr := range []string{
		"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", // RFC 1918
		"100.64.0.0/10", // carrier-grade NAT
		"fc00::/7",      // RFC 4193
	} {
		_, n, _ := net.ParseCIDR(cidr)
		out = append(out, n)
	}
	return out
}()

// IsPrivateIP reports loopback, link-local, unspecified and private-range
// addresses.
func IsPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
		return true
	}
	for _, n := range privateNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
