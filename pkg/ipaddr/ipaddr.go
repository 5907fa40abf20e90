// Package ipaddr normalizes and classifies client IP addresses to decide
// which lookup key the geolocation provider should be queried with.
package ipaddr

import (
	"net/netip"
	"strings"
)

// Classification is the result of classifying a raw client address.
type Classification struct {
	// NormalizedIP is the input with IPv4-mapped IPv6 addresses rewritten
	// to their embedded IPv4 form. All other inputs pass through unchanged.
	NormalizedIP string

	// IsLoopback is true for 127.0.0.0/8 and ::1.
	IsLoopback bool

	// IsPrivate is true for the RFC 1918 ranges 10.0.0.0/8, 172.16.0.0/12
	// and 192.168.0.0/16.
	IsPrivate bool

	// LookupKey is the string to query the provider with. Empty for
	// loopback and private addresses, which means "resolve the server's
	// own public IP"; otherwise the normalized IP.
	LookupKey string
}

// Classify normalizes raw and classifies it as loopback, private or public.
// It never fails: anything that does not parse as an IP address is treated
// as public and passed through as-is.
func Classify(raw string) Classification {
	normalized := normalize(raw)

	c := Classification{NormalizedIP: normalized}

	addr, err := netip.ParseAddr(normalized)
	if err != nil {
		// Unrecognized format, treat as public.
		c.LookupKey = normalized
		return c
	}

	c.IsLoopback = addr.IsLoopback()
	c.IsPrivate = isRFC1918(addr)

	if !c.IsLoopback && !c.IsPrivate {
		c.LookupKey = normalized
	}
	return c
}

// normalize rewrites an IPv4-mapped IPv6 address (::ffff:a.b.c.d) to its
// embedded IPv4 form.
func normalize(raw string) string {
	if addr, err := netip.ParseAddr(raw); err == nil && addr.Is4In6() {
		return addr.Unmap().String()
	}
	// Keep the textual fast path for inputs netip rejects, e.g. addresses
	// carrying a zone suffix.
	if v4 := strings.TrimPrefix(raw, "::ffff:"); v4 != raw && strings.Contains(v4, ".") {
		return v4
	}
	return raw
}

// isRFC1918 reports whether addr falls into one of the RFC 1918 private
// IPv4 ranges. Deliberately narrower than netip's IsPrivate, which also
// matches IPv6 unique-local addresses.
func isRFC1918(addr netip.Addr) bool {
	if !addr.Is4() {
		return false
	}
	b := addr.As4()
	switch {
	case b[0] == 10:
		return true
	case b[0] == 172 && b[1] >= 16 && b[1] <= 31:
		return true
	case b[0] == 192 && b[1] == 168:
		return true
	}
	return false
}
