// ABOUTME: Address parsing and classification for update requests.
// ABOUTME: Infers the record type from the address family and rejects non-global addresses.

package dyndns53

import (
	"net/netip"
)

// RecordType is the DNS address record type an update writes.
type RecordType string

const (
	TypeA    RecordType = "A"
	TypeAAAA RecordType = "AAAA"
)

func mustPrefixes(ss ...string) []netip.Prefix {
	out := make([]netip.Prefix, len(ss))
	for i, s := range ss {
		out[i] = netip.MustParsePrefix(s)
	}
	return out
}

// Special-purpose ranges from the IANA IPv4 and IPv6 registries that are not
// globally reachable, plus multicast.
var (
	nonGlobalV4 = mustPrefixes(
		"0.0.0.0/8",
		"10.0.0.0/8",
		"100.64.0.0/10",
		"127.0.0.0/8",
		"169.254.0.0/16",
		"172.16.0.0/12",
		"192.0.0.0/24",
		"192.0.2.0/24",
		"192.168.0.0/16",
		"198.18.0.0/15",
		"198.51.100.0/24",
		"203.0.113.0/24",
		"224.0.0.0/4",
		"240.0.0.0/4",
		"255.255.255.255/32",
	)
	globalV4Exceptions = mustPrefixes(
		"192.0.0.9/32",
		"192.0.0.10/32",
	)

	nonGlobalV6 = mustPrefixes(
		"::/128",
		"::1/128",
		"::ffff:0:0/96",
		"64:ff9b:1::/48",
		"100::/64",
		"2001::/23",
		"2001:db8::/32",
		"2002::/16",
		"3fff::/20",
		"fc00::/7",
		"fe80::/10",
		"ff00::/8",
	)
	globalV6Exceptions = mustPrefixes(
		"2001:1::1/128",
		"2001:1::2/128",
		"2001:3::/32",
		"2001:4:112::/48",
		"2001:20::/28",
		"2001:30::/28",
	)
)

func inAny(addr netip.Addr, prefixes []netip.Prefix) bool {
	for _, p := range prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// IsGlobal reports whether addr is globally routable.
func IsGlobal(addr netip.Addr) bool {
	if addr.Is4() {
		return !inAny(addr, nonGlobalV4) || inAny(addr, globalV4Exceptions)
	}
	return !inAny(addr, nonGlobalV6) || inAny(addr, globalV6Exceptions)
}

// ParseAddress validates s as an IPv4 address, then as an IPv6 address, and
// returns its canonical text with the matching record type. With forceGlobal
// set, addresses that are not globally routable are rejected.
func ParseAddress(s string, forceGlobal bool) (string, RecordType, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return "", "", &Error{Kind: KindBadAgent, Msg: "invalid IP string: " + s, Err: err}
	}
	if addr.Zone() != "" {
		return "", "", newError(KindBadAgent, "invalid IP string: %s: zoned addresses cannot be published", s)
	}

	typ := TypeAAAA
	family := "IPv6"
	if addr.Is4() {
		typ = TypeA
		family = "IPv4"
	}

	if forceGlobal && !IsGlobal(addr) {
		return "", "", newError(KindBadAgent, "invalid %s string: %s is not globally routable", family, s)
	}
	return addr.String(), typ, nil
}

// sameAddress compares two address strings by value, so "2001:DB8::1" and
// "2001:db8::1" match. Unparsable values fall back to exact comparison.
func sameAddress(a, b string) bool {
	x, errA := netip.ParseAddr(a)
	y, errB := netip.ParseAddr(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return x == y
}
