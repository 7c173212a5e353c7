// Package hostutil validates host and host:port strings coming from
// configuration before they reach a dial or listen call.
package hostutil

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"unicode"
)

// ValidateHostPort checks a "host:port" address. The host part may be empty
// (a wildcard bind or an implicit localhost); the port must be numeric and
// in 1..65535.
func ValidateHostPort(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("bad address '%s': %w", addr, err)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("bad port '%s'", port)
	}
	if host == "" {
		return nil
	}
	return ValidateHost(host)
}

// ValidateHost checks that raw is a well-formed IPv4, IPv6 or RFC 1123
// hostname literal.
func ValidateHost(raw string) error {
	switch {
	case looksLikeIPv4(raw):
		if ip := net.ParseIP(raw); ip == nil || ip.To4() == nil {
			return fmt.Errorf("bad IP: '%s'", raw)
		}
	case strings.Contains(raw, ":"):
		if ip := net.ParseIP(strings.Trim(raw, "[]")); ip == nil || ip.To4() != nil {
			return fmt.Errorf("bad IPv6: '%s'", raw)
		}
	default:
		if !validHostname(raw) {
			return fmt.Errorf("bad hostname: '%s'", raw)
		}
	}
	return nil
}

// looksLikeIPv4 reports whether raw is a dotted quad of digits. All-numeric
// strings must then parse as IPv4 rather than be accepted as hostnames.
func looksLikeIPv4(raw string) bool {
	parts := strings.Split(raw, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
		for _, r := range p {
			if !unicode.IsDigit(r) {
				return false
			}
		}
	}
	return true
}

// validHostname applies RFC 1123 label rules: 1..63 alnum-or-hyphen
// characters per label, no leading or trailing hyphen, 253 total.
func validHostname(raw string) bool {
	if len(raw) > 253 {
		return false
	}
	for _, label := range strings.Split(raw, ".") {
		if len(label) < 1 || len(label) > 63 {
			return false
		}
		for i, r := range label {
			if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-') {
				return false
			}
			if (i == 0 || i == len(label)-1) && r == '-' {
				return false
			}
		}
	}
	return true
}
