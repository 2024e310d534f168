// Package privacy reduces personal data before it reaches logs and audit sinks.
package privacy

import (
	"net/netip"
	"strings"
)

// AnonymizeIP masks an address to its network: /24 for IPv4 (including
// IPv4-mapped IPv6) and /48 for IPv6. Empty input yields "unknown" and
// unparseable input "invalid".
func AnonymizeIP(ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" || ip == "unknown" {
		return "unknown"
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "invalid"
	}
	addr = addr.Unmap().WithZone("")

	bits := 48
	if addr.Is4() {
		bits = 24
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "invalid"
	}
	return prefix.Addr().String()
}

// MaskEmail keeps the first character of the local part and the whole
// domain: "asha.rao@x.com" becomes "a***@x.com". Input without an '@' is
// masked entirely.
func MaskEmail(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return ""
	}
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return "***"
	}
	first := []rune(email[:at])[0]
	return string(first) + "***" + email[at:]
}
