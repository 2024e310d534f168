package middleware

import (
	"context"
	"net/http"
	"net/netip"
	"strings"

	"github.com/mssola/useragent"
)

// MaxXFFHeaderLength bounds the X-Forwarded-For header we are willing to parse.
const MaxXFFHeaderLength = 500

// ClientMetadata describes who sent a request. It travels on the context so
// audit events can record it without the service touching *http.Request.
type ClientMetadata struct {
	IP        string
	UserAgent string
	Device    string
}

type clientMetadataKey struct{}

// WithClientMetadata stores metadata on the context.
func WithClientMetadata(ctx context.Context, md ClientMetadata) context.Context {
	return context.WithValue(ctx, clientMetadataKey{}, md)
}

// GetClientMetadata returns the metadata stored on ctx, or the zero value.
func GetClientMetadata(ctx context.Context) ClientMetadata {
	md, _ := ctx.Value(clientMetadataKey{}).(ClientMetadata)
	return md
}

// Metadata extracts client IP, User-Agent and a short device description.
// X-Forwarded-For and X-Real-IP are honored only when the direct peer is in
// trustedProxies.
func Metadata(trustedProxies []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ua := r.Header.Get("User-Agent")
			md := ClientMetadata{
				IP:        clientIP(r, trustedProxies),
				UserAgent: ua,
				Device:    DescribeDevice(ua),
			}
			next.ServeHTTP(w, r.WithContext(WithClientMetadata(r.Context(), md)))
		})
	}
}

// DescribeDevice renders a user agent as "<browser> <version> on <os>", or
// "bot <name>" for crawlers. Empty input yields "".
func DescribeDevice(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return ""
	}
	ua := useragent.New(userAgent)
	name, version := ua.Browser()
	if ua.Bot() {
		return "bot " + name
	}
	desc := strings.TrimSpace(name + " " + version)
	if osName := ua.OS(); osName != "" {
		desc += " on " + osName
	}
	if ua.Mobile() {
		desc += " (mobile)"
	}
	return desc
}

func clientIP(r *http.Request, trusted []netip.Prefix) string {
	remoteIP := parseRemoteAddr(r.RemoteAddr)
	if remoteIP == "" {
		return "unknown"
	}
	if !isTrustedProxy(remoteIP, trusted) {
		return remoteIP
	}

	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" && len(xri) <= MaxXFFHeaderLength {
			return xri
		}
		return remoteIP
	}
	if len(xff) > MaxXFFHeaderLength {
		return remoteIP
	}

	first, _, _ := strings.Cut(xff, ",")
	first = strings.TrimSpace(first)
	if _, err := netip.ParseAddr(first); err != nil {
		return remoteIP
	}
	return first
}

func isTrustedProxy(ip string, trusted []netip.Prefix) bool {
	if len(trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	for _, prefix := range trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// parseRemoteAddr strips the port from RemoteAddr.
func parseRemoteAddr(remoteAddr string) string {
	if remoteAddr == "" {
		return ""
	}
	if addrPort, err := netip.ParseAddrPort(remoteAddr); err == nil {
		return addrPort.Addr().String()
	}
	if idx := strings.LastIndex(remoteAddr, ":"); idx != -1 && !strings.Contains(remoteAddr[:idx], ":") {
		return remoteAddr[:idx]
	}
	return strings.Trim(remoteAddr, "[]")
}
