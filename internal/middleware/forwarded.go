package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ForwardedFor rewrites r.RemoteAddr to the client address recorded in
// X-Forwarded-For, but only when the connection comes from a trusted proxy.
// The client is the rightmost entry that is not itself a trusted proxy. With
// no trusted prefixes the header is ignored.
func ForwardedFor(trusted []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(trusted) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			peer, ok := parseAddr(ClientIP(r))
			if !ok || !isTrusted(trusted, peer) {
				next.ServeHTTP(w, r)
				return
			}

			if client, ok := forwardedClient(r.Header.Values("X-Forwarded-For"), trusted); ok {
				r = r.Clone(r.Context())
				r.RemoteAddr = net.JoinHostPort(client.String(), "0")
			}
			next.ServeHTTP(w, r)
		})
	}
}

func forwardedClient(headers []string, trusted []netip.Prefix) (netip.Addr, bool) {
	var hops []string
	for _, header := range headers {
		hops = append(hops, strings.Split(header, ",")...)
	}

	for i := len(hops) - 1; i >= 0; i-- {
		addr, ok := parseAddr(hops[i])
		if !ok {
			return netip.Addr{}, false
		}
		if !isTrusted(trusted, addr) {
			return addr, true
		}
	}
	return netip.Addr{}, false
}

func parseAddr(value string) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(value))
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

func isTrusted(trusted []netip.Prefix, addr netip.Addr) bool {
	for _, prefix := range trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
