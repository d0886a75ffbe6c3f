package middlewares

import (
	"net"
	"strings"

	"github.com/dmitrymomot/keel/internal"
)

// TrustProxies applies X-Forwarded-For, X-Forwarded-Proto,
// X-Forwarded-Host and X-Forwarded-Port when the direct peer is inside
// one of cidrs. "*" trusts every peer. Register it globally and first, so
// IP, IsSecure, Domain and route matching see the client's view.
//
// Invalid CIDRs panic: they are configuration errors.
func TrustProxies(cidrs ...string) internal.Middleware {
	trustAll := false
	var nets []*net.IPNet
	for _, cidr := range cidrs {
		if cidr == "*" {
			trustAll = true
			continue
		}
		if !strings.Contains(cidr, "/") {
			if strings.Contains(cidr, ":") {
				cidr += "/128"
			} else {
				cidr += "/32"
			}
		}
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			panic("middlewares: invalid trusted proxy " + cidr + ": " + err.Error())
		}
		nets = append(nets, n)
	}

	trusted := func(addr string) bool {
		if trustAll {
			return true
		}
		ip := net.ParseIP(addr)
		if ip == nil {
			return false
		}
		for _, n := range nets {
			if n.Contains(ip) {
				return true
			}
		}
		return false
	}

	return func(next internal.HandlerFunc) internal.HandlerFunc {
		return func(c internal.Context) error {
			r := c.Request()
			peer, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				peer = r.RemoteAddr
			}
			if !trusted(peer) {
				return next(c)
			}

			if ip := forwardedClient(r.Header.Get("X-Forwarded-For"), trusted); ip != "" {
				r.RemoteAddr = net.JoinHostPort(ip, "0")
			}
			if proto := firstValue(r.Header.Get("X-Forwarded-Proto")); proto == "http" || proto == "https" {
				r.URL.Scheme = proto
			}
			if host := firstValue(r.Header.Get("X-Forwarded-Host")); host != "" {
				if port := firstValue(r.Header.Get("X-Forwarded-Port")); port != "" && !strings.Contains(host, ":") {
					host = net.JoinHostPort(host, port)
				}
				r.Host = host
			}
			return next(c)
		}
	}
}

// forwardedClient walks X-Forwarded-For from the right and returns the
// first address not belonging to a trusted proxy.
func forwardedClient(header string, trusted func(string) bool) string {
	if header == "" {
		return ""
	}
	parts := strings.Split(header, ",")
	var last string
	for i := len(parts) - 1; i >= 0; i-- {
		ip := strings.TrimSpace(parts[i])
		if net.ParseIP(ip) == nil {
			continue
		}
		last = ip
		if !trusted(ip) {
			return ip
		}
	}
	return last
}

func firstValue(header string) string {
	v, _, _ := strings.Cut(header, ",")
	return strings.ToLower(strings.TrimSpace(v))
}

