package ratelimit

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

type clientIPKey struct{}

// IPResolver finds the client address behind a chain of reverse proxies.
//
// X-Forwarded-For and X-Real-IP are only believed when the direct peer
// (RemoteAddr) is one of the trusted proxies. In that case the chain is
// walked from the right and the first hop that is not a trusted proxy is
// the client:
//
//	RemoteAddr 10.0.0.2 (nginx, trusted)
//	X-Forwarded-For: 1.2.3.4, 198.51.100.7, 10.0.0.3
//	→ 198.51.100.7 (1.2.3.4 was written by the client and is ignored)
//
// With no trusted proxies configured the headers are never read, so a
// client cannot pick its own rate-limit bucket.
type IPResolver struct {
	trusted []netip.Prefix
}

// NewIPResolver parses trusted proxies given as CIDRs ("10.0.0.0/8") or
// single addresses ("127.0.0.1").
func NewIPResolver(trusted []string) (*IPResolver, error) {
	r := &IPResolver{}
	for _, raw := range trusted {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			prefix, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
			}
			r.trusted = append(r.trusted, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
		}
		addr = addr.Unmap()
		r.trusted = append(r.trusted, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return r, nil
}

// ClientIP returns the client address of r.
func (p *IPResolver) ClientIP(r *http.Request) string {
	peer := remoteHost(r)
	if !p.isTrusted(peer) {
		return peer
	}

	var hops []string
	for _, v := range r.Header.Values("X-Forwarded-For") {
		for _, hop := range strings.Split(v, ",") {
			hops = append(hops, strings.TrimSpace(hop))
		}
	}

	client := peer
	for i := len(hops) - 1; i >= 0; i-- {
		addr, err := netip.ParseAddr(hops[i])
		if err != nil {
			// Garbage in the chain: stop at the last hop we could verify.
			return client
		}
		client = addr.Unmap().String()
		if !p.isTrusted(client) {
			return client
		}
	}
	if len(hops) > 0 {
		return client
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if addr, err := netip.ParseAddr(xri); err == nil {
			return addr.Unmap().String()
		}
	}
	return peer
}

// Middleware stores the resolved client IP in the request context, where
// ExtractIP picks it up.
func (p *IPResolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), clientIPKey{}, p.ClientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (p *IPResolver) isTrusted(ip string) bool {
	if len(p.trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range p.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// ExtractIP returns the client IP of a request: the value resolved by
// IPResolver.Middleware, or the RemoteAddr host when the request did not
// pass through it. Forwarding headers are never read here.
func ExtractIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPKey{}).(string); ok && ip != "" {
		return ip
	}
	return remoteHost(r)
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
