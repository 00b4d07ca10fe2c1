package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// ClientIPKey is the context key for the resolved client address.
const ClientIPKey contextKey = "client_ip"

// RealIPMiddleware resolves the client address once per request.
// X-Forwarded-For and X-Real-IP are honored only when the direct peer is a
// trusted proxy; from any other peer the headers are ignored.
type RealIPMiddleware struct {
	trusted []*net.IPNet
	logger  *zap.Logger
}

// NewRealIPMiddleware parses proxies, each a single IP or a CIDR.
func NewRealIPMiddleware(proxies []string, logger *zap.Logger) (*RealIPMiddleware, error) {
	m := &RealIPMiddleware{logger: logger}
	for _, p := range proxies {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.Contains(p, "/") {
			ip := net.ParseIP(p)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy %q", p)
			}
			bits := 32
			if ip.To4() == nil {
				bits = 128
			}
			p = fmt.Sprintf("%s/%d", ip.String(), bits)
		}
		_, network, err := net.ParseCIDR(p)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", p, err)
		}
		m.trusted = append(m.trusted, network)
	}
	return m, nil
}

func (m *RealIPMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), ClientIPKey, m.resolve(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *RealIPMiddleware) resolve(r *http.Request) string {
	peer := remoteHost(r.RemoteAddr)
	if !m.isTrusted(peer) {
		return peer
	}

	// Walk right to left: the rightmost entry not added by one of our own
	// proxies is the client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if net.ParseIP(hop) == nil {
				break
			}
			if !m.isTrusted(hop) || i == 0 {
				return hop
			}
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return peer
}

func (m *RealIPMiddleware) isTrusted(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, n := range m.trusted {
		if n.Contains(parsed) {
			return true
		}
	}
	return false
}

// ClientIP returns the client address resolved by RealIPMiddleware, or the
// direct peer when the middleware did not run.
func ClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(ClientIPKey).(string); ok && ip != "" {
		return ip
	}
	return remoteHost(r.RemoteAddr)
}

func remoteHost(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.Trim(addr, "[]")
}
