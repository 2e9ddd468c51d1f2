package middleware

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/cloudcommerce/user-service/application/port/inbound"
	domainerr "github.com/cloudcommerce/user-service/domain/error"
	"github.com/cloudcommerce/user-service/infrastructure/http/response"
	"github.com/cloudcommerce/user-service/infrastructure/service/logger"
)

type RateLimitMiddleware struct {
	rateLimitService inbound.RateLimitService
	logger           logger.Logger
	clientIPs        *ClientIPResolver
	limit            int
	window           time.Duration
}

func NewRateLimitMiddleware(rateLimitService inbound.RateLimitService, log logger.Logger, clientIPs *ClientIPResolver, limit int, window time.Duration) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		rateLimitService: rateLimitService,
		logger:           log,
		clientIPs:        clientIPs,
		limit:            limit,
		window:           window,
	}
}

// RateLimit allows limit requests per client IP per window. Limiter
// failures let the request through.
func (m *RateLimitMiddleware) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.rateLimitService == nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		clientIP := m.clientIPs.ClientIP(r)
		key := fmt.Sprintf("api:ip:%s", clientIP)

		blocked, err := m.rateLimitService.IsBlocked(ctx, key)
		if err != nil {
			m.logger.Error(ctx, "Failed to check block status", err, map[string]interface{}{"ip": clientIP})
		}
		if blocked {
			m.reject(w, r, clientIP)
			return
		}

		allowed, err := m.rateLimitService.CheckLimit(ctx, key, m.limit, m.window)
		if err != nil {
			m.logger.Error(ctx, "Failed to check rate limit", err, map[string]interface{}{"ip": clientIP})
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			if err := m.rateLimitService.Block(ctx, key, m.window, "Rate limit exceeded"); err != nil {
				m.logger.Error(ctx, "Failed to block IP", err, map[string]interface{}{"ip": clientIP})
			}
			m.reject(w, r, clientIP)
			return
		}

		if err := m.rateLimitService.Increment(ctx, key, m.window); err != nil {
			m.logger.Error(ctx, "Failed to increment rate limit", err, map[string]interface{}{"ip": clientIP})
		}

		w.Header().Set("RateLimit-Limit", strconv.Itoa(m.limit))
		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) reject(w http.ResponseWriter, r *http.Request, clientIP string) {
	logger.LogSecurityEvent(r.Context(), m.logger, "rate_limit_exceeded", "MEDIUM", map[string]interface{}{
		"ip":        clientIP,
		"path":      r.URL.Path,
		"userAgent": r.UserAgent(),
	})
	w.Header().Set("Retry-After", strconv.Itoa(int(m.window.Seconds())))
	response.FromError(w, domainerr.ErrRateLimitExceeded(m.window.String()), false)
}

// ClientIPResolver finds the address a request came from. Forwarding
// headers are only honoured when the connecting peer is a trusted proxy.
type ClientIPResolver struct {
	trusted []netip.Prefix
}

func NewClientIPResolver(trustedProxies []netip.Prefix) *ClientIPResolver {
	return &ClientIPResolver{trusted: trustedProxies}
}

// ClientIP returns the socket address unless it belongs to a trusted proxy.
// Behind one, X-Forwarded-For is walked right to left and the first
// untrusted hop wins; X-Real-IP is used when no X-Forwarded-For is present.
// A nil resolver trusts nobody.
func (c *ClientIPResolver) ClientIP(r *http.Request) string {
	peer := RemoteIP(r)
	if c == nil || !c.isTrusted(peer) {
		return peer
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			addr, err := netip.ParseAddr(hop)
			if err != nil {
				// unparseable hop
				return peer
			}
			if !c.isTrusted(addr.Unmap().String()) {
				return addr.Unmap().String()
			}
		}
		return peer
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if addr, err := netip.ParseAddr(xri); err == nil {
			return addr.Unmap().String()
		}
	}
	return peer
}

func (c *ClientIPResolver) isTrusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range c.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// RemoteIP is the host part of the connection address.
func RemoteIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
