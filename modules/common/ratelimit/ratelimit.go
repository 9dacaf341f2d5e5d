package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "pic2catalog:ratelimit:"

// Limiter - fixed-window request counter per client, kept in Redis.
// Generation calls are expensive and the model endpoint is quota-bound.
type Limiter struct {
	rdb     *redis.Client
	limit   int
	window  time.Duration
	trusted []netip.Prefix
	now     func() time.Time
	logger  *slog.Logger
}

func New(rdb *redis.Client, limit int, window time.Duration, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Limiter{rdb: rdb, limit: limit, window: window, now: time.Now, logger: logger}
}

// SetTrustedProxies - proxies whose X-Forwarded-For is believed; entries are CIDRs or bare IPs.
// With none set the header is ignored and clients are keyed by their remote address.
func (l *Limiter) SetTrustedProxies(entries []string) error {
	prefixes, err := ParseProxies(entries)
	if err != nil {
		return err
	}
	l.trusted = prefixes
	return nil
}

// ParseProxies - CIDRs or bare IPs as prefixes
func ParseProxies(entries []string) ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			p, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// Allow - counts one request for client; returns the remaining budget in this window
func (l *Limiter) Allow(ctx context.Context, client string) (bool, int, error) {
	slot := l.now().UnixNano() / int64(l.window)
	key := fmt.Sprintf("%s%s:%d", keyPrefix, client, slot)

	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("rate limit counter: %w", err)
	}

	count := int(incr.Val())
	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= l.limit, remaining, nil
}

// Middleware - rejects clients over the limit with 429. Redis failures let the request through.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		client := ClientIP(r, l.trusted)
		allowed, remaining, err := l.Allow(r.Context(), client)
		if err != nil {
			l.logger.Warn("⚠️  [RateLimit] Counter unavailable, allowing request", "client", client, "error", err)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !allowed {
			l.logger.Warn("🛑 [RateLimit] Client over limit", "client", client, "limit", l.limit)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(int(l.window.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{
				"detail": "Too many requests, try again later",
				"kind":   "rate_limit",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ClientIP - the remote address host. When that host is a trusted proxy, X-Forwarded-For
// is walked from the right and the first hop outside the trusted set is the client.
func ClientIP(r *http.Request, trusted []netip.Prefix) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if !isTrusted(host, trusted) {
		return host
	}

	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if _, err := netip.ParseAddr(hop); err != nil {
			// garbage from the client side of the chain; stop at the last good hop
			return host
		}
		if !isTrusted(hop, trusted) {
			return hop
		}
		host = hop
	}
	return host
}

func isTrusted(ip string, trusted []netip.Prefix) bool {
	if len(trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
