package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/salesrank-backend/api/responses"
	pkgerrors "github.com/angelmondragon/salesrank-backend/pkg/errors"
	"github.com/angelmondragon/salesrank-backend/pkg/logger"
	"github.com/angelmondragon/salesrank-backend/pkg/redis"
)

// RateLimitStore counts requests per scope in a fixed window.
type RateLimitStore interface {
	FixedWindow(ctx context.Context, scope string, limit int64, window time.Duration) (redis.Window, error)
}

// RateLimitPolicy defines the throttling parameters for a traffic surface.
type RateLimitPolicy struct {
	name    string
	window  time.Duration
	ipLimit int
}

func NewRateLimitPolicy(name string, window time.Duration, ipLimit int) RateLimitPolicy {
	return RateLimitPolicy{
		name:    strings.ToLower(strings.TrimSpace(name)),
		window:  window,
		ipLimit: ipLimit,
	}
}

func (p RateLimitPolicy) enabled() bool {
	return p.window > 0 && p.ipLimit > 0
}

func (p RateLimitPolicy) normalizedName() string {
	if p.name == "" {
		return "api"
	}
	return p.name
}

func (p RateLimitPolicy) ipScope(ip string) string {
	return "ip:" + p.normalizedName() + ":" + ip
}

// RateLimit enforces a fixed-window per-IP request counter. A nil store or a
// disabled policy makes it a no-op, and store errors let the request through.
func RateLimit(policy RateLimitPolicy, store RateLimitStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			ip := clientIP(r)
			if ip == "" {
				next.ServeHTTP(w, r)
				return
			}

			win, err := store.FixedWindow(ctx, policy.ipScope(ip), int64(policy.ipLimit), policy.window)
			if err != nil {
				// rankings stay available while the counter store is down
				if logg != nil {
					logCtx := logg.WithFields(ctx, map[string]any{"policy": policy.normalizedName(), "error": err.Error()})
					logg.Warn(logCtx, "rate_limit.store_unavailable")
				}
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(policy.ipLimit))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(win.Remaining(), 10))
			if !win.Allowed {
				respondRateLimited(ctx, logg, w, policy, ip, win)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func respondRateLimited(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, policy RateLimitPolicy, ip string, win redis.Window) {
	retryAfter := win.ResetIn
	if retryAfter <= 0 || retryAfter > policy.window {
		retryAfter = policy.window
	}
	if logg != nil {
		logCtx := logg.WithFields(ctx, map[string]any{
			"policy":         policy.normalizedName(),
			"ip":             ip,
			"attempts":       win.Count,
			"limit":          policy.ipLimit,
			"window_seconds": int(policy.window.Seconds()),
		})
		logg.Warn(logCtx, "rate_limit.blocked")
	}
	w.Header().Set("Retry-After", formatSeconds(retryAfter))
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
}

// formatSeconds rounds up so clients never retry before the window resets.
func formatSeconds(d time.Duration) string {
	secs := int64((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}

// clientIP trusts forwarding headers only when the direct peer is a loopback
// or private address, i.e. our own proxy. X-Forwarded-For is read right to
// left so a client-supplied prefix cannot pick the rate limit key.
func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		peer = host
	}
	peerIP := net.ParseIP(peer)
	if peerIP == nil || !isInternal(peerIP) {
		return peer
	}

	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		hops := strings.Split(header, ",")
		var farthest string
		for i := len(hops) - 1; i >= 0; i-- {
			ip := net.ParseIP(strings.TrimSpace(hops[i]))
			if ip == nil {
				break
			}
			if !isInternal(ip) {
				return ip.String()
			}
			farthest = ip.String()
		}
		if farthest != "" {
			return farthest
		}
	}
	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip.String()
	}
	return peer
}

func isInternal(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate()
}
