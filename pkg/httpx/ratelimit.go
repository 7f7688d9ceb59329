package httpx

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/aussiebroadwan/taskbridge/pkg/slogx"
)

// RateLimit is a token bucket refilled at Requests per Window. A zero
// RateLimit lets everything through.
type RateLimit struct {
	Requests int
	Window   time.Duration
	Burst    int
}

func (l RateLimit) enabled() bool { return l.Requests > 0 && l.Window > 0 }

// RateLimits are the profiles the router assigns to its routes.
type RateLimits struct {
	Login  RateLimit // password and one-time code attempts
	Token  RateLimit // token, revoke, consent and platform connect
	API    RateLimit // authorize, userinfo, tools
	Public RateLimit // discovery, JWKS and health probes
}

// DefaultRateLimits returns the production profiles.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		Login:  RateLimit{Requests: 5, Window: time.Minute, Burst: 5},
		Token:  RateLimit{Requests: 20, Window: time.Minute, Burst: 20},
		API:    RateLimit{Requests: 100, Window: time.Minute, Burst: 100},
		Public: RateLimit{Requests: 1000, Window: time.Minute, Burst: 1000},
	}
}

// LoadRateLimits applies RATELIMIT_{LOGIN,TOKEN,API,PUBLIC}_{REQUESTS,WINDOW_SEC,BURST}
// overrides on top of DefaultRateLimits. Unparseable or non-positive
// values keep the default.
func LoadRateLimits(getenv func(string) string) RateLimits {
	d := DefaultRateLimits()
	return RateLimits{
		Login:  overrideRateLimit(getenv, "LOGIN", d.Login),
		Token:  overrideRateLimit(getenv, "TOKEN", d.Token),
		API:    overrideRateLimit(getenv, "API", d.API),
		Public: overrideRateLimit(getenv, "PUBLIC", d.Public),
	}
}

func overrideRateLimit(getenv func(string) string, name string, l RateLimit) RateLimit {
	positive := func(field string) (int, bool) {
		n, err := strconv.Atoi(getenv("RATELIMIT_" + name + "_" + field))
		return n, err == nil && n > 0
	}
	if n, ok := positive("REQUESTS"); ok {
		l.Requests = n
	}
	if n, ok := positive("WINDOW_SEC"); ok {
		l.Window = time.Duration(n) * time.Second
	}
	if n, ok := positive("BURST"); ok {
		l.Burst = n
	}
	return l
}

// KeyFunc groups requests that share a bucket. An empty key skips limiting.
type KeyFunc func(*http.Request) string

// ClientIP keys on the first X-Forwarded-For hop, then X-Real-IP, then
// the connection's remote address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}

// PrincipalSubject keys on the authenticated user. It needs
// AuthnMiddleware to run first.
func PrincipalSubject(r *http.Request) string {
	if p, ok := PrincipalFromContext(r.Context()); ok {
		return p.UserID
	}
	return ""
}

// FormValue keys on a query or form field, lower-cased so "Alice@x" and
// "alice@x" share a bucket.
func FormValue(field string) KeyFunc {
	return func(r *http.Request) string {
		if err := r.ParseForm(); err != nil {
			return ""
		}
		return strings.ToLower(strings.TrimSpace(r.FormValue(field)))
	}
}

// JoinKeys concatenates the non-empty keys of each KeyFunc with "|".
func JoinKeys(fns ...KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(fns))
		for _, fn := range fns {
			if k := fn(r); k != "" {
				parts = append(parts, k)
			}
		}
		return strings.Join(parts, "|")
	}
}

// limiterSet holds one bucket per key and drops buckets idle for longer
// than a window.
type limiterSet struct {
	limit rate.Limit
	burst int
	idle  time.Duration

	mu        sync.Mutex
	buckets   map[string]*bucket
	nextSweep time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newLimiterSet(l RateLimit) *limiterSet {
	burst := l.Burst
	if burst <= 0 {
		burst = l.Requests
	}
	return &limiterSet{
		limit:   rate.Limit(float64(l.Requests) / l.Window.Seconds()),
		burst:   burst,
		idle:    l.Window,
		buckets: make(map[string]*bucket),
	}
}

// reserve takes a token for key. On refusal it returns how long until one
// is available.
func (s *limiterSet) reserve(key string, now time.Time) (bool, time.Duration) {
	s.mu.Lock()
	if now.After(s.nextSweep) {
		for k, b := range s.buckets {
			if now.Sub(b.lastSeen) > s.idle {
				delete(s.buckets, k)
			}
		}
		s.nextSweep = now.Add(s.idle)
	}
	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.buckets[key] = b
	}
	b.lastSeen = now
	s.mu.Unlock()

	res := b.limiter.ReserveN(now, 1)
	if !res.OK() {
		return false, s.idle
	}
	if d := res.DelayFrom(now); d > 0 {
		res.CancelAt(now)
		return false, d
	}
	return true, 0
}

// RateLimitMiddleware rejects requests beyond l with 429 and Retry-After,
// grouping them by key.
func RateLimitMiddleware(l RateLimit, key KeyFunc) Middleware {
	if !l.enabled() {
		return func(next http.Handler) http.Handler { return next }
	}
	set := newLimiterSet(l)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				slogx.FromContext(r.Context()).Warn("rate limit key missing, request not limited", "path", r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}

			ok, wait := set.reserve(k, time.Now())
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			retryAfter := max(int(math.Ceil(wait.Seconds())), 1)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.Requests))
			w.Header().Set("X-RateLimit-Window", l.Window.String())

			slogx.FromContext(r.Context()).Warn("rate limit exceeded",
				"path", r.URL.Path,
				"retry_after", retryAfter,
			)
			WriteJSON(w, http.StatusTooManyRequests, map[string]string{
				"error":             "rate_limit_exceeded",
				"error_description": "Too many requests. Please try again later.",
			})
		})
	}
}

// RateLimitByIP limits per client address.
func RateLimitByIP(l RateLimit) Middleware {
	return RateLimitMiddleware(l, ClientIP)
}

// RateLimitByUser limits per authenticated user and address.
func RateLimitByUser(l RateLimit) Middleware {
	return RateLimitMiddleware(l, JoinKeys(PrincipalSubject, ClientIP))
}

// RateLimitByIPAndFormField limits per address and form field, e.g. the
// email of a login attempt.
func RateLimitByIPAndFormField(l RateLimit, field string) Middleware {
	return RateLimitMiddleware(l, JoinKeys(ClientIP, FormValue(field)))
}
