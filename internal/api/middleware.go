package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/intermernet/sportstats/internal/auth"
)

// contextKey is a custom type used for keys in context.Context. Using a custom
// type prevents collisions between context keys defined in different packages.
type contextKey string

// claimsContextKey stores the authenticated user's token claims.
const claimsContextKey = contextKey("claims")

// authMiddleware protects routes that require authentication.
// It accepts a JWT from the 'Authorization: Bearer' header or, for
// EventSource connections that cannot set headers, a 'token' query parameter.
// Valid claims are injected into the request context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := ""

		authHeader := r.Header.Get("Authorization")
		headerParts := strings.Split(authHeader, " ")
		if len(headerParts) == 2 && strings.ToLower(headerParts[0]) == "bearer" {
			tokenString = headerParts[1]
		}

		if tokenString == "" {
			tokenString = r.URL.Query().Get("token")
		}

		if tokenString == "" {
			s.errorJSON(w, errors.New("authorization token is required"), http.StatusUnauthorized)
			return
		}

		claims, err := auth.ValidateJWT(tokenString, s.config.JwtSecret)
		if err != nil {
			s.errorJSON(w, errors.New("invalid or expired token"), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole rejects authenticated requests whose token lacks the role.
// It must be mounted behind authMiddleware.
func (s *Server) requireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := claimsFromContext(r)
			if err != nil {
				s.errorJSON(w, err, http.StatusUnauthorized)
				return
			}
			if claims.Role != role {
				s.errorJSON(w, errors.New("Access denied. Admin privileges required"), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// claimsFromContext retrieves the token claims stored by authMiddleware.
func claimsFromContext(r *http.Request) (*auth.AppClaims, error) {
	claims, ok := r.Context().Value(claimsContextKey).(*auth.AppClaims)
	if !ok {
		return nil, errors.New("could not retrieve user from context")
	}
	return claims, nil
}

// visitor is one client's bucket and when it last made a request.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipLimiter is a per-client-IP token bucket table. Clients idle for longer
// than maxIdle are dropped; by then their bucket has refilled, so a new one
// behaves the same.
type ipLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	rate      rate.Limit
	burst     int
	maxIdle   time.Duration
	lastSweep time.Time
}

func newIPLimiter(requestsPerWindow int, window time.Duration) *ipLimiter {
	rps := float64(requestsPerWindow) / window.Seconds()
	burst := requestsPerWindow / 2
	if burst < 1 {
		burst = 1
	}
	return &ipLimiter{
		visitors:  make(map[string]*visitor),
		rate:      rate.Limit(rps),
		burst:     burst,
		maxIdle:   window,
		lastSweep: time.Now(),
	}
}

func (l *ipLimiter) getLimiter(ip string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.maxIdle {
		l.sweep(now)
	}

	v, exists := l.visitors[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

// sweep drops idle visitors. The caller holds l.mu.
func (l *ipLimiter) sweep(now time.Time) {
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) >= l.maxIdle {
			delete(l.visitors, ip)
		}
	}
	l.lastSweep = now
}

// rateLimitMiddleware rate-limits by client IP. It expects RealIP to have
// run first so RemoteAddr is the client address.
func (s *Server) rateLimitMiddleware(requestsPerWindow int, window time.Duration) func(http.Handler) http.Handler {
	limiter := newIPLimiter(requestsPerWindow, window)
	retryAfter := strconv.Itoa(int(window.Seconds()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _, _ := net.SplitHostPort(r.RemoteAddr)
			if ip == "" {
				ip = r.RemoteAddr
			}

			if !limiter.getLimiter(ip, time.Now()).Allow() {
				w.Header().Set("Retry-After", retryAfter)
				s.errorJSON(w, errors.New("Too many requests"), http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
