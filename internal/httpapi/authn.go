package httpapi

import (
	"errors"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"projgate.org/internal/audit"
	"projgate.org/internal/auth"
	"projgate.org/internal/obs"
	"projgate.org/internal/ratelimit"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "

	rateWarnInterval = 10 * time.Second
)

// AccessValidator checks bearer tokens for the identity gate.
type AccessValidator interface {
	ValidateAccessToken(token string) (*auth.Claims, error)
}

// Limiter is the rate governor consulted by RateGate.
type Limiter interface {
	Check(key string) ratelimit.Decision
}

// IdentityGate requires a valid access token and attaches its claims to
// the request context.
func IdentityGate(v AccessValidator) Stage {
	return func(w http.ResponseWriter, r *http.Request) (*http.Request, *Rejection) {
		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			obs.ObserveAuth("identity", string(auth.ReasonNoToken))
			return nil, unauthenticated(string(auth.ReasonNoToken))
		}
		claims, err := v.ValidateAccessToken(token)
		if err != nil {
			reason, ok := auth.ReasonOf(err)
			if !ok {
				reason = auth.ReasonMalformed
			}
			obs.ObserveAuth("identity", string(reason))
			return nil, unauthenticated(string(reason))
		}
		r = r.WithContext(auth.ContextWithClaims(r.Context(), claims))
		notePrincipal(r)
		return r, nil
	}
}

// RoleGate requires claims holding exactly the given role.
func RoleGate(required auth.Role) Stage {
	return func(w http.ResponseWriter, r *http.Request) (*http.Request, *Rejection) {
		p, ok := auth.PrincipalFromContext(r.Context())
		if !ok {
			return nil, unauthenticated(string(auth.ReasonNoToken))
		}
		if err := p.Authorize(required); err != nil {
			if errors.Is(err, auth.ErrForbidden) {
				obs.ObserveAuth("role", "forbidden")
				_ = audit.LogEvent(r.Context(), audit.EventAccessDenied, map[string]any{
					"required_role": string(required),
					"method":        r.Method,
					"path":          r.URL.Path,
				})
				return nil, &Rejection{
					Status:    http.StatusForbidden,
					Code:      "forbidden",
					Reason:    "requires role " + string(required),
					Challenge: `Bearer error="insufficient_scope"`,
				}
			}
			return nil, unauthenticated(string(auth.ReasonIncomplete))
		}
		return r, nil
	}
}

// RateGate counts the request against lim, keyed by the client address
// that proxies resolves.
func RateGate(tier string, lim Limiter, proxies TrustedProxies) Stage {
	warn := &rate.Sometimes{Interval: rateWarnInterval}
	return func(w http.ResponseWriter, r *http.Request) (*http.Request, *Rejection) {
		ip := proxies.ClientIP(r)
		if ip == "" {
			ip = "unknown"
		}
		d := lim.Check(ip)
		obs.ObserveRateLimit(tier, d.Allowed)

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining()))
		h.Set("X-RateLimit-Reset", strconv.Itoa(retryAfterSeconds(d.RetryAfter)))
		if d.Allowed {
			return r, nil
		}
		warn.Do(func() {
			obs.Log("warn", "rate_limited", map[string]any{
				"tier":       tier,
				"client":     ip,
				"path":       r.URL.Path,
				"request_id": RequestIDFromContext(r.Context()),
			})
		})
		return nil, &Rejection{
			Status:     http.StatusTooManyRequests,
			Code:       "rate_limited",
			Reason:     tier,
			RetryAfter: d.RetryAfter,
		}
	}
}

func unauthenticated(reason string) *Rejection {
	return &Rejection{
		Status:    http.StatusUnauthorized,
		Code:      "unauthorized",
		Reason:    reason,
		Challenge: `Bearer realm="projgate"`,
	}
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if len(header) < len(bearer) || !strings.EqualFold(header[:len(bearer)], bearer) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

// TrustedProxies lists the peer networks allowed to report the client
// address through X-Forwarded-For. An empty list ignores the header.
type TrustedProxies []netip.Prefix

func (t TrustedProxies) contains(addr netip.Addr) bool {
	for _, p := range t {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP returns the address requests from r are attributed to. The
// X-Forwarded-For chain is walked right to left only while the hop that
// appended it is trusted; the first untrusted hop is the client.
func (t TrustedProxies) ClientIP(r *http.Request) string {
	peer := remoteHost(r)
	addr, err := netip.ParseAddr(peer)
	if err != nil || !t.contains(addr.Unmap()) {
		return peer
	}
	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	client := peer
	for i := len(hops) - 1; i >= 0; i-- {
		hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			break
		}
		hop = hop.Unmap()
		client = hop.String()
		if !t.contains(hop) {
			break
		}
	}
	return client
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
