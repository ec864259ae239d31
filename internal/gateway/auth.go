package gateway

import (
	"cmp"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"os"
	"strings"

	"github.com/soyeahso/attendant/internal/config"
)

// Operator auth modes.
const (
	ModeToken    = "token"
	ModePassword = "password"
)

// AuthResult is the outcome of checking operator credentials.
type AuthResult struct {
	OK     bool   `json:"ok"`
	Method string `json:"method,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// ResolvedAuth is the operator secret the server checks against.
type ResolvedAuth struct {
	Mode     string
	Token    string
	Password string
}

// ResolveAuth fills secrets missing from cfg from the environment. Without
// an explicit mode, a configured password selects password mode.
func ResolveAuth(cfg config.GatewayAuth) ResolvedAuth {
	auth := ResolvedAuth{
		Mode:     cfg.Mode,
		Token:    cmp.Or(cfg.Token, os.Getenv("ATTENDANT_GATEWAY_TOKEN")),
		Password: cmp.Or(cfg.Password, os.Getenv("ATTENDANT_GATEWAY_PASSWORD")),
	}
	if auth.Mode == "" {
		auth.Mode = ModeToken
		if auth.Password != "" {
			auth.Mode = ModePassword
		}
	}
	return auth
}

// Authorize checks creds against the secret for the server's mode.
func Authorize(server ResolvedAuth, creds *Credentials) AuthResult {
	if creds == nil {
		return AuthResult{Reason: "no credentials provided"}
	}

	var want, got string
	switch server.Mode {
	case ModeToken:
		want, got = server.Token, creds.Token
	case ModePassword:
		want, got = server.Password, creds.Password
	default:
		return AuthResult{Reason: "unknown auth mode: " + server.Mode}
	}

	switch {
	case want == "":
		return AuthResult{Reason: "server " + server.Mode + " not configured"}
	case got == "":
		return AuthResult{Reason: server.Mode + " required"}
	case !safeEqual(got, want):
		return AuthResult{Reason: server.Mode + "_mismatch"}
	}
	return AuthResult{OK: true, Method: server.Mode}
}

// safeEqual compares digests in constant time, so neither the content nor
// the length of the secret shows in the timing.
func safeEqual(a, b string) bool {
	da, db := sha256.Sum256([]byte(a)), sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(da[:], db[:]) == 1
}

// bearerAuth extracts credentials from an Authorization header. The
// secret is offered as both token and password so either auth mode
// can check it.
func bearerAuth(r *http.Request) *Credentials {
	h := r.Header.Get("Authorization")
	scheme, secret, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return nil
	}
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil
	}
	return &Credentials{Token: secret, Password: secret}
}

// requireAuth rejects requests without valid operator credentials.
// Failures count against the caller's rate limit.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authLimiter.allow(r.RemoteAddr) {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		res := Authorize(s.auth, bearerAuth(r))
		if !res.OK {
			s.authLimiter.recordFailure(r.RemoteAddr)
			s.log.Warn().Str("remote", r.RemoteAddr).Str("path", r.URL.Path).Str("reason", res.Reason).Msg("admin request rejected")
			w.Header().Set("WWW-Authenticate", `Bearer realm="attendant"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
