package middleware

import (
	"crypto/sha256"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/csrf"
	"go.uber.org/zap"

	"github.com/AnshRaj112/usedgoods-backend/internal/httpx"
)

const (
	CSRFHeader    = "X-CSRF-Token"
	CSRFFormField = "_csrf"
	csrfCookie    = "_csrf"
)

// CSRF returns the double-submit token check. Safe methods pass untouched;
// every other request needs the token in the X-CSRF-Token header or the
// _csrf form field. secure marks the cookie Secure and enables the strict
// Referer check that gorilla/csrf applies to TLS requests.
func CSRF(secret string, maxAge time.Duration, secure bool, allowedOrigins []string, logger *zap.Logger) func(http.Handler) http.Handler {
	// gorilla/csrf wants exactly 32 bytes of key material.
	key := sha256.Sum256([]byte(secret))

	var trusted []string
	for _, origin := range allowedOrigins {
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			trusted = append(trusted, u.Host)
		}
	}

	protect := csrf.Protect(
		key[:],
		csrf.Secure(secure),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteStrictMode),
		csrf.Path("/"),
		csrf.CookieName(csrfCookie),
		csrf.MaxAge(int(maxAge.Seconds())),
		csrf.RequestHeader(CSRFHeader),
		csrf.FieldName(CSRFFormField),
		csrf.TrustedOrigins(trusted),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Warn("CSRF validation failed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("ip", ClientIPFrom(r)),
				zap.String("origin", r.Header.Get("Origin")),
				zap.NamedError("reason", csrf.FailureReason(r)))
			httpx.Error(w, r, http.StatusForbidden, "invalid CSRF token")
		})),
	)

	return func(next http.Handler) http.Handler {
		h := protect(next)
		if secure {
			return h
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
		})
	}
}

// CSRFToken answers with a fresh masked token. It must be mounted behind CSRF
// so the cookie gets set.
func CSRFToken(w http.ResponseWriter, r *http.Request) {
	token := csrf.Token(r)
	w.Header().Set(CSRFHeader, token)
	httpx.OK(w, r, map[string]string{"csrfToken": token})
}
