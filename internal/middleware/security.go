package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/AnshRaj112/usedgoods-backend/internal/httpx"
	"github.com/AnshRaj112/usedgoods-backend/pkg/clientip"
)

const (
	headerXContentTypeOptions     = "X-Content-Type-Options"
	headerXFrameOptions           = "X-Frame-Options"
	headerContentSecurityPolicy   = "Content-Security-Policy"
	headerStrictTransportSecurity = "Strict-Transport-Security"
	headerReferrerPolicy          = "Referrer-Policy"
	headerCrossOriginOpener       = "Cross-Origin-Opener-Policy"

	contentSecurityPolicy = "default-src 'self'; style-src 'self' 'unsafe-inline'; script-src 'self'; " +
		"img-src 'self' data: https:; connect-src 'self'; font-src 'self'; " +
		"object-src 'none'; media-src 'self'; frame-src 'none'"

	// MaxJSONBody caps non-upload request bodies.
	MaxJSONBody = 10 << 20
)

type contextKey string

const (
	clientIPKey contextKey = "client_ip"
	userKey     contextKey = "user"
	tokenKey    contextKey = "token"
)

// SecurityHeaders sets security-related response headers.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set(headerXContentTypeOptions, "nosniff")
		h.Set(headerXFrameOptions, "DENY")
		h.Set(headerContentSecurityPolicy, contentSecurityPolicy)
		h.Set(headerStrictTransportSecurity, "max-age=31536000; includeSubDomains; preload")
		h.Set(headerReferrerPolicy, "strict-origin-when-cross-origin")
		h.Set(headerCrossOriginOpener, "same-origin")
		h.Del("X-Powered-By")
		next.ServeHTTP(w, r)
	})
}

// ClientIP resolves the caller's address once and stores it in the request
// context. Proxy headers are only honoured when trustProxy is set.
func ClientIP(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientip.FromRequest(r, trustProxy)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), clientIPKey, ip)))
		})
	}
}

// ClientIPFrom returns the address stored by ClientIP, falling back to
// RemoteAddr for requests that did not pass through it.
func ClientIPFrom(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPKey).(string); ok && ip != "" {
		return ip
	}
	return clientip.RealClientIP(r)
}

// IPAllowList returns 403 for clients outside allowed. Entries may be single
// addresses or CIDR blocks. An empty list allows everyone.
func IPAllowList(allowed []string, logger *zap.Logger) func(http.Handler) http.Handler {
	var nets []*net.IPNet
	var ips []net.IP
	for _, entry := range allowed {
		entry = strings.TrimSpace(entry)
		if _, n, err := net.ParseCIDR(entry); err == nil {
			nets = append(nets, n)
			continue
		}
		if ip := net.ParseIP(entry); ip != nil {
			ips = append(ips, ip)
			continue
		}
		logger.Warn("ignoring malformed ADMIN_IP_WHITELIST entry", zap.String("entry", entry))
	}

	return func(next http.Handler) http.Handler {
		if len(allowed) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := net.ParseIP(ClientIPFrom(r))
			if ip != nil {
				for _, a := range ips {
					if a.Equal(ip) {
						next.ServeHTTP(w, r)
						return
					}
				}
				for _, n := range nets {
					if n.Contains(ip) {
						next.ServeHTTP(w, r)
						return
					}
				}
			}
			logger.Warn("blocked request from non-whitelisted IP",
				zap.String("ip", ClientIPFrom(r)), zap.String("path", r.URL.Path))
			httpx.Error(w, r, http.StatusForbidden, "access denied")
		})
	}
}

// MaxBody limits the request body. Multipart uploads are left to the upload
// handler, which enforces its own per-file limit.
func MaxBody(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
