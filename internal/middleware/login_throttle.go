package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/AnshRaj112/usedgoods-backend/internal/httpx"
	"github.com/AnshRaj112/usedgoods-backend/internal/services"
)

const loginBlockedMessage = "too many failed login attempts, please try again in 15 minutes"

// LoginThrottle rejects a login with 429 once the email or the client IP has
// collected MAX_LOGIN_ATTEMPTS failures inside the window. It runs before
// validation so a blocked caller never reaches the password check. The body
// is restored for the handler.
func LoginThrottle(attempts *services.LoginAttemptService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var email string
			if r.Body != nil {
				raw, err := io.ReadAll(r.Body)
				r.Body.Close()
				if err != nil {
					httpx.Error(w, r, http.StatusBadRequest, "could not read request body")
					return
				}
				var body struct {
					Email string `json:"email"`
				}
				_ = json.Unmarshal(raw, &body)
				email = body.Email
				r.Body = io.NopCloser(bytes.NewReader(raw))
			}

			ip := ClientIPFrom(r)
			blocked, err := attempts.Blocked(r.Context(), email, ip)
			if err != nil {
				logger.Error("failed to count login attempts", zap.Error(err), zap.String("ip", ip))
				next.ServeHTTP(w, r)
				return
			}
			if blocked {
				logger.Warn("login blocked after repeated failures",
					zap.String("ip", ip), zap.Int("max_attempts", attempts.MaxAttempts()))
				httpx.Error(w, r, http.StatusTooManyRequests, loginBlockedMessage)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
