package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/AnshRaj112/usedgoods-backend/internal/httpx"
	"github.com/AnshRaj112/usedgoods-backend/internal/models"
	"github.com/AnshRaj112/usedgoods-backend/internal/services"
)

// authError is a rejected authentication attempt with the status to answer.
type authError struct {
	status  int
	message string
}

func (e *authError) Error() string { return e.message }

var (
	errTokenRequired  = &authError{http.StatusUnauthorized, "authentication token required"}
	errTokenExpired   = &authError{http.StatusUnauthorized, "token expired"}
	errTokenInvalid   = &authError{http.StatusUnauthorized, "invalid token"}
	errSessionInvalid = &authError{http.StatusUnauthorized, "session expired or invalid"}
	errUserNotFound   = &authError{http.StatusUnauthorized, "user not found"}
	errUnverified     = &authError{http.StatusForbidden, "email verification required"}
)

// Authenticator resolves a bearer token into a user: signature and expiry,
// then a live session row for that token and user, then a non-deleted,
// verified account.
type Authenticator struct {
	tokens   *services.TokenIssuer
	sessions *services.SessionService
	users    *services.UserService
	logger   *zap.Logger
}

func NewAuthenticator(tokens *services.TokenIssuer, sessions *services.SessionService, users *services.UserService, logger *zap.Logger) *Authenticator {
	return &Authenticator{tokens: tokens, sessions: sessions, users: users, logger: logger}
}

// RequireAuth rejects the request unless authentication succeeds.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, token, err := a.authenticate(r)
		if err != nil {
			var ae *authError
			if errors.As(err, &ae) {
				httpx.Error(w, r, ae.status, ae.message)
				return
			}
			a.logger.Error("authentication lookup failed", zap.Error(err))
			httpx.Error(w, r, http.StatusInternalServerError, "authentication failed")
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user, token)))
	})
}

// OptionalAuth attaches the user when authentication succeeds and otherwise
// continues anonymously.
func (a *Authenticator) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if bearerToken(r) == "" {
			next.ServeHTTP(w, r)
			return
		}
		user, token, err := a.authenticate(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user, token)))
	})
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		if user == nil {
			httpx.Error(w, r, http.StatusUnauthorized, errTokenRequired.message)
			return
		}
		if !user.IsAdmin {
			httpx.Error(w, r, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSelf allows the request when the route parameter names the caller,
// or the caller is an admin. Must run after RequireAuth.
func RequireSelf(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			if user == nil {
				httpx.Error(w, r, http.StatusUnauthorized, errTokenRequired.message)
				return
			}
			if user.ID != chi.URLParam(r, param) && !user.IsAdmin {
				httpx.Error(w, r, http.StatusForbidden, "access denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (a *Authenticator) authenticate(r *http.Request) (*models.User, string, error) {
	token := bearerToken(r)
	if token == "" {
		return nil, "", errTokenRequired
	}

	claims, err := a.tokens.Parse(token)
	switch {
	case errors.Is(err, services.ErrTokenExpired):
		return nil, "", errTokenExpired
	case err != nil:
		return nil, "", errTokenInvalid
	}

	ctx := r.Context()
	if err := a.sessions.Validate(ctx, token, claims.UserID); err != nil {
		if errors.Is(err, services.ErrSessionNotFound) {
			return nil, "", errSessionInvalid
		}
		return nil, "", err
	}

	user, err := a.users.GetByID(ctx, claims.UserID)
	if errors.Is(err, services.ErrNotFound) {
		return nil, "", errUserNotFound
	}
	if err != nil {
		return nil, "", err
	}
	if user.IsDeleted {
		return nil, "", errUserNotFound
	}
	if !user.IsVerified {
		return nil, "", errUnverified
	}
	return user, token, nil
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

func withUser(ctx context.Context, user *models.User, token string) context.Context {
	ctx = context.WithValue(ctx, userKey, user)
	return context.WithValue(ctx, tokenKey, token)
}

// UserFromContext returns the authenticated user, or nil.
func UserFromContext(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey).(*models.User)
	return u
}

// TokenFromContext returns the bearer token the request authenticated with.
func TokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey).(string)
	return t
}
