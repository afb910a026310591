package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/AnshRaj112/usedgoods-backend/internal/database"
	"github.com/AnshRaj112/usedgoods-backend/internal/httpx"
	"github.com/AnshRaj112/usedgoods-backend/internal/middleware"
	"github.com/AnshRaj112/usedgoods-backend/internal/models"
	"github.com/AnshRaj112/usedgoods-backend/internal/services"
	"github.com/AnshRaj112/usedgoods-backend/internal/validation"
)

var loginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_logins_total",
		Help: "Login attempts by outcome",
	},
	[]string{"result"},
)

type registerResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

type loginResponse struct {
	User      models.PublicUser `json:"user"`
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// Register handles POST /api/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) error {
	var req validation.RegisterRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		return err
	}

	user, err := h.users.Register(r.Context(), services.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
		Phone:    req.Phone,
		Address:  req.Address,
	})
	if err != nil {
		return err
	}

	h.logger.Info("user registered", zap.String("user_id", user.ID))
	httpx.Message(w, r, http.StatusCreated, "registration successful", registerResponse{
		ID:       user.ID,
		Email:    user.Email,
		Username: user.Username,
	})
	return nil
}

// Login handles POST /api/auth/login. Every outcome is written to the
// login attempt log that drives the throttle.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) error {
	var req validation.LoginRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		return err
	}
	ctx := r.Context()
	ip := middleware.ClientIPFrom(r)

	user, reason, err := h.users.Authenticate(ctx, req.Email, req.Password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		h.attempts.Record(ctx, req.Email, ip, false, reason)
		loginsTotal.WithLabelValues("failure").Inc()
		h.logger.Warn("login failed", zap.String("ip", ip), zap.String("reason", reason))
		return apiError(http.StatusUnauthorized, "invalid email or password")
	}
	if err != nil {
		return err
	}

	token, expiresAt, err := h.tokens.Issue(user)
	if err != nil {
		return err
	}
	err = h.db.Transaction(ctx, func(tx *database.Tx) error {
		if _, err := h.sessions.Create(ctx, tx, user.ID, token, expiresAt, ip, r.UserAgent()); err != nil {
			return err
		}
		return h.users.TouchLastLogin(ctx, tx, user.ID)
	})
	if err != nil {
		return err
	}
	h.attempts.Record(ctx, req.Email, ip, true, "")
	loginsTotal.WithLabelValues("success").Inc()
	h.logger.Info("user logged in", zap.String("user_id", user.ID), zap.String("ip", ip))

	httpx.Message(w, r, http.StatusOK, "login successful", loginResponse{
		User:      user.Public(),
		Token:     token,
		ExpiresAt: expiresAt,
	})
	return nil
}

// Logout deletes the session behind the presented token.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) error {
	user := middleware.UserFromContext(r.Context())
	if err := h.sessions.Delete(r.Context(), middleware.TokenFromContext(r.Context()), user.ID); err != nil {
		return err
	}
	httpx.Message(w, r, http.StatusOK, "logged out", nil)
	return nil
}

// Me returns the caller's profile.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) error {
	httpx.OK(w, r, middleware.UserFromContext(r.Context()))
	return nil
}

// UpdateMe handles PUT /api/auth/me.
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) error {
	var req validation.UpdateProfileRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		return err
	}
	user := middleware.UserFromContext(r.Context())
	updated, err := h.users.UpdateProfile(r.Context(), user.ID, services.ProfileInput{
		Username: req.Username,
		Phone:    req.Phone,
		Address:  req.Address,
		Bio:      req.Bio,
	})
	if err != nil {
		return err
	}
	httpx.Message(w, r, http.StatusOK, "profile updated", updated)
	return nil
}

// ChangePassword handles PUT /api/auth/password. All sessions of the user,
// including the current one, stop working.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) error {
	var req validation.ChangePasswordRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		return err
	}
	user := middleware.UserFromContext(r.Context())
	if err := h.users.ChangePassword(r.Context(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	h.logger.Info("password changed", zap.String("user_id", user.ID))
	httpx.Message(w, r, http.StatusOK, "password changed, please log in again", nil)
	return nil
}
