package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/AnshRaj112/usedgoods-backend/internal/httpx"
	"github.com/AnshRaj112/usedgoods-backend/internal/middleware"
	"github.com/AnshRaj112/usedgoods-backend/internal/services"
	"github.com/AnshRaj112/usedgoods-backend/internal/validation"
)

// SweepSessions handles POST /api/admin/maintenance/sweep-sessions.
func (h *Handler) SweepSessions(w http.ResponseWriter, r *http.Request) error {
	n, err := h.sessions.DeleteExpired(r.Context())
	if err != nil {
		return err
	}
	h.logger.Info("expired sessions swept", zap.Int64("deleted", n),
		zap.String("by", middleware.UserFromContext(r.Context()).ID))
	httpx.Message(w, r, http.StatusOK, "expired sessions removed", map[string]int64{"deleted": n})
	return nil
}

// PruneLoginAttempts handles POST /api/admin/maintenance/prune-login-attempts.
func (h *Handler) PruneLoginAttempts(w http.ResponseWriter, r *http.Request) error {
	n, err := h.attempts.Prune(r.Context())
	if err != nil {
		return err
	}
	httpx.Message(w, r, http.StatusOK, "old login attempts removed", map[string]int64{"deleted": n})
	return nil
}

// LoginAttempts handles GET /api/admin/login-attempts?email=.
func (h *Handler) LoginAttempts(w http.ResponseWriter, r *http.Request) error {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		return validation.Errors{{Field: "email", Message: "is required"}}
	}
	attempts, err := h.attempts.Recent(r.Context(), email, limitParam(r))
	if err != nil {
		return err
	}
	httpx.OK(w, r, attempts)
	return nil
}

// DeleteUser handles DELETE /api/admin/users/{userId}: a soft delete that
// also revokes every session of the account.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "userId")
	admin := middleware.UserFromContext(r.Context())
	if id == admin.ID {
		return apiError(http.StatusBadRequest, "cannot delete your own account")
	}
	err := h.users.SoftDelete(r.Context(), id)
	if errors.Is(err, services.ErrNotFound) {
		return apiError(http.StatusNotFound, "user not found")
	}
	if err != nil {
		return err
	}
	h.logger.Info("user deleted by admin", zap.String("user_id", id), zap.String("by", admin.ID))
	httpx.Message(w, r, http.StatusOK, "user deleted", nil)
	return nil
}
