package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/AnshRaj112/usedgoods-backend/internal/httpx"
)

type healthStatus struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	Redis     string    `json:"redis"`
	Timestamp time.Time `json:"timestamp"`
}

// Health reports dependency status. A database failure turns the answer
// into 503; Redis is optional and only reported.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := healthStatus{Status: "ok", Database: "up", Redis: "disabled", Timestamp: time.Now().UTC()}
	code := http.StatusOK
	if err := h.db.Ping(ctx); err != nil {
		status.Status = "degraded"
		status.Database = "down"
		code = http.StatusServiceUnavailable
	}
	if h.redis != nil {
		status.Redis = "up"
		if err := h.redis.Ping(ctx).Err(); err != nil {
			status.Redis = "down"
		}
	}
	httpx.JSON(w, r, code, httpx.Envelope{Success: code == http.StatusOK, Data: status})
}
