package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/AnshRaj112/usedgoods-backend/internal/httpx"
)

const defaultHistoryLimit = 20

func limitParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n < 1 || n > 100 {
		return defaultHistoryLimit
	}
	return n
}

// RecentlyViewed handles GET /api/users/{userId}/recently-viewed.
func (h *Handler) RecentlyViewed(w http.ResponseWriter, r *http.Request) error {
	items, err := h.products.RecentlyViewed(r.Context(), chi.URLParam(r, "userId"), limitParam(r))
	if err != nil {
		return err
	}
	httpx.OK(w, r, items)
	return nil
}

// SearchHistory handles GET /api/users/{userId}/search-history.
func (h *Handler) SearchHistory(w http.ResponseWriter, r *http.Request) error {
	if h.history == nil {
		return apiError(http.StatusServiceUnavailable, "search history is not available")
	}
	entries, err := h.history.Recent(r.Context(), chi.URLParam(r, "userId"), limitParam(r))
	if err != nil {
		return err
	}
	httpx.OK(w, r, entries)
	return nil
}
