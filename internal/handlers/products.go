package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/AnshRaj112/usedgoods-backend/internal/httpx"
	"github.com/AnshRaj112/usedgoods-backend/internal/middleware"
	"github.com/AnshRaj112/usedgoods-backend/internal/models"
	"github.com/AnshRaj112/usedgoods-backend/internal/services"
	"github.com/AnshRaj112/usedgoods-backend/internal/validation"
)

const (
	uploadWorkers      = 4
	defaultMaxFileSize = 5 << 20
)

var (
	errInvalidProductID = apiError(http.StatusBadRequest, "invalid product id")
	errProductNotFound  = apiError(http.StatusNotFound, "product not found")
	errNotProductOwner  = apiError(http.StatusForbidden, "you do not have permission to modify this product")
)

type productListResponse struct {
	Products   []models.ProductSummary `json:"products"`
	Pagination models.Pagination       `json:"pagination"`
}

type searchResponse struct {
	Products   []models.ProductSummary `json:"products"`
	Query      string                  `json:"query"`
	Count      int                     `json:"count"`
	Pagination models.Pagination       `json:"pagination"`
}

func filterFrom(q validation.SearchQuery) services.ProductFilter {
	return services.ProductFilter{
		Category: q.Category,
		MinPrice: q.MinPrice,
		MaxPrice: q.MaxPrice,
		Location: q.Location,
		Page:     q.Page,
		Limit:    q.Limit,
		Sort:     q.Sort,
	}
}

// ListProducts handles GET /api/products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) error {
	q, err := validation.ParseSearch(r.URL.Query())
	if err != nil {
		return err
	}
	products, page, err := h.products.List(r.Context(), filterFrom(q))
	if err != nil {
		return err
	}
	httpx.OK(w, r, productListResponse{Products: products, Pagination: page})
	return nil
}

// SearchProducts handles GET /api/products/search. Searches by signed-in
// users are recorded; a failure to record never fails the search.
func (h *Handler) SearchProducts(w http.ResponseWriter, r *http.Request) error {
	q, err := validation.ParseSearch(r.URL.Query())
	if err != nil {
		return err
	}
	if q.Q == "" {
		return validation.Errors{{Field: "q", Message: "is required"}}
	}

	ctx := r.Context()
	products, page, err := h.products.Search(ctx, q.Q, filterFrom(q))
	if err != nil {
		return err
	}

	if user := middleware.UserFromContext(ctx); user != nil && h.history != nil {
		entry := models.SearchHistory{UserID: user.ID, Query: q.Q, ResultCount: page.Total}
		if err := h.history.Record(ctx, entry); err != nil {
			h.logger.Warn("failed to record search history", zap.Error(err), zap.String("user_id", user.ID))
		}
	}

	httpx.OK(w, r, searchResponse{Products: products, Query: q.Q, Count: page.Total, Pagination: page})
	return nil
}

// GetProduct handles GET /api/products/{id}.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "id")
	if !validation.IsUUID4(id) {
		return errInvalidProductID
	}
	var viewerID string
	if user := middleware.UserFromContext(r.Context()); user != nil {
		viewerID = user.ID
	}
	product, err := h.products.View(r.Context(), id, viewerID)
	if errors.Is(err, services.ErrNotFound) {
		return errProductNotFound
	}
	if err != nil {
		return err
	}
	httpx.OK(w, r, product)
	return nil
}

func productInput(req validation.ProductRequest) services.ProductInput {
	return services.ProductInput{
		Title:           req.Title,
		Description:     req.Description,
		Price:           *req.Price,
		Category:        req.Category,
		Stock:           *req.Stock,
		Location:        req.Location,
		IsNegotiable:    *req.IsNegotiable,
		ConditionStatus: req.ConditionStatus,
	}
}

// CreateProduct handles POST /api/products.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) error {
	var req validation.ProductRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		return err
	}
	user := middleware.UserFromContext(r.Context())
	id, err := h.products.Create(r.Context(), user.ID, productInput(req))
	if err != nil {
		return err
	}
	h.logger.Info("product created", zap.String("product_id", id), zap.String("seller_id", user.ID))
	httpx.Message(w, r, http.StatusCreated, "product created", map[string]string{"id": id})
	return nil
}

// authorizeProduct checks the id format and that the caller may modify the
// product.
func (h *Handler) authorizeProduct(ctx context.Context, id string, user *models.User) error {
	if !validation.IsUUID4(id) {
		return errInvalidProductID
	}
	switch err := h.products.Authorize(ctx, id, user); {
	case errors.Is(err, services.ErrNotFound):
		return errProductNotFound
	case errors.Is(err, services.ErrForbidden):
		return errNotProductOwner
	default:
		return err
	}
}

// UpdateProduct handles PUT /api/products/{id}.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "id")
	var req validation.ProductRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		return err
	}
	user := middleware.UserFromContext(r.Context())
	if err := h.authorizeProduct(r.Context(), id, user); err != nil {
		return err
	}
	if err := h.products.Update(r.Context(), id, productInput(req)); err != nil {
		return err
	}
	httpx.Message(w, r, http.StatusOK, "product updated", map[string]string{"id": id})
	return nil
}

// DeleteProduct handles DELETE /api/products/{id} as a soft delete.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "id")
	user := middleware.UserFromContext(r.Context())
	if err := h.authorizeProduct(r.Context(), id, user); err != nil {
		return err
	}
	if err := h.products.SoftDelete(r.Context(), id); err != nil {
		return err
	}
	h.logger.Info("product deleted", zap.String("product_id", id), zap.String("by", user.ID))
	httpx.Message(w, r, http.StatusOK, "product deleted", nil)
	return nil
}

// UploadProductImages handles POST /api/products/{id}/images with up to
// MaxUploadFiles files in the "images" field. Either every file is stored
// and recorded or none is.
func (h *Handler) UploadProductImages(w http.ResponseWriter, r *http.Request) error {
	if h.images == nil {
		return apiError(http.StatusServiceUnavailable, "image uploads are not configured")
	}
	id := chi.URLParam(r, "id")
	ctx := r.Context()
	user := middleware.UserFromContext(ctx)
	if err := h.authorizeProduct(ctx, id, user); err != nil {
		return err
	}

	maxFile := h.uploads.MaxFileSize
	if maxFile <= 0 {
		maxFile = defaultMaxFileSize
	}
	r.Body = http.MaxBytesReader(w, r.Body, int64(services.MaxUploadFiles)*maxFile+(1<<20))
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return apiError(http.StatusBadRequest, "invalid multipart form")
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		return apiError(http.StatusBadRequest, "no files uploaded")
	}
	if len(files) > services.MaxUploadFiles {
		return apiError(http.StatusBadRequest, fmt.Sprintf("at most %d files per upload", services.MaxUploadFiles))
	}
	for _, fh := range files {
		if err := h.uploads.Check(fh); err != nil {
			return err
		}
	}

	urls := make([]string, len(files))
	var (
		mu    sync.Mutex
		saved []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadWorkers)
	for i, fh := range files {
		i, fh := i, fh
		g.Go(func() error {
			f, err := fh.Open()
			if err != nil {
				return err
			}
			data, err := io.ReadAll(io.LimitReader(f, maxFile+1))
			f.Close()
			if err != nil {
				return err
			}
			processed, ext, err := h.uploads.Process(data, filepath.Ext(fh.Filename))
			if err != nil {
				return err
			}
			url, err := h.images.Save(gctx, services.SanitizeFilename(fh.Filename, ext), processed)
			if err != nil {
				return err
			}
			mu.Lock()
			saved = append(saved, url)
			mu.Unlock()
			urls[i] = url
			return nil
		})
	}
	err := g.Wait()
	var images []models.ProductImage
	if err == nil {
		images, err = h.products.AddImages(ctx, id, urls)
	}
	if err != nil {
		h.discardUploads(saved)
		return err
	}

	h.logger.Info("product images uploaded", zap.String("product_id", id), zap.Int("count", len(images)))
	httpx.Message(w, r, http.StatusCreated, "images uploaded", images)
	return nil
}

func (h *Handler) discardUploads(urls []string) {
	for _, url := range urls {
		if err := h.images.Delete(context.Background(), url); err != nil {
			h.logger.Warn("failed to remove orphaned upload", zap.String("url", url), zap.Error(err))
		}
	}
}
