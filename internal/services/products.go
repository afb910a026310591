package services

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AnshRaj112/usedgoods-backend/internal/database"
	"github.com/AnshRaj112/usedgoods-backend/internal/models"
)

const productColumns = `p.id, p.title, p.description, p.price, p.category, p.seller_id, p.stock,
	p.location, p.is_negotiable, p.condition_status, p.status, p.view_count, p.rating,
	p.created_at, p.updated_at`

// Sort keys are resolved through this map and never interpolated from input.
var productSorts = map[string]string{
	"latest":     "p.created_at DESC",
	"price_low":  "p.price ASC",
	"price_high": "p.price DESC",
	"popular":    "p.view_count DESC",
	"rating":     "p.rating DESC",
}

// ProductFilter holds the allow-listed listing filters.
type ProductFilter struct {
	Category string
	MinPrice *int64
	MaxPrice *int64
	Location string
	Page     int
	Limit    int
	Sort     string
}

func (f *ProductFilter) normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if _, ok := productSorts[f.Sort]; !ok {
		f.Sort = "latest"
	}
}

func (f ProductFilter) offset() int { return (f.Page - 1) * f.Limit }

// where builds the predicate list; every value is a bound parameter.
func (f ProductFilter) where() (string, []any) {
	clauses := []string{"p.status = ?"}
	args := []any{models.ProductStatusActive}
	if f.Category != "" {
		clauses = append(clauses, "p.category = ?")
		args = append(args, f.Category)
	}
	if f.MinPrice != nil {
		clauses = append(clauses, "p.price >= ?")
		args = append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		clauses = append(clauses, "p.price <= ?")
		args = append(args, *f.MaxPrice)
	}
	if f.Location != "" {
		clauses = append(clauses, "p.location LIKE ? ESCAPE '!'")
		args = append(args, "%"+EscapeLike(f.Location)+"%")
	}
	return strings.Join(clauses, " AND "), args
}

func (f ProductFilter) cacheKey(generation int64) string {
	raw := fmt.Sprintf("%s|%v|%v|%s|%d|%d|%s", f.Category, deref(f.MinPrice), deref(f.MaxPrice),
		f.Location, f.Page, f.Limit, f.Sort)
	sum := sha1.Sum([]byte(raw))
	return CacheKey(fmt.Sprintf("listing:%d", generation), hex.EncodeToString(sum[:]))
}

type ProductInput struct {
	Title           string
	Description     string
	Price           int64
	Category        string
	Stock           int
	Location        *string
	IsNegotiable    bool
	ConditionStatus *string
}

type listingPage struct {
	Products []models.ProductSummary `json:"products"`
	Total    int                     `json:"total"`
}

type ProductService struct {
	db     *database.DB
	cache  *CacheService
	logger *zap.Logger
}

func NewProductService(db *database.DB, cache *CacheService, logger *zap.Logger) *ProductService {
	return &ProductService{db: db, cache: cache, logger: logger}
}

// List returns one page of active products.
func (s *ProductService) List(ctx context.Context, f ProductFilter) ([]models.ProductSummary, models.Pagination, error) {
	f.normalize()

	var key string
	if s.cache.Enabled() {
		if gen, err := s.cache.ListingGeneration(ctx); err == nil {
			key = f.cacheKey(gen)
			var page listingPage
			if hit, err := s.cache.Get(ctx, key, &page); err == nil && hit {
				return page.Products, models.NewPagination(f.Page, f.Limit, page.Total), nil
			}
		}
	}

	where, args := f.where()
	products, err := s.querySummaries(ctx,
		`WHERE `+where+` ORDER BY `+productSorts[f.Sort]+`, p.id ASC LIMIT ? OFFSET ?`,
		append(args, f.Limit, f.offset())...)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	total, err := s.count(ctx, where, args)
	if err != nil {
		return nil, models.Pagination{}, err
	}

	if key != "" {
		if err := s.cache.Set(ctx, key, listingPage{Products: products, Total: total}); err != nil {
			s.logger.Warn("failed to cache listing", zap.Error(err))
		}
	}
	return products, models.NewPagination(f.Page, f.Limit, total), nil
}

// Search matches q against title and description. Title hits rank first,
// then newest.
func (s *ProductService) Search(ctx context.Context, q string, f ProductFilter) ([]models.ProductSummary, models.Pagination, error) {
	f.normalize()
	pattern := "%" + EscapeLike(strings.TrimSpace(q)) + "%"

	where, args := f.where()
	where += " AND (p.title LIKE ? ESCAPE '!' OR p.description LIKE ? ESCAPE '!')"
	args = append(args, pattern, pattern)

	queryArgs := append(append([]any{}, args...), pattern, f.Limit, f.offset())
	products, err := s.querySummaries(ctx,
		`WHERE `+where+` ORDER BY CASE WHEN p.title LIKE ? ESCAPE '!' THEN 0 ELSE 1 END, p.created_at DESC, p.id ASC LIMIT ? OFFSET ?`,
		queryArgs...)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	total, err := s.count(ctx, where, args)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	return products, models.NewPagination(f.Page, f.Limit, total), nil
}

// Get returns an active product with seller fields and ordered images.
func (s *ProductService) Get(ctx context.Context, id string) (*models.ProductDetail, error) {
	var d models.ProductDetail
	dest := append(productDest(&d.Product), &d.SellerName, &d.SellerImage, &d.SellerRating, &d.SellerTotalSales)
	err := s.db.QueryRow(ctx, `
		SELECT `+productColumns+`, u.username, u.profile_image, u.rating, u.total_sales
		FROM products p INNER JOIN users u ON p.seller_id = u.id
		WHERE p.id = ? AND p.status = ?`,
		id, models.ProductStatusActive).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	images, err := s.Images(ctx, id)
	if err != nil {
		return nil, err
	}
	d.Images = images
	return &d, nil
}

// View loads the detail, bumps the view counter and, for a signed-in viewer,
// records the product in their recently viewed list.
func (s *ProductService) View(ctx context.Context, id, viewerID string) (*models.ProductDetail, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.Exec(ctx, `UPDATE products SET view_count = view_count + 1 WHERE id = ?`, id); err != nil {
		return nil, err
	}
	if viewerID != "" {
		if err := s.RecordView(ctx, viewerID, id); err != nil {
			s.logger.Warn("failed to record recently viewed", zap.Error(err), zap.String("product_id", id))
		}
	}
	return d, nil
}

func (s *ProductService) RecordView(ctx context.Context, userID, productID string) error {
	upsert := s.db.Dialect().Upsert([]string{"user_id", "product_id"}, []string{"viewed_at"})
	_, err := s.db.Exec(ctx,
		`INSERT INTO recently_viewed (user_id, product_id, viewed_at) VALUES (?, ?, ?)`+upsert,
		userID, productID, time.Now().UTC())
	return err
}

// RecentlyViewed lists the user's viewed products that are still active.
func (s *ProductService) RecentlyViewed(ctx context.Context, userID string, limit int) ([]models.RecentlyViewed, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+productColumns+`, u.username, u.rating,
			(SELECT image_url FROM product_images WHERE product_id = p.id AND is_thumbnail = ? ORDER BY display_order LIMIT 1),
			rv.viewed_at
		FROM recently_viewed rv
		INNER JOIN products p ON rv.product_id = p.id
		INNER JOIN users u ON p.seller_id = u.id
		WHERE rv.user_id = ? AND p.status = ?
		ORDER BY rv.viewed_at DESC LIMIT ?`,
		true, userID, models.ProductStatusActive, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.RecentlyViewed{}
	for rows.Next() {
		var rv models.RecentlyViewed
		dest := append(productDest(&rv.Product), &rv.SellerName, &rv.SellerRating, &rv.Thumbnail, &rv.ViewedAt)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

// Images returns a product's images by display order.
func (s *ProductService) Images(ctx context.Context, productID string) ([]models.ProductImage, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, product_id, image_url, display_order, is_thumbnail, created_at
		FROM product_images WHERE product_id = ? ORDER BY display_order ASC`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	images := []models.ProductImage{}
	for rows.Next() {
		var img models.ProductImage
		if err := rows.Scan(&img.ID, &img.ProductID, &img.ImageURL, &img.DisplayOrder, &img.IsThumbnail, &img.CreatedAt); err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// Create inserts a product owned by sellerID and returns its id.
func (s *ProductService) Create(ctx context.Context, sellerID string, in ProductInput) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC()
	err := s.db.Transaction(ctx, func(tx *database.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO products (id, title, description, price, category, seller_id, stock, location,
				is_negotiable, condition_status, status, view_count, rating, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, in.Title, in.Description, in.Price, in.Category, sellerID, in.Stock, in.Location,
			in.IsNegotiable, in.ConditionStatus, models.ProductStatusActive, 0, 0, now, now)
		return err
	})
	if err != nil {
		return "", err
	}
	s.invalidate(ctx)
	return id, nil
}

// Authorize loads the product's seller and compares it with the requester.
// It returns ErrNotFound for unknown or deleted products and ErrForbidden
// when the requester is neither the seller nor an admin.
func (s *ProductService) Authorize(ctx context.Context, productID string, requester *models.User) error {
	var sellerID, status string
	err := s.db.QueryRow(ctx, `SELECT seller_id, status FROM products WHERE id = ?`, productID).Scan(&sellerID, &status)
	if errors.Is(err, sql.ErrNoRows) || status == models.ProductStatusDeleted {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if sellerID != requester.ID && !requester.IsAdmin {
		return ErrForbidden
	}
	return nil
}

func (s *ProductService) Update(ctx context.Context, id string, in ProductInput) error {
	_, err := s.db.Exec(ctx, `
		UPDATE products SET title = ?, description = ?, price = ?, category = ?, stock = ?, location = ?,
			is_negotiable = ?, condition_status = ?, updated_at = ?
		WHERE id = ?`,
		in.Title, in.Description, in.Price, in.Category, in.Stock, in.Location,
		in.IsNegotiable, in.ConditionStatus, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// SoftDelete hides the product from every listing; the row stays.
func (s *ProductService) SoftDelete(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `UPDATE products SET status = ?, updated_at = ? WHERE id = ?`,
		models.ProductStatusDeleted, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// AddImages appends images after the existing ones. When the product has no
// thumbnail yet, the first new image becomes it.
func (s *ProductService) AddImages(ctx context.Context, productID string, urls []string) ([]models.ProductImage, error) {
	var images []models.ProductImage
	err := s.db.Transaction(ctx, func(tx *database.Tx) error {
		var maxOrder, thumbs int
		err := tx.QueryRow(ctx, `
			SELECT COALESCE(MAX(display_order), -1), COUNT(CASE WHEN is_thumbnail = ? THEN 1 END)
			FROM product_images WHERE product_id = ?`, true, productID).Scan(&maxOrder, &thumbs)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		for i, url := range urls {
			img := models.ProductImage{
				ID:           uuid.NewString(),
				ProductID:    productID,
				ImageURL:     url,
				DisplayOrder: maxOrder + 1 + i,
				IsThumbnail:  thumbs == 0 && i == 0,
				CreatedAt:    now,
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO product_images (id, product_id, image_url, display_order, is_thumbnail, created_at)
				VALUES (?, ?, ?, ?, ?, ?)`,
				img.ID, img.ProductID, img.ImageURL, img.DisplayOrder, img.IsThumbnail, img.CreatedAt); err != nil {
				return err
			}
			images = append(images, img)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return images, nil
}

func (s *ProductService) querySummaries(ctx context.Context, tail string, args ...any) ([]models.ProductSummary, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+productColumns+`, u.username, u.rating,
			(SELECT image_url FROM product_images WHERE product_id = p.id AND is_thumbnail = ? ORDER BY display_order LIMIT 1)
		FROM products p INNER JOIN users u ON p.seller_id = u.id `+tail,
		append([]any{true}, args...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []models.ProductSummary{}
	for rows.Next() {
		var ps models.ProductSummary
		dest := append(productDest(&ps.Product), &ps.SellerName, &ps.SellerRating, &ps.Thumbnail)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		products = append(products, ps)
	}
	return products, rows.Err()
}

func (s *ProductService) count(ctx context.Context, where string, args []any) (int, error) {
	var total int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM products p WHERE `+where, args...).Scan(&total)
	return total, err
}

func (s *ProductService) invalidate(ctx context.Context) {
	if err := s.cache.InvalidateListings(ctx); err != nil {
		s.logger.Warn("failed to invalidate listing cache", zap.Error(err))
	}
}

func productDest(p *models.Product) []any {
	return []any{&p.ID, &p.Title, &p.Description, &p.Price, &p.Category, &p.SellerID, &p.Stock,
		&p.Location, &p.IsNegotiable, &p.ConditionStatus, &p.Status, &p.ViewCount, &p.Rating,
		&p.CreatedAt, &p.UpdatedAt}
}

// EscapeLike escapes LIKE wildcards for use with ESCAPE '!'.
func EscapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}

func deref(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}
