package models

import "time"

const (
	ProductStatusActive  = "active"
	ProductStatusDeleted = "deleted"
)

var ProductCategories = []string{
	"electronics", "fashion", "beauty", "sports", "books", "food", "furniture", "etc",
}

var ProductConditions = []string{"new", "like_new", "good", "fair", "poor"}

type Product struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Price           int64     `json:"price"`
	Category        string    `json:"category"`
	SellerID        string    `json:"seller_id"`
	Stock           int       `json:"stock"`
	Location        *string   `json:"location"`
	IsNegotiable    bool      `json:"is_negotiable"`
	ConditionStatus *string   `json:"condition_status"`
	Status          string    `json:"status"`
	ViewCount       int       `json:"view_count"`
	Rating          float64   `json:"rating"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ProductSummary is one row of a listing or search result.
type ProductSummary struct {
	Product
	SellerName   string  `json:"seller_name"`
	SellerRating float64 `json:"seller_rating"`
	Thumbnail    *string `json:"thumbnail"`
}

type ProductDetail struct {
	Product
	SellerName       string         `json:"seller_name"`
	SellerImage      *string        `json:"seller_image"`
	SellerRating     float64        `json:"seller_rating"`
	SellerTotalSales int            `json:"seller_total_sales"`
	Images           []ProductImage `json:"images"`
}

type ProductImage struct {
	ID           string    `json:"id"`
	ProductID    string    `json:"product_id"`
	ImageURL     string    `json:"image_url"`
	DisplayOrder int       `json:"display_order"`
	IsThumbnail  bool      `json:"is_thumbnail"`
	CreatedAt    time.Time `json:"created_at"`
}

type RecentlyViewed struct {
	ProductSummary
	ViewedAt time.Time `json:"viewed_at"`
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// NewPagination computes totalPages as ceil(total/limit).
func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}
