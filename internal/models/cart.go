package models

import "time"

type CartItem struct {
	ProductID string    `json:"product_id"`
	Title     string    `json:"title"`
	Price     int64     `json:"price"`
	Stock     int       `json:"stock"`
	Thumbnail *string   `json:"thumbnail"`
	Quantity  int       `json:"quantity"`
	Subtotal  int64     `json:"subtotal"`
	AddedAt   time.Time `json:"added_at"`
}

// Cart is always rebuilt from the database; the client never owns it.
type Cart struct {
	Items      []CartItem `json:"items"`
	TotalCount int        `json:"total_count"`
	TotalPrice int64      `json:"total_price"`
}
