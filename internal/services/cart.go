package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/AnshRaj112/usedgoods-backend/internal/database"
	"github.com/AnshRaj112/usedgoods-backend/internal/models"
)

// CartService owns the shopping cart. Every mutation returns the cart as
// stored, so clients only ever render server state.
type CartService struct {
	db *database.DB
}

func NewCartService(db *database.DB) *CartService {
	return &CartService{db: db}
}

func (s *CartService) Get(ctx context.Context, userID string) (*models.Cart, error) {
	rows, err := s.db.Query(ctx, `
		SELECT p.id, p.title, p.price, p.stock,
			(SELECT image_url FROM product_images WHERE product_id = p.id AND is_thumbnail = ? ORDER BY display_order LIMIT 1),
			c.quantity, c.added_at
		FROM cart_items c INNER JOIN products p ON c.product_id = p.id
		WHERE c.user_id = ? AND p.status = ?
		ORDER BY c.added_at ASC, p.id ASC`,
		true, userID, models.ProductStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cart := &models.Cart{Items: []models.CartItem{}}
	for rows.Next() {
		var it models.CartItem
		if err := rows.Scan(&it.ProductID, &it.Title, &it.Price, &it.Stock, &it.Thumbnail, &it.Quantity, &it.AddedAt); err != nil {
			return nil, err
		}
		it.Subtotal = it.Price * int64(it.Quantity)
		cart.Items = append(cart.Items, it)
		cart.TotalCount += it.Quantity
		cart.TotalPrice += it.Subtotal
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cart, nil
}

// AddItem adds quantity to the line for productID, creating it if needed.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int) (*models.Cart, error) {
	err := s.db.Transaction(ctx, func(tx *database.Tx) error {
		stock, err := s.purchasable(ctx, tx, userID, productID)
		if err != nil {
			return err
		}
		var current int
		err = tx.QueryRow(ctx, `SELECT quantity FROM cart_items WHERE user_id = ? AND product_id = ?`,
			userID, productID).Scan(&current)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		total := current + quantity
		if quantity < 1 || total > stock {
			return ErrInvalidQuantity
		}
		now := time.Now().UTC()
		if current == 0 {
			_, err = tx.Exec(ctx, `
				INSERT INTO cart_items (user_id, product_id, quantity, added_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
				userID, productID, total, now, now)
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE cart_items SET quantity = ?, updated_at = ? WHERE user_id = ? AND product_id = ?`,
			total, now, userID, productID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

// SetQuantity replaces the quantity of an existing line.
func (s *CartService) SetQuantity(ctx context.Context, userID, productID string, quantity int) (*models.Cart, error) {
	err := s.db.Transaction(ctx, func(tx *database.Tx) error {
		stock, err := s.purchasable(ctx, tx, userID, productID)
		if err != nil {
			return err
		}
		if quantity < 1 || quantity > stock {
			return ErrInvalidQuantity
		}
		res, err := tx.Exec(ctx, `UPDATE cart_items SET quantity = ?, updated_at = ? WHERE user_id = ? AND product_id = ?`,
			quantity, time.Now().UTC(), userID, productID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) (*models.Cart, error) {
	res, err := s.db.Exec(ctx, `DELETE FROM cart_items WHERE user_id = ? AND product_id = ?`, userID, productID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, userID)
}

func (s *CartService) Clear(ctx context.Context, userID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM cart_items WHERE user_id = ?`, userID)
	return err
}

// purchasable returns the product's stock if userID may put it in a cart.
func (s *CartService) purchasable(ctx context.Context, q database.Querier, userID, productID string) (int, error) {
	var sellerID, status string
	var stock int
	err := q.QueryRow(ctx, `SELECT seller_id, status, stock FROM products WHERE id = ?`, productID).
		Scan(&sellerID, &status, &stock)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	if status != models.ProductStatusActive || stock < 1 {
		return 0, ErrProductUnavailable
	}
	if sellerID == userID {
		return 0, ErrOwnProduct
	}
	return stock, nil
}
