package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/AnshRaj112/usedgoods-backend/internal/models"
)

type RegisterRequest struct {
	Email    string  `json:"email"`
	Username string  `json:"username"`
	Password string  `json:"password"`
	Phone    *string `json:"phone,omitempty"`
	Address  *string `json:"address,omitempty"`
}

type RegisterResult struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

type LoginResult struct {
	User      models.PublicUser `json:"user"`
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

type ProfileUpdate struct {
	Username *string `json:"username,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Address  *string `json:"address,omitempty"`
	Bio      *string `json:"bio,omitempty"`
}

type Product struct {
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	Price           int64   `json:"price"`
	Category        string  `json:"category"`
	Stock           int     `json:"stock,omitempty"`
	Location        *string `json:"location,omitempty"`
	IsNegotiable    bool    `json:"is_negotiable"`
	ConditionStatus *string `json:"condition_status,omitempty"`
}

// ListOptions are the listing and search filters. Zero values are omitted.
type ListOptions struct {
	Category string
	MinPrice *int64
	MaxPrice *int64
	Location string
	Page     int
	Limit    int
	Sort     string
}

func (o ListOptions) values() url.Values {
	q := url.Values{}
	if o.Category != "" {
		q.Set("category", o.Category)
	}
	if o.MinPrice != nil {
		q.Set("minPrice", strconv.FormatInt(*o.MinPrice, 10))
	}
	if o.MaxPrice != nil {
		q.Set("maxPrice", strconv.FormatInt(*o.MaxPrice, 10))
	}
	if o.Location != "" {
		q.Set("location", o.Location)
	}
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Sort != "" {
		q.Set("sort", o.Sort)
	}
	return q
}

type ProductList struct {
	Products   []models.ProductSummary `json:"products"`
	Pagination models.Pagination       `json:"pagination"`
}

type SearchResult struct {
	Products   []models.ProductSummary `json:"products"`
	Query      string                  `json:"query"`
	Count      int                     `json:"count"`
	Pagination models.Pagination       `json:"pagination"`
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	var out RegisterResult
	if err := c.do(ctx, http.MethodPost, "/auth/register", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login signs in and keeps the returned token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var out LoginResult
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

// Logout ends the server session and forgets the token, even when the
// server call fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
	c.SetToken("")
	return err
}

func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var out models.User
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProfile(ctx context.Context, in ProfileUpdate) (*models.User, error) {
	var out models.User
	if err := c.do(ctx, http.MethodPut, "/auth/me", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChangePassword changes the password. The server revokes every session, so
// the stored token is dropped on success.
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	body := map[string]string{
		"current_password": current,
		"new_password":     next,
		"confirm_password": next,
	}
	if err := c.do(ctx, http.MethodPut, "/auth/password", body, nil); err != nil {
		return err
	}
	c.SetToken("")
	return nil
}

func (c *Client) ListProducts(ctx context.Context, opts ListOptions) (*ProductList, error) {
	var out ProductList
	if err := c.do(ctx, http.MethodGet, withQuery("/products", opts.values()), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SearchProducts(ctx context.Context, query string, opts ListOptions) (*SearchResult, error) {
	q := opts.values()
	q.Set("q", query)
	var out SearchResult
	if err := c.do(ctx, http.MethodGet, withQuery("/products/search", q), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetProduct(ctx context.Context, id string) (*models.ProductDetail, error) {
	var out models.ProductDetail
	if err := c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateProduct returns the new product id.
func (c *Client) CreateProduct(ctx context.Context, p Product) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/products", p, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) UpdateProduct(ctx context.Context, id string, p Product) error {
	return c.do(ctx, http.MethodPut, "/products/"+url.PathEscape(id), p, nil)
}

func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/products/"+url.PathEscape(id), nil, nil)
}

func (c *Client) Cart(ctx context.Context) (*models.Cart, error) {
	return c.cartCall(ctx, http.MethodGet, "/cart", nil)
}

func (c *Client) AddToCart(ctx context.Context, productID string, quantity int) (*models.Cart, error) {
	return c.cartCall(ctx, http.MethodPost, "/cart/items", map[string]any{"product_id": productID, "quantity": quantity})
}

func (c *Client) SetCartQuantity(ctx context.Context, productID string, quantity int) (*models.Cart, error) {
	return c.cartCall(ctx, http.MethodPut, "/cart/items/"+url.PathEscape(productID), map[string]int{"quantity": quantity})
}

func (c *Client) RemoveFromCart(ctx context.Context, productID string) (*models.Cart, error) {
	return c.cartCall(ctx, http.MethodDelete, "/cart/items/"+url.PathEscape(productID), nil)
}

func (c *Client) ClearCart(ctx context.Context) (*models.Cart, error) {
	return c.cartCall(ctx, http.MethodDelete, "/cart", nil)
}

func (c *Client) cartCall(ctx context.Context, method, path string, body any) (*models.Cart, error) {
	var out models.Cart
	if err := c.do(ctx, method, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
