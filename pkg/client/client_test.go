package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/AnshRaj112/usedgoods-backend/internal/config"
	"github.com/AnshRaj112/usedgoods-backend/internal/database"
	"github.com/AnshRaj112/usedgoods-backend/internal/handlers"
	"github.com/AnshRaj112/usedgoods-backend/internal/middleware"
	"github.com/AnshRaj112/usedgoods-backend/internal/routes"
	"github.com/AnshRaj112/usedgoods-backend/internal/services"
)

const password = "Str0ng!Pass"

func newServer(t *testing.T, csrf bool) *httptest.Server {
	t.Helper()
	cfg := &config.Config{
		Environment:        "test",
		JWTSecret:          "client-test-secret",
		JWTExpiresIn:       time.Hour,
		BcryptCost:         bcrypt.MinCost,
		MaxLoginAttempts:   5,
		LoginAttemptWindow: 15 * time.Minute,
		SessionSecret:      "client-test-session-secret",
		SessionMaxAge:      time.Hour,
		CSRFEnabled:        csrf,
		RateLimitWindow:    time.Minute,
		RateLimitMax:       1000,
	}
	db, err := database.Open(database.SQLite, "file:"+t.Name()+"?mode=memory&cache=shared", 1)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.InitTables(context.Background()); err != nil {
		t.Fatalf("init tables: %v", err)
	}

	logger := zaptest.NewLogger(t)
	sessions := services.NewSessionService(db)
	tokens := services.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpiresIn)
	users := services.NewUserService(db, sessions, logger, cfg.BcryptCost, false)
	attempts := services.NewLoginAttemptService(db, logger, cfg.MaxLoginAttempts, cfg.LoginAttemptWindow, 24*time.Hour)

	router := routes.NewRouter(routes.Dependencies{
		Config:   cfg,
		Logger:   logger,
		Attempts: attempts,
		Auth:     middleware.NewAuthenticator(tokens, sessions, users, logger),
		Handler: handlers.New(handlers.Deps{
			Config:   cfg,
			Logger:   logger,
			DB:       db,
			Tokens:   tokens,
			Users:    users,
			Sessions: sessions,
			Attempts: attempts,
			Products: services.NewProductService(db, nil, logger),
			Cart:     services.NewCartService(db),
			History:  services.NewSQLSearchHistory(db),
		}),
		AuthRateLimitMax: 1000,
		APIRateLimitMax:  1000,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func signup(t *testing.T, c *Client, email, username string) *LoginResult {
	t.Helper()
	ctx := context.Background()
	if _, err := c.Register(ctx, RegisterRequest{Email: email, Username: username, Password: password}); err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	res, err := c.Login(ctx, email, password)
	if err != nil {
		t.Fatalf("login %s: %v", email, err)
	}
	return res
}

func TestAuthFlow(t *testing.T) {
	srv := newServer(t, false)
	ctx := context.Background()
	c := New(srv.URL+"/api", WithLogger(zaptest.NewLogger(t)))

	login := signup(t, c, "alice@example.com", "alice")
	if c.Token() != login.Token || login.Token == "" {
		t.Fatal("login token not stored")
	}

	me, err := c.Me(ctx)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if me.ID != login.User.ID {
		t.Errorf("me id = %s, want %s", me.ID, login.User.ID)
	}

	bio := "collector of old radios"
	updated, err := c.UpdateProfile(ctx, ProfileUpdate{Bio: &bio})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.Bio == nil || *updated.Bio != bio {
		t.Errorf("bio = %v", updated.Bio)
	}

	old := c.Token()
	if err := c.ChangePassword(ctx, password, "N3w!Passw0rd"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if c.Token() != "" {
		t.Error("token kept after password change")
	}
	c.SetToken(old)
	_, err = c.Me(ctx)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("old token after password change: %v", err)
	}

	if _, err := c.Login(ctx, "alice@example.com", "N3w!Passw0rd"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if err := c.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if c.Token() != "" {
		t.Error("token kept after logout")
	}
}

func TestValidationErrorsCarryFields(t *testing.T) {
	srv := newServer(t, false)
	c := New(srv.URL + "/api")

	_, err := c.Register(context.Background(), RegisterRequest{Email: "bad", Username: "alice", Password: password})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || len(apiErr.Fields) == 0 || apiErr.Fields[0].Field != "email" {
		t.Errorf("api error = %+v", apiErr)
	}
}

func TestProductsAndCart(t *testing.T) {
	srv := newServer(t, false)
	ctx := context.Background()
	seller := New(srv.URL + "/api")
	buyer := New(srv.URL + "/api")
	signup(t, seller, "alice@example.com", "alice")
	signup(t, buyer, "bob@example.com", "bob")

	id, err := seller.CreateProduct(ctx, Product{
		Title: "Record player", Description: "plays 33 and 45 rpm records", Price: 8000, Category: "electronics", Stock: 3,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	err = buyer.UpdateProduct(ctx, id, Product{Title: "Mine now", Description: "plays 33 and 45 rpm records", Price: 1, Category: "electronics"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusForbidden {
		t.Fatalf("non-owner update: %v", err)
	}

	list, err := buyer.ListProducts(ctx, ListOptions{Category: "electronics", Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list.Products) != 1 || list.Pagination.Total != 1 {
		t.Errorf("list = %+v", list)
	}
	found, err := buyer.SearchProducts(ctx, "record", ListOptions{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if found.Count != 1 || found.Query != "record" {
		t.Errorf("search = %+v", found)
	}
	detail, err := buyer.GetProduct(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if detail.SellerName != "alice" {
		t.Errorf("seller = %q", detail.SellerName)
	}

	cart, err := buyer.AddToCart(ctx, id, 2)
	if err != nil {
		t.Fatalf("add to cart: %v", err)
	}
	if cart.TotalPrice != 16000 {
		t.Errorf("total = %d", cart.TotalPrice)
	}
	if cart, err = buyer.SetCartQuantity(ctx, id, 3); err != nil || cart.TotalCount != 3 {
		t.Fatalf("set quantity: %v %+v", err, cart)
	}
	if cart, err = buyer.RemoveFromCart(ctx, id); err != nil || len(cart.Items) != 0 {
		t.Fatalf("remove: %v %+v", err, cart)
	}
	if _, err := buyer.AddToCart(ctx, id, 1); err != nil {
		t.Fatalf("re-add: %v", err)
	}
	if cart, err = buyer.ClearCart(ctx); err != nil || len(cart.Items) != 0 {
		t.Fatalf("clear: %v %+v", err, cart)
	}

	if err := seller.DeleteProduct(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = buyer.GetProduct(ctx, id)
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("deleted product: %v", err)
	}
}

func TestCSRFToken(t *testing.T) {
	srv := newServer(t, true)
	ctx := context.Background()
	jar, _ := cookiejar.New(nil)
	c := New(srv.URL+"/api", WithHTTPClient(&http.Client{Jar: jar, Timeout: 10 * time.Second}))

	_, err := c.Register(ctx, RegisterRequest{Email: "alice@example.com", Username: "alice", Password: password})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusForbidden {
		t.Fatalf("register without csrf token: %v", err)
	}

	if _, err := c.FetchCSRFToken(ctx); err != nil {
		t.Fatalf("fetch csrf token: %v", err)
	}
	if _, err := c.Register(ctx, RegisterRequest{Email: "alice@example.com", Username: "alice", Password: password}); err != nil {
		t.Fatalf("register with csrf token: %v", err)
	}
}
