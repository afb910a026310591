package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/AnshRaj112/usedgoods-backend/internal/config"
	"github.com/AnshRaj112/usedgoods-backend/internal/database"
	"github.com/AnshRaj112/usedgoods-backend/internal/httpx"
	"github.com/AnshRaj112/usedgoods-backend/internal/middleware"
	"github.com/AnshRaj112/usedgoods-backend/internal/services"
)

const testPassword = "Str0ng!Pass"

type testServer struct {
	t       *testing.T
	cfg     *config.Config
	db      *database.DB
	users   *services.UserService
	uploads string
	router  http.Handler
}

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(database.SQLite, "file:"+t.Name()+"?mode=memory&cache=shared", 1)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.InitTables(context.Background()); err != nil {
		t.Fatalf("init tables: %v", err)
	}
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Environment:        "test",
		JWTSecret:          "handlers-test-secret",
		JWTExpiresIn:       time.Hour,
		BcryptCost:         bcrypt.MinCost,
		MaxLoginAttempts:   5,
		LoginAttemptWindow: 15 * time.Minute,
		MaxFileSize:        5 << 20,
		AllowedFileTypes:   []string{"image/jpeg", "image/png", "image/gif", "image/webp"},
	}
}

// newTestServer mounts the handlers on a bare router with only the auth
// middleware, so handler behavior is tested without limits in the way.
func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}
	db := setupTestDB(t)
	logger := zaptest.NewLogger(t)
	uploadDir := t.TempDir()

	sessions := services.NewSessionService(db)
	tokens := services.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpiresIn)
	users := services.NewUserService(db, sessions, logger, cfg.BcryptCost, cfg.RequireEmailVerification)
	h := New(Deps{
		Config:   cfg,
		Logger:   logger,
		DB:       db,
		Tokens:   tokens,
		Users:    users,
		Sessions: sessions,
		Attempts: services.NewLoginAttemptService(db, logger, cfg.MaxLoginAttempts, cfg.LoginAttemptWindow, 30*24*time.Hour),
		Products: services.NewProductService(db, nil, logger),
		Cart:     services.NewCartService(db),
		History:  services.NewSQLSearchHistory(db),
		Images:   services.NewLocalImageStore(uploadDir, "/uploads"),
		Uploads:  services.UploadPolicy{AllowedTypes: cfg.AllowedFileTypes, MaxFileSize: cfg.MaxFileSize},
	})
	auth := middleware.NewAuthenticator(tokens, sessions, users, logger)

	r := chi.NewRouter()
	r.Use(middleware.ClientIP(false))
	r.NotFound(NotFound)
	r.Get("/health", h.Health)
	r.Post("/auth/register", h.Handle(h.Register))
	r.Post("/auth/login", h.Handle(h.Login))
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)
		r.Post("/auth/logout", h.Handle(h.Logout))
		r.Get("/auth/me", h.Handle(h.Me))
		r.Put("/auth/me", h.Handle(h.UpdateMe))
		r.Put("/auth/password", h.Handle(h.ChangePassword))
		r.Post("/products", h.Handle(h.CreateProduct))
		r.Put("/products/{id}", h.Handle(h.UpdateProduct))
		r.Delete("/products/{id}", h.Handle(h.DeleteProduct))
		r.Post("/products/{id}/images", h.Handle(h.UploadProductImages))
		r.Get("/cart", h.Handle(h.GetCart))
		r.Delete("/cart", h.Handle(h.ClearCart))
		r.Post("/cart/items", h.Handle(h.AddCartItem))
		r.Put("/cart/items/{productId}", h.Handle(h.UpdateCartItem))
		r.Delete("/cart/items/{productId}", h.Handle(h.RemoveCartItem))
		r.With(middleware.RequireSelf("userId")).Get("/users/{userId}/recently-viewed", h.Handle(h.RecentlyViewed))
		r.With(middleware.RequireSelf("userId")).Get("/users/{userId}/search-history", h.Handle(h.SearchHistory))
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			r.Post("/sweep-sessions", h.Handle(h.SweepSessions))
			r.Post("/prune-login-attempts", h.Handle(h.PruneLoginAttempts))
			r.Get("/login-attempts", h.Handle(h.LoginAttempts))
			r.Delete("/users/{userId}", h.Handle(h.DeleteUser))
		})
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.OptionalAuth)
		r.Get("/products", h.Handle(h.ListProducts))
		r.Get("/products/search", h.Handle(h.SearchProducts))
		r.Get("/products/{id}", h.Handle(h.GetProduct))
	})

	return &testServer{t: t, cfg: cfg, db: db, users: users, uploads: uploadDir, router: r}
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			s.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// register creates an account through the API and returns its id.
func (s *testServer) register(email, username string) string {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/auth/register", "", map[string]string{
		"email": email, "username": username, "password": testPassword,
	})
	if rec.Code != http.StatusCreated {
		s.t.Fatalf("register %s: status %d body %s", email, rec.Code, rec.Body.String())
	}
	var data registerResponse
	decodeData(s.t, rec, &data)
	return data.ID
}

func (s *testServer) login(email, password string) *httptest.ResponseRecorder {
	s.t.Helper()
	return s.do(http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": password})
}

// signup registers and logs in, returning the user id and token.
func (s *testServer) signup(email, username string) (string, string) {
	s.t.Helper()
	id := s.register(email, username)
	rec := s.login(email, testPassword)
	if rec.Code != http.StatusOK {
		s.t.Fatalf("login %s: status %d body %s", email, rec.Code, rec.Body.String())
	}
	var data loginResponse
	decodeData(s.t, rec, &data)
	return id, data.Token
}

func (s *testServer) createProduct(token, title string) string {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/products", token, map[string]any{
		"title":       title,
		"description": "a perfectly fine used item",
		"price":       15000,
		"category":    "electronics",
		"stock":       2,
	})
	if rec.Code != http.StatusCreated {
		s.t.Fatalf("create product: status %d body %s", rec.Code, rec.Body.String())
	}
	var data map[string]string
	decodeData(s.t, rec, &data)
	return data["id"]
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) httpx.Envelope {
	t.Helper()
	var env httpx.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope %q: %v", rec.Body.String(), err)
	}
	return env
}

// decodeData unmarshals the envelope's data field into dst.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope %q: %v", rec.Body.String(), err)
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("decode data %q: %v", env.Data, err)
	}
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}
