package services

import (
	"context"
	"testing"

	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/AnshRaj112/usedgoods-backend/internal/database"
	"github.com/AnshRaj112/usedgoods-backend/internal/models"
)

type testEnv struct {
	db       *database.DB
	sessions *SessionService
	users    *UserService
	products *ProductService
	cart     *CartService
}

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	// Use a unique in-memory database per test to avoid cross-test collisions.
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

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	logger := zaptest.NewLogger(t)
	sessions := NewSessionService(db)
	return &testEnv{
		db:       db,
		sessions: sessions,
		users:    NewUserService(db, sessions, logger, bcrypt.MinCost, false),
		products: NewProductService(db, nil, logger),
		cart:     NewCartService(db),
	}
}

func (e *testEnv) register(t *testing.T, email, username string) *models.User {
	t.Helper()
	u, err := e.users.Register(context.Background(), RegisterInput{Email: email, Username: username, Password: "Str0ng!Pass"})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return u
}

func (e *testEnv) createProduct(t *testing.T, sellerID, title string, price int64) string {
	t.Helper()
	id, err := e.products.Create(context.Background(), sellerID, ProductInput{
		Title:       title,
		Description: "a perfectly fine used item",
		Price:       price,
		Category:    "electronics",
		Stock:       3,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return id
}
