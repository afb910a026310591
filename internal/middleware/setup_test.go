package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/AnshRaj112/usedgoods-backend/internal/database"
	"github.com/AnshRaj112/usedgoods-backend/internal/httpx"
	"github.com/AnshRaj112/usedgoods-backend/internal/models"
	"github.com/AnshRaj112/usedgoods-backend/internal/services"
)

const testSecret = "middleware-test-secret"

type authEnv struct {
	db       *database.DB
	tokens   *services.TokenIssuer
	sessions *services.SessionService
	users    *services.UserService
	auth     *Authenticator
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

func newAuthEnv(t *testing.T, requireVerification bool) *authEnv {
	t.Helper()
	db := setupTestDB(t)
	logger := zaptest.NewLogger(t)
	sessions := services.NewSessionService(db)
	tokens := services.NewTokenIssuer(testSecret, time.Hour)
	users := services.NewUserService(db, sessions, logger, bcrypt.MinCost, requireVerification)
	return &authEnv{
		db:       db,
		tokens:   tokens,
		sessions: sessions,
		users:    users,
		auth:     NewAuthenticator(tokens, sessions, users, logger),
	}
}

// login registers a user and returns it with a token backed by a session row.
func (e *authEnv) login(t *testing.T, email, username string) (*models.User, string) {
	t.Helper()
	ctx := context.Background()
	user, err := e.users.Register(ctx, services.RegisterInput{Email: email, Username: username, Password: "Str0ng!Pass"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	token, exp, err := e.tokens.Issue(user)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := e.sessions.Create(ctx, nil, user.ID, token, exp, "127.0.0.1", "test"); err != nil {
		t.Fatalf("create session: %v", err)
	}
	return user, token
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) httpx.Envelope {
	t.Helper()
	var env httpx.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope %q: %v", rec.Body.String(), err)
	}
	return env
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
