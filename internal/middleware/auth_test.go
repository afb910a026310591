package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/AnshRaj112/usedgoods-backend/internal/services"
)

func serveAuth(h http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRequireAuthStates(t *testing.T) {
	env := newAuthEnv(t, false)
	user, token := env.login(t, "alice@example.com", "alice")

	var seen string
	h := env.auth.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserFromContext(r.Context()).ID
		if TokenFromContext(r.Context()) != token {
			t.Errorf("token not stored in context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	if rec := serveAuth(h, token); rec.Code != http.StatusOK || seen != user.ID {
		t.Fatalf("expected authorized request got %d", rec.Code)
	}

	rec := serveAuth(h, "")
	if rec.Code != http.StatusUnauthorized || decodeEnvelope(t, rec).Message != "authentication token required" {
		t.Fatalf("missing token: %d %s", rec.Code, rec.Body.String())
	}

	rec = serveAuth(h, "not-a-jwt")
	if rec.Code != http.StatusUnauthorized || decodeEnvelope(t, rec).Message != "invalid token" {
		t.Fatalf("garbage token: %d %s", rec.Code, rec.Body.String())
	}

	forged, _, _ := services.NewTokenIssuer("other-secret", time.Hour).Issue(user)
	if rec := serveAuth(h, forged); rec.Code != http.StatusUnauthorized {
		t.Fatalf("token signed with another key accepted: %d", rec.Code)
	}

	expired, _, _ := services.NewTokenIssuer(testSecret, -time.Hour).Issue(user)
	rec = serveAuth(h, expired)
	if rec.Code != http.StatusUnauthorized || decodeEnvelope(t, rec).Message != "token expired" {
		t.Fatalf("expired token: %d %s", rec.Code, rec.Body.String())
	}

	// A valid signature without a session row is rejected.
	orphan, _, _ := env.tokens.Issue(user)
	rec = serveAuth(h, orphan)
	if rec.Code != http.StatusUnauthorized || decodeEnvelope(t, rec).Message != "session expired or invalid" {
		t.Fatalf("token without session: %d %s", rec.Code, rec.Body.String())
	}

	if err := env.sessions.Delete(context.Background(), token, user.ID); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if rec := serveAuth(h, token); rec.Code != http.StatusUnauthorized {
		t.Fatalf("logged out token still accepted: %d", rec.Code)
	}
}

func TestRequireAuthDeletedAndUnverifiedUsers(t *testing.T) {
	env := newAuthEnv(t, true)
	h := env.auth.RequireAuth(http.HandlerFunc(okHandler))

	user, token := env.login(t, "bob@example.com", "bob")
	rec := serveAuth(h, token)
	if rec.Code != http.StatusForbidden || decodeEnvelope(t, rec).Message != "email verification required" {
		t.Fatalf("unverified user: %d %s", rec.Code, rec.Body.String())
	}

	ctx := context.Background()
	if _, err := env.db.Exec(ctx, `UPDATE users SET is_verified = ? WHERE id = ?`, true, user.ID); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if rec := serveAuth(h, token); rec.Code != http.StatusOK {
		t.Fatalf("verified user rejected: %d", rec.Code)
	}

	// Soft delete revokes sessions, so mark the row directly to reach the user check.
	if _, err := env.db.Exec(ctx, `UPDATE users SET is_deleted = ? WHERE id = ?`, true, user.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	rec = serveAuth(h, token)
	if rec.Code != http.StatusUnauthorized || decodeEnvelope(t, rec).Message != "user not found" {
		t.Fatalf("deleted user: %d %s", rec.Code, rec.Body.String())
	}
}

func TestOptionalAuth(t *testing.T) {
	env := newAuthEnv(t, false)
	user, token := env.login(t, "carol@example.com", "carol")

	var got string
	h := env.auth.OptionalAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ""
		if u := UserFromContext(r.Context()); u != nil {
			got = u.ID
		}
	}))

	serveAuth(h, token)
	if got != user.ID {
		t.Fatalf("expected user attached")
	}
	if rec := serveAuth(h, "broken"); rec.Code != http.StatusOK || got != "" {
		t.Fatalf("bad token should continue anonymously, got %d %q", rec.Code, got)
	}
	serveAuth(h, "")
	if got != "" {
		t.Fatalf("anonymous request got a user")
	}
}

func TestRequireAdminAndSelf(t *testing.T) {
	env := newAuthEnv(t, false)
	alice, aliceToken := env.login(t, "alice@example.com", "alice")
	admin, adminToken := env.login(t, "admin@example.com", "admin")
	if err := env.users.SetAdmin(context.Background(), admin.ID, true); err != nil {
		t.Fatalf("set admin: %v", err)
	}

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(env.auth.RequireAuth)
		r.With(RequireAdmin).Get("/admin", okHandler)
		r.With(RequireSelf("userId")).Get("/users/{userId}", okHandler)
	})

	do := func(path, token string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := do("/admin", aliceToken); code != http.StatusForbidden {
		t.Fatalf("non-admin reached admin route: %d", code)
	}
	if code := do("/admin", adminToken); code != http.StatusOK {
		t.Fatalf("admin rejected: %d", code)
	}
	if code := do("/users/"+alice.ID, aliceToken); code != http.StatusOK {
		t.Fatalf("self access rejected: %d", code)
	}
	if code := do("/users/"+admin.ID, aliceToken); code != http.StatusForbidden {
		t.Fatalf("cross-user access allowed: %d", code)
	}
	if code := do("/users/"+alice.ID, adminToken); code != http.StatusOK {
		t.Fatalf("admin override rejected: %d", code)
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"":              "",
		"Bearer abc":    "abc",
		"bearer  abc ":  "abc",
		"Basic abc":     "",
		"Bearer":        "",
		"Token abc.def": "",
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)
		if got := bearerToken(req); got != want {
			t.Errorf("%q: expected %q got %q", header, want, got)
		}
	}
}
