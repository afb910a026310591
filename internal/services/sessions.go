package services

import (
	"context"
	"database/sql"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/AnshRaj112/usedgoods-backend/internal/database"
	"github.com/AnshRaj112/usedgoods-backend/internal/models"
)

// SessionService stores one row per issued token. A token is only honoured
// while its row exists and has not expired.
type SessionService struct {
	db *database.DB
}

func NewSessionService(db *database.DB) *SessionService {
	return &SessionService{db: db}
}

// Create records a session for token. q may be a transaction.
func (s *SessionService) Create(ctx context.Context, q database.Querier, userID, token string, expiresAt time.Time, ip, userAgent string) (*models.Session, error) {
	if q == nil {
		q = s.db
	}
	sess := &models.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt.UTC(),
		IPAddress: ip,
		CreatedAt: time.Now().UTC(),
	}
	if userAgent != "" {
		ua := truncate(userAgent, 512)
		sess.UserAgent = &ua
	}
	_, err := q.Exec(ctx, `
		INSERT INTO sessions (id, user_id, token, expires_at, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.Token, sess.ExpiresAt, sess.IPAddress, sess.UserAgent, sess.CreatedAt)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Validate returns ErrSessionNotFound unless a non-expired row binds token to userID.
func (s *SessionService) Validate(ctx context.Context, token, userID string) error {
	var id string
	err := s.db.QueryRow(ctx, `
		SELECT id FROM sessions WHERE token = ? AND user_id = ? AND expires_at > ?`,
		token, userID, time.Now().UTC()).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSessionNotFound
	}
	return err
}

// Delete removes the single session bound to token.
func (s *SessionService) Delete(ctx context.Context, token, userID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE token = ? AND user_id = ?`, token, userID)
	return err
}

// DeleteAllForUser revokes every token of the user.
func (s *SessionService) DeleteAllForUser(ctx context.Context, q database.Querier, userID string) (int64, error) {
	if q == nil {
		q = s.db
	}
	res, err := q.Exec(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteExpired sweeps rows past their expiry.
func (s *SessionService) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountForUser is used by tests and the admin surface.
func (s *SessionService) CountForUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM sessions WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}

// truncate keeps at most n characters; column limits count characters, not bytes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
