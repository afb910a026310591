package services

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AnshRaj112/usedgoods-backend/internal/database"
	"github.com/AnshRaj112/usedgoods-backend/internal/models"
)

// LoginAttemptService keeps the per-email/per-IP failure log that drives the
// login throttle.
type LoginAttemptService struct {
	db          *database.DB
	logger      *zap.Logger
	maxAttempts int
	window      time.Duration
	retention   time.Duration
}

func NewLoginAttemptService(db *database.DB, logger *zap.Logger, maxAttempts int, window, retention time.Duration) *LoginAttemptService {
	return &LoginAttemptService{
		db:          db,
		logger:      logger,
		maxAttempts: maxAttempts,
		window:      window,
		retention:   retention,
	}
}

func (s *LoginAttemptService) MaxAttempts() int { return s.maxAttempts }

// CountRecentFailures counts failures inside the window where either the
// email or the client IP matches.
func (s *LoginAttemptService) CountRecentFailures(ctx context.Context, email, ip string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM login_attempts
		WHERE (email = ? OR ip_address = ?) AND success = ? AND attempted_at > ?`,
		normalizeEmail(email), ip, false, time.Now().UTC().Add(-s.window)).Scan(&n)
	return n, err
}

// Blocked reports whether the caller has reached the failure limit.
func (s *LoginAttemptService) Blocked(ctx context.Context, email, ip string) (bool, error) {
	n, err := s.CountRecentFailures(ctx, email, ip)
	if err != nil {
		return false, err
	}
	return n >= s.maxAttempts, nil
}

// Record appends an attempt and prunes rows past retention. Failures here
// must never affect the login response, so they are only logged.
func (s *LoginAttemptService) Record(ctx context.Context, email, ip string, success bool, failReason string) {
	var reason *string
	if failReason != "" {
		reason = &failReason
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO login_attempts (email, ip_address, success, fail_reason, attempted_at)
		VALUES (?, ?, ?, ?, ?)`,
		normalizeEmail(email), ip, success, reason, time.Now().UTC())
	if err != nil {
		s.logger.Error("failed to record login attempt", zap.Error(err), zap.String("ip", ip))
		return
	}
	if _, err := s.Prune(ctx); err != nil {
		s.logger.Error("failed to prune login attempts", zap.Error(err))
	}
}

// Prune deletes attempts older than the retention period.
func (s *LoginAttemptService) Prune(ctx context.Context) (int64, error) {
	res, err := s.db.Exec(ctx, `DELETE FROM login_attempts WHERE attempted_at < ?`,
		time.Now().UTC().Add(-s.retention))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Recent returns the latest attempts for an email, newest first.
func (s *LoginAttemptService) Recent(ctx context.Context, email string, limit int) ([]models.LoginAttempt, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, email, ip_address, success, fail_reason, attempted_at
		FROM login_attempts WHERE email = ? ORDER BY attempted_at DESC LIMIT ?`,
		normalizeEmail(email), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.LoginAttempt
	for rows.Next() {
		var a models.LoginAttempt
		if err := rows.Scan(&a.ID, &a.Email, &a.IPAddress, &a.Success, &a.FailReason, &a.AttemptedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
