package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AnshRaj112/usedgoods-backend/internal/database"
	"github.com/AnshRaj112/usedgoods-backend/internal/models"
	"github.com/AnshRaj112/usedgoods-backend/pkg/utils"
)

const userColumns = `id, email, username, password_hash, phone, address, bio, profile_image,
	is_admin, is_verified, is_deleted, rating, total_sales, last_login_at, created_at, updated_at`

type RegisterInput struct {
	Email    string
	Username string
	Password string
	Phone    *string
	Address  *string
}

type ProfileInput struct {
	Username *string
	Phone    *string
	Address  *string
	Bio      *string
}

type UserService struct {
	db                  *database.DB
	sessions            *SessionService
	logger              *zap.Logger
	bcryptCost          int
	requireVerification bool

	decoyOnce sync.Once
	decoyHash string
}

func NewUserService(db *database.DB, sessions *SessionService, logger *zap.Logger, bcryptCost int, requireVerification bool) *UserService {
	return &UserService{
		db:                  db,
		sessions:            sessions,
		logger:              logger,
		bcryptCost:          bcryptCost,
		requireVerification: requireVerification,
	}
}

// Register creates a user. Email and username uniqueness is checked inside the
// insert transaction; a race that slips past the check surfaces as a unique
// violation from the database.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	hash, err := utils.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.NewString(),
		Email:        normalizeEmail(in.Email),
		Username:     in.Username,
		PasswordHash: hash,
		Phone:        in.Phone,
		Address:      in.Address,
		IsVerified:   !s.requireVerification,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.db.Transaction(ctx, func(tx *database.Tx) error {
		var n int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE email = ?`, user.Email).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return ErrEmailTaken
		}
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE username = ?`, user.Username).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return ErrUsernameTaken
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO users (id, email, username, password_hash, phone, address, is_admin, is_verified, is_deleted, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			user.ID, user.Email, user.Username, user.PasswordHash, user.Phone, user.Address,
			false, user.IsVerified, false, user.CreatedAt, user.UpdatedAt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetByID returns the user even when soft-deleted; callers decide what a
// deleted account means for them.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.scanOne(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

// GetActiveByEmail returns a non-deleted user by email.
func (s *UserService) GetActiveByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.scanOne(s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? AND is_deleted = ?`, normalizeEmail(email), false))
}

// Authenticate checks credentials. The returned reason is one of the
// models.LoginFail* values when authentication fails.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := s.GetActiveByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		utils.BurnPasswordCheck(s.decoy(), password)
		return nil, models.LoginFailUserNotFound, ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", err
	}
	ok, err := utils.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		s.logger.Warn("stored password hash is unreadable", zap.String("user_id", user.ID), zap.Error(err))
	}
	if !ok {
		return nil, models.LoginFailInvalidPassword, ErrInvalidCredentials
	}
	return user, "", nil
}

// decoy is built lazily at the configured cost so unknown-email logins match
// the work of a real comparison.
func (s *UserService) decoy() string {
	s.decoyOnce.Do(func() {
		hash, err := utils.DecoyHash(s.bcryptCost)
		if err != nil {
			s.logger.Error("failed to build decoy password hash", zap.Error(err))
			return
		}
		s.decoyHash = hash
	})
	return s.decoyHash
}

// TouchLastLogin stamps last_login_at. q may be a transaction.
func (s *UserService) TouchLastLogin(ctx context.Context, q database.Querier, id string) error {
	if q == nil {
		q = s.db
	}
	_, err := q.Exec(ctx, `UPDATE users SET last_login_at = ? WHERE id = ?`, time.Now().UTC(), id)
	return err
}

// ChangePassword verifies the current password, stores the new hash and
// revokes every session of the user in one transaction.
func (s *UserService) ChangePassword(ctx context.Context, userID, current, next string) error {
	var hash string
	err := s.db.QueryRow(ctx, `SELECT password_hash FROM users WHERE id = ? AND is_deleted = ?`, userID, false).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	ok, _ := utils.VerifyPassword(current, hash)
	if !ok {
		return ErrWrongPassword
	}
	newHash, err := utils.HashPassword(next, s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return s.db.Transaction(ctx, func(tx *database.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
			newHash, time.Now().UTC(), userID); err != nil {
			return err
		}
		_, err := s.sessions.DeleteAllForUser(ctx, tx, userID)
		return err
	})
}

// UpdateProfile applies the non-nil fields of in.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*models.User, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.Username != nil && *in.Username != user.Username {
		var n int
		if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE username = ? AND id <> ?`,
			*in.Username, userID).Scan(&n); err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, ErrUsernameTaken
		}
		user.Username = *in.Username
	}
	if in.Phone != nil {
		user.Phone = in.Phone
	}
	if in.Address != nil {
		user.Address = in.Address
	}
	if in.Bio != nil {
		user.Bio = in.Bio
	}
	user.UpdatedAt = time.Now().UTC()

	_, err = s.db.Exec(ctx, `
		UPDATE users SET username = ?, phone = ?, address = ?, bio = ?, updated_at = ? WHERE id = ?`,
		user.Username, user.Phone, user.Address, user.Bio, user.UpdatedAt, userID)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// SoftDelete marks the account deleted and revokes its sessions.
func (s *UserService) SoftDelete(ctx context.Context, userID string) error {
	return s.db.Transaction(ctx, func(tx *database.Tx) error {
		res, err := tx.Exec(ctx, `UPDATE users SET is_deleted = ?, updated_at = ? WHERE id = ? AND is_deleted = ?`,
			true, time.Now().UTC(), userID, false)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		_, err = s.sessions.DeleteAllForUser(ctx, tx, userID)
		return err
	})
}

// SetAdmin grants or revokes the admin flag.
func (s *UserService) SetAdmin(ctx context.Context, userID string, admin bool) error {
	res, err := s.db.Exec(ctx, `UPDATE users SET is_admin = ?, updated_at = ? WHERE id = ?`,
		admin, time.Now().UTC(), userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *UserService) scanOne(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.Phone, &u.Address, &u.Bio,
		&u.ProfileImage, &u.IsAdmin, &u.IsVerified, &u.IsDeleted, &u.Rating, &u.TotalSales,
		&u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
