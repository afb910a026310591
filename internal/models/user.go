package models

import "time"

type User struct {
	ID           string  `json:"id"`
	Email        string  `json:"email"`
	Username     string  `json:"username"`
	PasswordHash string  `json:"-"` // never serialized
	Phone        *string `json:"phone"`
	Address      *string `json:"address"`
	Bio          *string `json:"bio"`
	ProfileImage *string `json:"profile_image"`

	IsAdmin    bool    `json:"is_admin"`
	IsVerified bool    `json:"is_verified"`
	IsDeleted  bool    `json:"-"`
	Rating     float64 `json:"rating"`
	TotalSales int     `json:"total_sales"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// PublicUser is what login returns alongside the token.
type PublicUser struct {
	ID           string  `json:"id"`
	Email        string  `json:"email"`
	Username     string  `json:"username"`
	ProfileImage *string `json:"profile_image"`
	IsAdmin      bool    `json:"is_admin"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:           u.ID,
		Email:        u.Email,
		Username:     u.Username,
		ProfileImage: u.ProfileImage,
		IsAdmin:      u.IsAdmin,
	}
}
