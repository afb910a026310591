package models

import "time"

const (
	LoginFailUserNotFound    = "user_not_found"
	LoginFailInvalidPassword = "invalid_password"
)

type LoginAttempt struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	IPAddress   string    `json:"ip_address"`
	Success     bool      `json:"success"`
	FailReason  *string   `json:"fail_reason"`
	AttemptedAt time.Time `json:"attempted_at"`
}
