package services

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrEmailTaken         = errors.New("email already in use")
	ErrUsernameTaken      = errors.New("username already in use")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWrongPassword      = errors.New("current password is incorrect")
	ErrSessionNotFound    = errors.New("session expired or invalid")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("invalid token")

	ErrProductUnavailable = errors.New("product is not available")
	ErrOwnProduct         = errors.New("cannot add your own product to the cart")
	ErrInvalidQuantity    = errors.New("quantity exceeds available stock")
)
