package services

import "errors"

var (
	ErrTaskNotFound        = errors.New("task not found or access denied")
	ErrInvalidTask         = errors.New("invalid task")
	ErrUserNotFound        = errors.New("user not found")
	ErrDuplicateEmail      = errors.New("email already exists")
	ErrPasswordMismatch    = errors.New("passwords do not match")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	ErrUnsupportedHasher   = errors.New("unsupported password hasher")
)
