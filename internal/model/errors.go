package model

import "errors"

var (
	// User related errors
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidPassword    = errors.New("invalid old password")

	// Token related errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrTokenMissing = errors.New("token missing")

	// Channel related errors
	ErrChannelNotFound = errors.New("channel does not exist")
)
