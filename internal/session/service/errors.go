package service

import "errors"

// Sentinel errors for the session manager; handlers map them to transport codes.
var (
	ErrAccountExists            = errors.New("account already exists")
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrInvalidToken             = errors.New("invalid token")
	ErrSessionNotFoundOrRevoked = errors.New("session not found or revoked")
	ErrAccountNotFound          = errors.New("account not found")
	ErrNotFound                 = errors.New("session not found")
	ErrInvalidInput             = errors.New("invalid input")
)
