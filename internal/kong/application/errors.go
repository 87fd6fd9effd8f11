package application

import "github.com/pkg/errors"

var (
	ErrInvalidInput     = errors.New("invalid user input")
	ErrInternalServer   = errors.New("internal server error")
	ErrInvalidPassword  = errors.New("invalid password, length cannot be less than 10 characters")
	ErrInvalidUsername  = errors.New("invalid username, length cannot be greater than 15 characters")
	ErrInvalidEmail     = errors.New("invalid email")
	ErrAccountNotFound  = errors.New("account does not exist")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrUnexpectedStatus = errors.New("unexpected response status")
)
