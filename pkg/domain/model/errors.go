package model

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrUserExists is returned by user stores on a uniqueness conflict
	ErrUserExists = goerr.New("user already exists")

	// ErrInvalidCredentials is returned for a failed password login
	ErrInvalidCredentials = goerr.New("invalid username or password")

	// ErrPackageNotFound is returned when a slug has no container.yaml
	ErrPackageNotFound = goerr.New("container metadata not found")
)
