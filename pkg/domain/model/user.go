package model

import (
	"strings"
	"time"
)

// User is an application account as kept by a user store
type User struct {
	ID           string    `json:"id" firestore:"id"`
	Username     string    `json:"username" firestore:"username"`
	Email        string    `json:"email" firestore:"email"`
	FirstName    string    `json:"first_name" firestore:"first_name"`
	LastName     string    `json:"last_name" firestore:"last_name"`
	Roles        []string  `json:"roles" firestore:"roles"`
	PasswordHash string    `json:"-" firestore:"password_hash" masq:"secret"`
	Active       bool      `json:"active" firestore:"active"`
	CreatedAt    time.Time `json:"created_at" firestore:"created_at"`
	LastLogin    time.Time `json:"last_login,omitzero" firestore:"last_login"`
	LoginCount   int       `json:"login_count" firestore:"login_count"`
}

// NormalizeEmail is the form emails are stored and looked up in by every user store
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Role is a named permission set. Only its existence matters here.
type Role struct {
	Name string `json:"name" firestore:"name"`
}

// UserInfo is the identity derived from load balancer headers
type UserInfo struct {
	Username  string
	Email     string // empty unless the identity carried an email-like value
	FirstName string
	LastName  string
}

// LoginRequest is the optional body of the token endpoints
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password" masq:"secret"`
}

// LoginResponse is returned by the token endpoints
type LoginResponse struct {
	AccessToken string `json:"access_token"`
}
