package model

import "time"

type User struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AuthUser is the public projection of a user, safe to embed in responses.
type AuthUser struct {
	Username string `json:"username"`
	IsActive bool   `json:"is_active"`
	IsAdmin  bool   `json:"is_admin"`
}

func (u User) Public() AuthUser {
	return AuthUser{Username: u.Username, IsActive: u.IsActive, IsAdmin: u.IsAdmin}
}

// AuthClaims is the validated claim set of an access token.
type AuthClaims struct {
	Username string `json:"sub"`
	IsAdmin  bool   `json:"is_admin"`
	Type     string `json:"typ"`
	TokenID  string `json:"jti"`
}
