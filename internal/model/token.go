package model

import "time"

// RefreshToken is a server-tracked opaque credential. The access token is
// never persisted; this row is the only server-side session state.
type RefreshToken struct {
	Token     string    `json:"-"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (t RefreshToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// TokenPair is what login and refresh return. The refresh token is set as an
// HttpOnly cookie by the handler and is not part of the JSON body.
type TokenPair struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"-"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int64    `json:"expires_in"`
	User         AuthUser `json:"user"`
}
