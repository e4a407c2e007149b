package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"postboard/internal/model"
)

// UserStore is the credential store contract the auth service consumes.
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (model.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, u model.User) error
	UpdatePassword(ctx context.Context, username string, passwordHash string) error
	SetAdmin(ctx context.Context, username string, isAdmin bool) error
	SetActive(ctx context.Context, username string, isActive bool) error
	List(ctx context.Context) ([]model.AuthUser, error)
	Count(ctx context.Context) (int, error)
}

// TokenStore tracks outstanding refresh tokens. Rotate must be atomic per
// token: of two concurrent rotations of the same token exactly one may
// succeed, and a failed rotation must leave the presented token in place.
type TokenStore interface {
	Store(ctx context.Context, token string, username string, expiresAt time.Time) error
	Get(ctx context.Context, token string) (model.RefreshToken, error)
	Rotate(ctx context.Context, old string, next string, username string, expiresAt time.Time) error
	Revoke(ctx context.Context, token string) error
	RevokeAllForUser(ctx context.Context, username string) error
	CleanExpired(ctx context.Context) (int64, error)
}

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,50}$`)

type AuthService struct {
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	users      UserStore
	tokens     TokenStore
}

func NewAuthService(jwtSecret string, accessTTL time.Duration, refreshTTL time.Duration, users UserStore, tokens TokenStore) (*AuthService, error) {
	if strings.TrimSpace(jwtSecret) == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, fmt.Errorf("token TTLs must be positive")
	}

	return &AuthService{
		jwtSecret:  []byte(jwtSecret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		users:      users,
		tokens:     tokens,
	}, nil
}

func (s *AuthService) RefreshTTL() time.Duration {
	return s.refreshTTL
}

func (s *AuthService) Register(ctx context.Context, username string, password string) (model.AuthUser, error) {
	username = strings.TrimSpace(username)

	if !usernamePattern.MatchString(username) {
		return model.AuthUser{}, fmt.Errorf("%w: username must be 3-50 characters (letters, digits, . _ -)", model.ErrInvalidInput)
	}
	if len(password) < 6 || len(password) > 100 {
		return model.AuthUser{}, fmt.Errorf("%w: password must be 6-100 characters", model.ErrInvalidInput)
	}

	exists, err := s.users.ExistsByUsername(ctx, username)
	if err != nil {
		return model.AuthUser{}, err
	}
	if exists {
		return model.AuthUser{}, model.ErrUserAlreadyExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return model.AuthUser{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := model.User{
		Username:     username,
		PasswordHash: string(hash),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return model.AuthUser{}, err
	}

	return user.Public(), nil
}

func (s *AuthService) Login(ctx context.Context, username string, password string) (model.TokenPair, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, model.ErrUserNotFound) {
		// Burn a hash comparison so absent and wrong-password logins take
		// comparable time.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$12$invalidinvalidinvalidinvalidinvalidinvalidinvalidinva"), []byte(password))
		return model.TokenPair{}, model.ErrAuthenticationFailed
	}
	if err != nil {
		return model.TokenPair{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return model.TokenPair{}, model.ErrAuthenticationFailed
	}

	if !user.IsActive {
		return model.TokenPair{}, model.ErrUserInactive
	}

	return s.issue(ctx, user)
}

// issue mints an access token and persists a fresh refresh token.
func (s *AuthService) issue(ctx context.Context, user model.User) (model.TokenPair, error) {
	accessToken, err := s.signAccessToken(user)
	if err != nil {
		return model.TokenPair{}, err
	}

	refreshToken, err := newOpaqueToken()
	if err != nil {
		return model.TokenPair{}, err
	}

	expiresAt := time.Now().UTC().Add(s.refreshTTL)
	if err := s.tokens.Store(ctx, refreshToken, user.Username, expiresAt); err != nil {
		return model.TokenPair{}, err
	}

	return model.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL.Seconds()),
		User:         user.Public(),
	}, nil
}

// Refresh rotates the presented refresh token: the presented token is
// consumed and a new pair is minted. A consumed or unknown token fails with
// ErrTokenInvalid; an expired one with ErrTokenExpired. Rotation is atomic:
// the store's Rotate guarantees at most one winner per presented token.
func (s *AuthService) Refresh(ctx context.Context, presented string) (model.TokenPair, error) {
	if strings.TrimSpace(presented) == "" {
		return model.TokenPair{}, model.ErrTokenInvalid
	}

	record, err := s.tokens.Get(ctx, presented)
	if errors.Is(err, model.ErrTokenNotFound) {
		return model.TokenPair{}, model.ErrTokenInvalid
	}
	if err != nil {
		return model.TokenPair{}, err
	}

	now := time.Now().UTC()
	if record.Expired(now) {
		// Dead either way; discard the row so the sweep has less to do.
		_ = s.tokens.Revoke(ctx, presented)
		return model.TokenPair{}, model.ErrTokenExpired
	}

	user, err := s.users.FindByUsername(ctx, record.Username)
	if errors.Is(err, model.ErrUserNotFound) {
		_ = s.tokens.Revoke(ctx, presented)
		return model.TokenPair{}, model.ErrTokenInvalid
	}
	if err != nil {
		return model.TokenPair{}, err
	}

	if !user.IsActive {
		return model.TokenPair{}, model.ErrUserInactive
	}

	next, err := newOpaqueToken()
	if err != nil {
		return model.TokenPair{}, err
	}

	err = s.tokens.Rotate(ctx, presented, next, user.Username, now.Add(s.refreshTTL))
	if errors.Is(err, model.ErrTokenNotFound) {
		// A concurrent refresh consumed the token between Get and Rotate.
		return model.TokenPair{}, model.ErrTokenInvalid
	}
	if err != nil {
		return model.TokenPair{}, err
	}

	accessToken, err := s.signAccessToken(user)
	if err != nil {
		return model.TokenPair{}, err
	}

	return model.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: next,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL.Seconds()),
		User:         user.Public(),
	}, nil
}

// Logout revokes the refresh token. Idempotent: revoking an already-absent
// token is not an error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}
	return s.tokens.Revoke(ctx, refreshToken)
}

// LogoutAll revokes every refresh token the user holds.
func (s *AuthService) LogoutAll(ctx context.Context, username string) error {
	return s.tokens.RevokeAllForUser(ctx, username)
}

// ValidateAccessToken checks signature, expiry, and token type. Expiry and
// malformedness fail with distinct sentinels so the middleware can emit the
// machine-readable code the frontend branches on.
func (s *AuthService) ValidateAccessToken(tokenString string) (*model.AuthClaims, error) {
	parsed, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", token.Method.Alg())
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, model.ErrTokenExpired
		}
		return nil, model.ErrTokenInvalid
	}
	if !parsed.Valid {
		return nil, model.ErrTokenInvalid
	}

	claimsMap, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, model.ErrTokenInvalid
	}

	typ, _ := claimsMap["typ"].(string)
	if typ != "access" {
		return nil, model.ErrTokenInvalid
	}

	claims := &model.AuthClaims{Type: typ}
	claims.Username, _ = claimsMap["sub"].(string)
	claims.IsAdmin, _ = claimsMap["is_admin"].(bool)
	claims.TokenID, _ = claimsMap["jti"].(string)

	if claims.Username == "" {
		return nil, model.ErrTokenInvalid
	}

	return claims, nil
}

func (s *AuthService) GetUser(ctx context.Context, username string) (model.AuthUser, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return model.AuthUser{}, err
	}
	return user.Public(), nil
}

// ChangePassword verifies the current password, sets the new one, and
// revokes every session so stolen refresh tokens die with the old password.
func (s *AuthService) ChangePassword(ctx context.Context, username string, current string, next string) error {
	if len(next) < 6 || len(next) > 100 {
		return fmt.Errorf("%w: password must be 6-100 characters", model.ErrInvalidInput)
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return model.ErrAuthenticationFailed
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), 12)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, username, string(hash)); err != nil {
		return err
	}

	return s.tokens.RevokeAllForUser(ctx, username)
}

func (s *AuthService) ListUsers(ctx context.Context) ([]model.AuthUser, error) {
	return s.users.List(ctx)
}

func (s *AuthService) SetAdmin(ctx context.Context, username string, isAdmin bool) error {
	return s.users.SetAdmin(ctx, username, isAdmin)
}

// SetActive toggles a user. Deactivation revokes all refresh tokens so the
// session dies as soon as the current access token expires.
func (s *AuthService) SetActive(ctx context.Context, username string, isActive bool) error {
	if err := s.users.SetActive(ctx, username, isActive); err != nil {
		return err
	}
	if !isActive {
		return s.tokens.RevokeAllForUser(ctx, username)
	}
	return nil
}

// EnsureAdmin seeds the initial admin account when the users table is empty.
func (s *AuthService) EnsureAdmin(ctx context.Context, username string, password string) error {
	count, err := s.users.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("ADMIN_PASSWORD is required to seed the first admin user")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	now := time.Now().UTC()
	if err := s.users.Create(ctx, model.User{
		Username:     username,
		PasswordHash: string(hash),
		IsActive:     true,
		IsAdmin:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}); err != nil {
		return err
	}

	slog.Info("seeded initial admin user", "username", username)
	return nil
}

// StartTokenSweeper deletes expired refresh tokens on a ticker until the
// context is cancelled.
func (s *AuthService) StartTokenSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.tokens.CleanExpired(ctx)
			if err != nil {
				slog.Error("refresh token sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				slog.Info("swept expired refresh tokens", "removed", removed)
			}
		}
	}
}

func (s *AuthService) signAccessToken(user model.User) (string, error) {
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      user.Username,
		"is_admin": user.IsAdmin,
		"typ":      "access",
		"jti":      uuid.NewString(),
		"iat":      now.Unix(),
		"exp":      now.Add(s.accessTTL).Unix(),
	})
	return token.SignedString(s.jwtSecret)
}

// newOpaqueToken returns 32 bytes of randomness, base64url-encoded. Refresh
// tokens carry no claims; the store row is the only authority.
func newOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
