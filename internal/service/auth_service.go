package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"go-agent-chat/internal/model"
	"go-agent-chat/pkg/apierror"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	bcryptCost = 12
)

type userStore interface {
	Create(ctx context.Context, username string, email string, passwordHash string) (model.User, error)
	FindByUsername(ctx context.Context, username string) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// AuthService owns credential verification and the issuing/validation of
// signed tokens. Tokens are stateless HS256 JWTs carrying the username as
// subject; refresh tokens differ from access tokens only in TTL and the
// typ claim. There is no server-side revocation: a leaked refresh token
// stays valid until its natural expiry.
type AuthService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	users      userStore
}

func NewAuthService(secret string, accessTTL time.Duration, refreshTTL time.Duration, users userStore) (*AuthService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("signing secret is required")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("token TTLs must be positive")
	}

	return &AuthService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		users:      users,
	}, nil
}

// Register creates a user and issues a token pair. Both uniqueness checks
// run before the insert; the store's unique constraints close the race
// window and report the same field-specific errors.
func (s *AuthService) Register(ctx context.Context, username string, email string, password string) (model.TokenPair, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if username == "" || email == "" || password == "" {
		return model.TokenPair{}, apierror.BadRequest("username, email and password are required", "")
	}

	taken, err := s.users.ExistsByUsername(ctx, username)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("check username: %w", err)
	}
	if taken {
		return model.TokenPair{}, model.ErrUsernameTaken
	}

	taken, err = s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return model.TokenPair{}, model.ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, username, email, string(hash))
	if err != nil {
		return model.TokenPair{}, err
	}

	return s.issuePair(user.Username)
}

// Login verifies credentials and issues a fresh token pair. The
// identifier is the username, or the account email when it contains an
// "@". Unknown user, inactive user and wrong password are
// indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, identifier string, password string) (model.TokenPair, error) {
	identifier = strings.TrimSpace(identifier)

	user, err := s.users.FindByUsername(ctx, identifier)
	if errors.Is(err, model.ErrUserNotFound) && strings.Contains(identifier, "@") {
		user, err = s.users.FindByEmail(ctx, identifier)
	}
	if errors.Is(err, model.ErrUserNotFound) {
		return model.TokenPair{}, model.ErrInvalidCredentials
	}
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("find user: %w", err)
	}

	if !user.IsActive {
		return model.TokenPair{}, model.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return model.TokenPair{}, model.ErrInvalidCredentials
	}

	return s.issuePair(user.Username)
}

// Refresh validates a refresh token, re-resolves its subject to a live
// user and issues a brand-new pair. The old refresh token is not
// invalidated (stateless design).
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	claims, err := s.VerifyToken(refreshToken, tokenTypeRefresh)
	if err != nil {
		return model.TokenPair{}, err
	}

	user, err := s.users.FindByUsername(ctx, claims.Subject)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.TokenPair{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("resolve subject: %w", err)
	}

	if !user.IsActive {
		return model.TokenPair{}, model.ErrUserNotFound
	}

	return s.issuePair(user.Username)
}

// VerifyToken checks signature, expiry, subject and token type.
// An otherwise-valid token past its expiry reports ErrTokenExpired; every
// other defect reports ErrTokenInvalid.
func (s *AuthService) VerifyToken(tokenString string, expectedType string) (model.AuthClaims, error) {
	parsed, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, model.ErrTokenInvalid
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return model.AuthClaims{}, model.ErrTokenInvalid
		}
		if errors.Is(err, jwt.ErrTokenExpired) {
			return model.AuthClaims{}, model.ErrTokenExpired
		}
		return model.AuthClaims{}, model.ErrTokenInvalid
	}

	claimsMap, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return model.AuthClaims{}, model.ErrTokenInvalid
	}

	subject, _ := claimsMap["sub"].(string)
	if subject == "" {
		return model.AuthClaims{}, model.ErrTokenInvalid
	}

	typ, _ := claimsMap["typ"].(string)
	if expectedType != "" && typ != expectedType {
		return model.AuthClaims{}, model.ErrTokenInvalid
	}

	return model.AuthClaims{Subject: subject, Type: typ}, nil
}

// ResolveAccessToken verifies an access token and re-resolves its subject
// to an existing active user. Used by the auth middleware on every
// protected request.
func (s *AuthService) ResolveAccessToken(ctx context.Context, tokenString string) (model.User, error) {
	claims, err := s.VerifyToken(tokenString, tokenTypeAccess)
	if err != nil {
		return model.User{}, err
	}

	user, err := s.users.FindByUsername(ctx, claims.Subject)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, model.ErrUnauthorized
	}
	if err != nil {
		return model.User{}, fmt.Errorf("resolve subject: %w", err)
	}

	if !user.IsActive {
		return model.User{}, model.ErrUnauthorized
	}

	return user, nil
}

func (s *AuthService) issuePair(subject string) (model.TokenPair, error) {
	access, err := s.signToken(subject, tokenTypeAccess, s.accessTTL)
	if err != nil {
		return model.TokenPair{}, err
	}

	refresh, err := s.signToken(subject, tokenTypeRefresh, s.refreshTTL)
	if err != nil {
		return model.TokenPair{}, err
	}

	return model.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
	}, nil
}

func (s *AuthService) signToken(subject string, typ string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"typ": typ,
		"jti": uuid.NewString(),
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
