package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hamed0406/netmanager/internal/domain"
)

const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"

	DefaultAccessTTL  = 5 * time.Minute
	DefaultRefreshTTL = 24 * time.Hour
)

var ErrInvalidToken = errors.New("token is invalid or expired")

type TokenPair struct {
	Refresh string `json:"refresh"`
	Access  string `json:"access"`
}

type Claims struct {
	TokenType string `json:"token_type"`
	UserID    string `json:"user_id"`
	jwt.RegisteredClaims
}

type TokenConfig struct {
	Secret     []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Now        func() time.Time
}

// Tokens issues and verifies HS256 access/refresh tokens.
type Tokens struct {
	cfg TokenConfig
}

func NewTokens(cfg TokenConfig) (*Tokens, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token secret is empty")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Tokens{cfg: cfg}, nil
}

func (t *Tokens) Pair(userID domain.UserID) (TokenPair, error) {
	refresh, err := t.sign(userID, TokenRefresh, t.cfg.RefreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	access, err := t.sign(userID, TokenAccess, t.cfg.AccessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Refresh: refresh, Access: access}, nil
}

func (t *Tokens) Access(userID domain.UserID) (string, error) {
	return t.sign(userID, TokenAccess, t.cfg.AccessTTL)
}

func (t *Tokens) sign(userID domain.UserID, kind string, ttl time.Duration) (string, error) {
	now := t.cfg.Now()
	claims := Claims{
		TokenType: kind,
		UserID:    string(userID),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   string(userID),
			Issuer:    t.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return s, nil
}

// Parse verifies signature, expiry, issuer and token type.
func (t *Tokens) Parse(raw, kind string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.cfg.Now),
		jwt.WithExpirationRequired(),
	}
	if t.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.cfg.Issuer))
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return t.cfg.Secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.TokenType != kind || claims.UserID == "" {
		return nil, fmt.Errorf("%w: wrong token type %q", ErrInvalidToken, claims.TokenType)
	}
	return claims, nil
}
