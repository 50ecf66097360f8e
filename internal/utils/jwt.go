package utils

import (
	"bytes"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")
	ErrWrongTokenKind = errors.New("wrong token kind")
)

type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"
)

// TokenManager signs access and refresh tokens with separate secrets and a type claim.
type TokenManager struct {
	AccessSecret  []byte
	RefreshSecret []byte
	Issuer        string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Now           func() time.Time
}

type Claims struct {
	UserID   int64     `json:"user_id"`
	Username string    `json:"username"`
	Roles    []string  `json:"roles"`
	Type     TokenKind `json:"type"`
	jwt.RegisteredClaims
}

type IssuedToken struct {
	Token     string
	ID        string
	ExpiresAt time.Time
	TTL       time.Duration
}

func (m *TokenManager) IssueAccess(userID int64, username string, roles []string) (IssuedToken, error) {
	return m.issue(AccessToken, userID, username, roles)
}

func (m *TokenManager) IssueRefresh(userID int64, username string, roles []string) (IssuedToken, error) {
	return m.issue(RefreshToken, userID, username, roles)
}

// Verify checks signature, expiry and kind. A token signed for the other kind yields ErrWrongTokenKind.
func (m *TokenManager) Verify(token string, expected TokenKind) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	claims, err := m.parse(token, m.secret(expected))
	if err == nil {
		if claims.Type != expected {
			return nil, ErrWrongTokenKind
		}
		return claims, nil
	}
	if errors.Is(err, ErrTokenExpired) {
		return nil, err
	}

	other := m.secret(opposite(expected))
	if len(other) > 0 && !bytes.Equal(other, m.secret(expected)) {
		if _, otherErr := m.parse(token, other); otherErr == nil || errors.Is(otherErr, ErrTokenExpired) {
			return nil, ErrWrongTokenKind
		}
	}
	return nil, ErrInvalidToken
}

func (m *TokenManager) issue(kind TokenKind, userID int64, username string, roles []string) (IssuedToken, error) {
	ttl := m.ttl(kind)
	now := m.now()
	expiresAt := now.Add(ttl)
	if roles == nil {
		roles = []string{}
	}
	claims := Claims{
		UserID:   userID,
		Username: username,
		Roles:    roles,
		Type:     kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret(kind))
	if err != nil {
		return IssuedToken{}, err
	}
	return IssuedToken{Token: signed, ID: claims.ID, ExpiresAt: expiresAt, TTL: ttl}, nil
}

func (m *TokenManager) parse(token string, secret []byte) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	}
	if m.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.Issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return secret, nil
	}, options...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (m *TokenManager) secret(kind TokenKind) []byte {
	if kind == RefreshToken && len(m.RefreshSecret) > 0 {
		return m.RefreshSecret
	}
	return m.AccessSecret
}

func (m *TokenManager) ttl(kind TokenKind) time.Duration {
	if kind == RefreshToken {
		if m.RefreshTTL > 0 {
			return m.RefreshTTL
		}
		return 14 * 24 * time.Hour
	}
	if m.AccessTTL > 0 {
		return m.AccessTTL
	}
	return 2 * time.Hour
}

func (m *TokenManager) now() time.Time {
	if m.Now == nil {
		return time.Now()
	}
	return m.Now()
}

func opposite(kind TokenKind) TokenKind {
	if kind == AccessToken {
		return RefreshToken
	}
	return AccessToken
}
