package services

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AdminSubjectID is the reserved subject for the administrative principal.
// Real user IDs are positive sequence values, so the two can never collide.
const AdminSubjectID int64 = -1

const adminLabel = "admin@garba.com"

// Principal kinds. The kind tag, not the subject ID, is what authorization
// decisions key on.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	errEmptySecret  = errors.New("jwt secret is required")
)

// Claims are the JWT claims carried by every session token.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64  `json:"uid"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// Principal is the authenticated party a valid token resolves to.
type Principal struct {
	Role   string
	UserID int64
}

// IsAdmin reports whether this principal is the administrative one.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// TokenService issues and validates signed, time-bounded session tokens.
// Validation is pure computation; the signing key is immutable at runtime.
type TokenService struct {
	secret   []byte
	tokenTTL time.Duration
}

// NewTokenService constructs a TokenService. An empty secret is a fatal
// configuration fault, not something to retry.
func NewTokenService(secret string, tokenTTL time.Duration) (*TokenService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errEmptySecret
	}
	return &TokenService{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
	}, nil
}

// Issue produces a signed token for a regular user session.
func (s *TokenService) Issue(userID int64, email string) (string, error) {
	return s.sign(userID, email, RoleUser)
}

// IssueAdmin produces a signed token for the administrative principal,
// bound to the reserved sentinel subject.
func (s *TokenService) IssueAdmin() (string, error) {
	return s.sign(AdminSubjectID, adminLabel, RoleAdmin)
}

// Validate reports whether the token is well-formed, untampered, and not
// expired. All failure modes collapse to false.
func (s *TokenService) Validate(tokenString string) bool {
	_, err := s.Principal(tokenString)
	return err == nil
}

// Principal verifies the token and returns the principal it asserts.
// Malformed, tampered, and expired tokens all yield ErrInvalidToken.
func (s *TokenService) Principal(tokenString string) (Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return Principal{}, ErrInvalidToken
	}

	role := claims.Role
	if role == "" {
		role = RoleUser
	}
	if role == RoleAdmin && claims.UserID != AdminSubjectID {
		return Principal{}, ErrInvalidToken
	}
	return Principal{Role: role, UserID: claims.UserID}, nil
}

func (s *TokenService) sign(userID int64, email, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
		UserID: userID,
		Email:  email,
		Role:   role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}
