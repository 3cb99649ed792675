package crypto

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"golang.org/x/crypto/bcrypt"

	"gitlab.com/autoserver-2025.net/internal/config"
	"gitlab.com/autoserver-2025.net/internal/core/ports/primary"
	"gitlab.com/autoserver-2025.net/internal/domain"
)

var _ primary.JWTService = (*JWTServiceImpl)(nil)

var (
	ErrInvalidToken = fmt.Errorf("invalid token")
)

type claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

type JWTServiceImpl struct {
	HMACSecretKey string
	TTL           time.Duration
	now           func() time.Time
}

func NewJWTService(jwtConfig *config.JwtConfig) *JWTServiceImpl {
	return &JWTServiceImpl{
		HMACSecretKey: jwtConfig.Secret,
		TTL:           jwtConfig.TTL,
		now:           time.Now,
	}
}

// GenerateToken signs an HS256 token carrying the operator name and role.
func (J *JWTServiceImpl) GenerateToken(ctx context.Context, payload domain.AuthPayload) (string, error) {
	now := J.now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: payload.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   payload.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(J.TTL)),
		},
	})
	return tok.SignedString([]byte(J.HMACSecretKey))
}

// VerifyToken checks signature and expiry and returns the token payload.
func (J *JWTServiceImpl) VerifyToken(ctx context.Context, token string) (domain.AuthPayload, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(J.HMACSecretKey), nil
	}, jwt.WithTimeFunc(J.now), jwt.WithExpirationRequired())
	if err != nil {
		return domain.AuthPayload{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return domain.AuthPayload{}, ErrInvalidToken
	}
	role, ok := domain.ParseRole(string(c.Role))
	if !ok {
		return domain.AuthPayload{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, c.Role)
	}
	return domain.AuthPayload{Username: c.Subject, Role: role}, nil
}

func (*JWTServiceImpl) VerifyPassword(ctx context.Context, passwordHash string, pwd string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(pwd))
	if err != nil {
		return false, err
	}
	return true, nil
}

func (J *JWTServiceImpl) EncryptPassword(ctx context.Context, password string) (string, error) {
	pwd, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}
