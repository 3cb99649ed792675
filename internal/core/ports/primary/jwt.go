package primary

import (
	"context"

	"gitlab.com/autoserver-2025.net/internal/domain"
)

type JWTService interface {
	GenerateToken(ctx context.Context, payload domain.AuthPayload) (string, error)
	VerifyToken(ctx context.Context, token string) (domain.AuthPayload, error)
	EncryptPassword(ctx context.Context, password string) (string, error)
	VerifyPassword(ctx context.Context, passwordHash string, pwd string) (bool, error)
}
