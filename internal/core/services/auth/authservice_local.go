package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"gitlab.com/autoserver-2025.net/internal/core/ports/primary"
	"gitlab.com/autoserver-2025.net/internal/core/ports/secondary"
	"gitlab.com/autoserver-2025.net/internal/domain"
	"gitlab.com/autoserver-2025.net/internal/global/logger"
	"gitlab.com/autoserver-2025.net/internal/static/errs"
)

var _ IAuthService = &localAuthService{}

type localAuthService struct {
	operatorPort secondary.OperatorPort
	jwtProvider  primary.JWTService
}

func NewLocalAuthService(
	operatorPort secondary.OperatorPort,
	jwtProvider primary.JWTService,
) IAuthService {
	return &localAuthService{
		operatorPort: operatorPort,
		jwtProvider:  jwtProvider,
	}
}

func (g localAuthService) Login(ctx context.Context, userName, password string) (string, error) {
	op, err := g.operatorPort.GetByUserName(ctx, userName)
	if err != nil {
		logger.Error("Failed to load operator", "user", userName, "error", err)
		return "", errs.InternalError
	}
	if op == nil || op.PasswordHash == "" {
		return "", errs.InvalidCredentials
	}
	valid, err := g.jwtProvider.VerifyPassword(ctx, op.PasswordHash, password)
	if err != nil || !valid {
		return "", errs.InvalidCredentials
	}

	token, err := g.jwtProvider.GenerateToken(ctx, domain.AuthPayload{
		Username: op.UserName,
		Role:     op.Role,
	})
	if err != nil {
		logger.Error("Failed to generate token", "user", userName, "error", err)
		return "", errs.GeneratingToken
	}
	return token, nil
}

func (g localAuthService) AddOperator(ctx context.Context, userName, password string, role domain.Role) error {
	if _, ok := domain.ParseRole(string(role)); !ok || userName == "" || password == "" {
		return errs.InvalidCredentials
	}
	existing, err := g.operatorPort.GetByUserName(ctx, userName)
	if err != nil {
		return err
	}
	if existing != nil {
		return errs.OperatorExists
	}

	hash, err := g.jwtProvider.EncryptPassword(ctx, password)
	if err != nil {
		return errors.Join(errs.InternalError, err)
	}
	return g.operatorPort.Create(ctx, &domain.Operator{
		ID:           uuid.New(),
		UserName:     userName,
		PasswordHash: hash,
		Role:         role,
	})
}
