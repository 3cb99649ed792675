package auth

import (
	"context"

	"gitlab.com/autoserver-2025.net/internal/domain"
)

type IAuthService interface {
	// Login checks operator credentials and issues a role-scoped token
	Login(ctx context.Context, userName, password string) (string, error)

	// AddOperator creates an operator account with a hashed password
	AddOperator(ctx context.Context, userName, password string, role domain.Role) error
}
