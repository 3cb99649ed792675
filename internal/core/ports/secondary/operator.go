package secondary

import (
	"context"

	"gitlab.com/autoserver-2025.net/internal/domain"
)

type OperatorPort interface {
	Create(ctx context.Context, operator *domain.Operator) error
	GetByUserName(ctx context.Context, userName string) (*domain.Operator, error)
}
