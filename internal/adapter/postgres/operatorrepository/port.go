package operatorrepository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"gitlab.com/autoserver-2025.net/internal/core/ports/primary"
	"gitlab.com/autoserver-2025.net/internal/core/ports/secondary"
	"gitlab.com/autoserver-2025.net/internal/domain"
	querybuilder "gitlab.com/autoserver-2025.net/internal/utils"
)

var _ secondary.OperatorPort = &operatorRepo{}

type operatorRepo struct {
	db     *sqlx.DB
	logger primary.Logger
	schema string
}

func New(db *sqlx.DB, logger primary.Logger, schema string) secondary.OperatorPort {
	return &operatorRepo{
		db:     db,
		logger: logger,
		schema: schema,
	}
}

func (u operatorRepo) Create(ctx context.Context, op *domain.Operator) error {
	tbl := domain.GetOperatorTable()
	query, args := querybuilder.NewQueryBuilder(u.schema).
		Insert(tbl.ID, tbl.UserName, tbl.PasswordHash, tbl.Role).
		Into(tbl.GetTableName()).
		Values(op.ID, op.UserName, op.PasswordHash, string(op.Role)).
		Build()

	query = sqlx.Rebind(sqlx.DOLLAR, query)
	_, err := u.db.ExecContext(ctx, query, args...)
	if err != nil {
		u.logger.Error("Failed to create operator", "user", op.UserName, "error", err)
		return fmt.Errorf("failed to create operator: %w", err)
	}
	return nil
}

// GetByUserName returns nil without error when no operator has that name.
func (u operatorRepo) GetByUserName(ctx context.Context, userName string) (*domain.Operator, error) {
	tbl := domain.GetOperatorTable()
	query, args := querybuilder.NewQueryBuilder(u.schema).
		Select(tbl.ID, tbl.UserName, tbl.PasswordHash, tbl.Role).
		From(tbl.GetTableName()).
		Where(fmt.Sprintf("%s = ?", tbl.UserName), userName).
		Build()

	query = sqlx.Rebind(sqlx.DOLLAR, query)
	var op domain.Operator
	err := u.db.GetContext(ctx, &op, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &op, nil
}
