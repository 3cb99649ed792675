package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"gitlab.com/autoserver-2025.net/internal/adapter/crypto"
	"gitlab.com/autoserver-2025.net/internal/adapter/logging"
	"gitlab.com/autoserver-2025.net/internal/adapter/postgres"
	"gitlab.com/autoserver-2025.net/internal/adapter/postgres/operatorrepository"
	"gitlab.com/autoserver-2025.net/internal/config"
	auth2 "gitlab.com/autoserver-2025.net/internal/core/services/auth"
	"gitlab.com/autoserver-2025.net/internal/domain"
)

var (
	operatorName     string
	operatorRole     string
	operatorPassword string
)

var operatorCmd = &cobra.Command{
	Use:   "operator",
	Short: "Manage operator accounts",
}

var operatorAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create an operator account",
	Args:  cobra.NoArgs,
	RunE:  runOperatorAdd,
}

func runOperatorAdd(cmd *cobra.Command, args []string) error {
	sysCfg := config.NewSystemConfig()
	logger := logging.NewZapLogger(sysCfg.LogLevel)
	if !sysCfg.PostgresConfig.Enabled() {
		return errors.New("operators are stored in postgres, set DATABASE_URL")
	}
	role, ok := domain.ParseRole(operatorRole)
	if !ok {
		return fmt.Errorf("unknown role %q, expected %s or %s", operatorRole, domain.RoleObserver, domain.RoleOperator)
	}

	ctx := context.Background()
	db, err := postgres.Connect(ctx, sysCfg.PostgresConfig)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := auth2.NewLocalAuthService(
		operatorrepository.New(db, logger, sysCfg.PostgresConfig.Schema),
		crypto.NewJWTService(sysCfg.JwtConfig),
	)
	if err := svc.AddOperator(ctx, operatorName, operatorPassword, role); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "operator %s added with role %s\n", operatorName, role)
	return nil
}

func init() {
	operatorAddCmd.Flags().StringVar(&operatorName, "name", "", "User name")
	operatorAddCmd.Flags().StringVar(&operatorRole, "role", string(domain.RoleObserver), "observer or operator")
	operatorAddCmd.Flags().StringVar(&operatorPassword, "password", "", "Password")
	_ = operatorAddCmd.MarkFlagRequired("name")
	_ = operatorAddCmd.MarkFlagRequired("password")

	operatorCmd.AddCommand(operatorAddCmd)
	rootCmd.AddCommand(operatorCmd)
}
