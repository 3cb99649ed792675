package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"

	"gitlab.com/autoserver-2025.net/internal/adapter/crypto"
	"gitlab.com/autoserver-2025.net/internal/adapter/logging"
	"gitlab.com/autoserver-2025.net/internal/adapter/memory/valuehub"
	"gitlab.com/autoserver-2025.net/internal/adapter/postgres"
	"gitlab.com/autoserver-2025.net/internal/adapter/postgres/eventrepository"
	"gitlab.com/autoserver-2025.net/internal/adapter/postgres/operatorrepository"
	"gitlab.com/autoserver-2025.net/internal/adapter/redis/valueport"
	"gitlab.com/autoserver-2025.net/internal/config"
	"gitlab.com/autoserver-2025.net/internal/core/ports/primary"
	"gitlab.com/autoserver-2025.net/internal/core/ports/secondary"
	"gitlab.com/autoserver-2025.net/internal/core/services/audit"
	auth2 "gitlab.com/autoserver-2025.net/internal/core/services/auth"
	"gitlab.com/autoserver-2025.net/internal/core/services/job"
	"gitlab.com/autoserver-2025.net/internal/core/services/registry"
	"gitlab.com/autoserver-2025.net/internal/domain"
	http2 "gitlab.com/autoserver-2025.net/internal/http"
	"gitlab.com/autoserver-2025.net/internal/procedure"
	"gitlab.com/autoserver-2025.net/internal/protocol"
	"gitlab.com/autoserver-2025.net/internal/schedulerengine"
	"gitlab.com/autoserver-2025.net/internal/tcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve [procedure.yaml]...",
	Short: "Load procedures as jobs and serve them over TCP and HTTP",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func newRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Url,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Url, err)
	}
	return client, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	sysCfg := config.NewSystemConfig()
	logger := logging.NewZapLogger(sysCfg.LogLevel)

	// Set up graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// SECONDARY PORTS
	var valuePort secondary.ValuePort = valuehub.New()
	if sysCfg.RedisConfig.Enabled() {
		redisClient, err := newRedisClient(ctx, sysCfg.RedisConfig)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		valuePort = valueport.NewValuePort(redisClient, logger.Named("values"))
	}

	var (
		events    secondary.JobEventRepository
		operators secondary.OperatorPort
		verifier  primary.JWTService
		localAuth auth2.IAuthService
		retention *schedulerengine.SchedulerEngine
	)
	if sysCfg.PostgresConfig.Enabled() {
		db, err := postgres.Connect(ctx, sysCfg.PostgresConfig)
		if err != nil {
			return err
		}
		defer db.Close()

		eventRepo := eventrepository.NewEventRepository(db, logger, sysCfg.PostgresConfig.Schema)
		events = eventRepo
		valuePort = audit.New(valuePort, eventRepo, logger.Named("audit"))
		operators = operatorrepository.New(db, logger, sysCfg.PostgresConfig.Schema)

		retention = schedulerengine.NewSchedulerEngine(sysCfg.AuditConfig, eventRepo, logger.Named("retention"))
		retention.StartRetentionEngine(ctx)
	}
	if sysCfg.JwtConfig.Enabled() {
		jwtProvider := crypto.NewJWTService(sysCfg.JwtConfig)
		verifier = jwtProvider
		if operators != nil {
			localAuth = auth2.NewLocalAuthService(operators, jwtProvider)
		}
	} else {
		logger.Warn("JWT_SECRET is not set, access control is disabled")
	}

	// services
	reg := registry.New(sysCfg.ServerConfig.Prefix, valuePort, logger,
		registry.WithJobOptions(job.WithInputTimeout(sysCfg.InputConfig.ReplyTimeout)))
	defer reg.Close()

	for _, path := range args {
		proc, err := procedure.Load(path)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		index, err := reg.AddJob(ctx, proc)
		if err != nil {
			return fmt.Errorf("failed to add job for %s: %w", path, err)
		}
		logger.Info("Job added", "index", index, "prefix", protocol.JobPrefix(reg.GetServerPrefix(), index), "file", path)
	}

	// server
	tcpOptions := []tcp.TCPServerOption{tcp.WithAddress(sysCfg.ServerConfig.TCPAddress)}
	if verifier != nil {
		tcpOptions = append(tcpOptions, tcp.WithJWTService(verifier))
	}
	tcpServer := tcp.NewTCPServer(logger.Named("tcp"), tcpOptions...)
	tcpServer.RegisterService(protocol.InfoServiceName(reg.GetServerPrefix()), protocol.NewInfoService(reg, logger), domain.RoleObserver)
	tcpServer.RegisterService(protocol.ControlServiceName(reg.GetServerPrefix()), protocol.NewControlService(reg, logger), domain.RoleOperator)
	tcpServer.RegisterService(protocol.InputServiceName(reg.GetServerPrefix()), protocol.NewInputService(reg, logger), domain.RoleOperator)
	if err := tcpServer.Start(); err != nil {
		return err
	}

	serviceProvider := http2.NewServiceProvider(reg, events, localAuth, verifier)
	httpServer := http2.NewServer(sysCfg.ServerConfig.HTTPPort, "autoserver", *serviceProvider, logger.Named("http"))
	if err := httpServer.Init(); err != nil {
		return err
	}
	httpServer.Start(ctx)

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	httpServer.Stop(shutdownCtx)
	if err := tcpServer.Stop(shutdownCtx); err != nil {
		logger.Error("TCP server did not stop in time", "error", err)
	}
	if retention != nil {
		retention.Wait()
	}

	logger.Info("successfully shutdown server")
	return nil
}
