package http

// this is entry point of the http request handlers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"gitlab.com/autoserver-2025.net/internal/core/ports/primary"
	"gitlab.com/autoserver-2025.net/internal/core/ports/secondary"
	auth2 "gitlab.com/autoserver-2025.net/internal/core/services/auth"
	"gitlab.com/autoserver-2025.net/internal/handlers"
	"gitlab.com/autoserver-2025.net/internal/handlers/auth"
	"gitlab.com/autoserver-2025.net/internal/handlers/jobs"
)

type ServiceProvider struct {
	jobService jobs.JobService
	events     secondary.JobEventRepository
	localAuth  auth2.IAuthService
	verifier   primary.JWTService
}

// NewServiceProvider collects what the routes need. events, localAuth and
// verifier are optional; a nil verifier leaves the gateway open.
func NewServiceProvider(
	jobService jobs.JobService,
	events secondary.JobEventRepository,
	localAuth auth2.IAuthService,
	verifier primary.JWTService,
) *ServiceProvider {
	return &ServiceProvider{
		jobService: jobService,
		events:     events,
		localAuth:  localAuth,
		verifier:   verifier,
	}
}

type Server struct {
	router          *mux.Router
	srv             *http.Server
	Port            int
	ServiceName     string
	ServiceProvider ServiceProvider
	logger          primary.Logger
}

func NewServer(port int, serviceName string, serviceProvider ServiceProvider, logger primary.Logger) *Server {
	return &Server{
		Port:            port,
		ServiceName:     serviceName,
		ServiceProvider: serviceProvider,
		logger:          logger,
	}
}

func (s *Server) Init() error {
	if s.ServiceProvider.jobService == nil {
		return errors.New("http server needs a job service")
	}
	r := mux.NewRouter()
	mw := handlers.New(s.ServiceProvider.verifier)
	jobs.
		NewJobHandler(s.ServiceProvider.jobService, s.ServiceProvider.events, s.logger).
		RegisterRoutes(r, mw)
	if s.ServiceProvider.localAuth != nil {
		auth.NewHandler(s.ServiceProvider.localAuth).RegisterRoutes(r)
	}
	s.router = r
	return nil
}

// Handler returns the routed handler, nil before Init
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(ctx context.Context) {
	// Set up server
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	// Start the server in a goroutine
	go func() {
		s.logger.Info("Server listening", "addr", s.srv.Addr, "service", s.ServiceName)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server error", "error", err)
		}
	}()
}

func (s *Server) Stop(ctx context.Context) {
	s.logger.Info("Shutting down http server...")
	if s.srv == nil {
		return
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Error("Server forced to shutdown", "error", err)
	}
}
