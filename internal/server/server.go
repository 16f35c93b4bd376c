package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"

	"transfer-hub/internal/config"
	"transfer-hub/internal/domain"
	"transfer-hub/internal/handler"
	"transfer-hub/internal/logging"
	"transfer-hub/internal/provider"
	"transfer-hub/internal/reference"
	"transfer-hub/internal/repository"
	"transfer-hub/internal/repository/memory"
	"transfer-hub/internal/service"
)

// Server represents the HTTP server
type Server struct {
	router *mux.Router
	server *http.Server
	db     *sqlx.DB
	store  domain.Store
	logger *slog.Logger
	port   string
}

// Dependencies lets callers supply collaborators instead of having the
// server build them from the configuration.
type Dependencies struct {
	Store     domain.Store
	DB        *sqlx.DB
	Providers *provider.Registry
}

// NewServer opens the configured store and wires the application around it.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	deps, err := OpenStore(context.Background(), cfg, logger)
	if err != nil {
		return nil, err
	}
	return New(cfg, deps, logger), nil
}

// OpenStore connects to the store named by cfg.StoreDriver. The postgres
// store is migrated and seeded before it is returned.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Dependencies, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Info("Using in-memory store")
		return Dependencies{Store: memory.NewStore(logger)}, nil
	}

	if err := repository.Migrate(cfg.GetDBConnectionString(), logger); err != nil {
		return Dependencies{}, err
	}

	db, err := repository.Connect(ctx, cfg.GetDBConnectionString())
	if err != nil {
		return Dependencies{}, err
	}
	logger.Info("Successfully connected to database")

	store := repository.NewStore(db, logger)
	if err := repository.SeedChannels(ctx, store, domain.DefaultChannels, logger); err != nil {
		db.Close()
		return Dependencies{}, err
	}

	return Dependencies{Store: store, DB: db}, nil
}

// DefaultProviders registers the simulated adapters configured by cfg.
func DefaultProviders(cfg *config.Config, logger *slog.Logger) *provider.Registry {
	simulated := provider.SimulatedConfig{
		Latency:     cfg.ProviderLatency,
		SuccessRate: cfg.ProviderSuccessRate,
		Random:      provider.NewRandomSource(),
	}
	return provider.NewRegistry(logger,
		provider.NewOrangeMoney(simulated, logger),
		provider.NewWave(simulated, logger),
	)
}

// New wires services, handlers and routes around deps.
func New(cfg *config.Config, deps Dependencies, logger *slog.Logger) *Server {
	providers := deps.Providers
	if providers == nil {
		providers = DefaultProviders(cfg, logger)
	}
	paginator := cfg.Paginator()

	// Initialize services
	actionService := service.NewActionService(deps.Store, paginator, logger)
	transactionService := service.NewTransactionService(deps.Store, actionService, service.TransactionServiceConfig{
		Fees:            cfg.FeePolicy(),
		References:      reference.New(cfg.ReferencePrefix),
		Paginator:       paginator,
		DefaultCurrency: cfg.DefaultCurrency,
	}, logger)
	transferService := service.NewTransferService(transactionService, providers, cfg.ProviderTimeout, logger)

	// Initialize handlers
	transactionHandler := handler.NewTransactionHandler(transactionService, transferService, actionService)
	actionHandler := handler.NewActionHandler(actionService)

	// Setup router
	router := mux.NewRouter()

	// Add middleware for logging
	router.Use(loggingMiddleware(logger))

	s := &Server{
		router: router,
		db:     deps.DB,
		store:  deps.Store,
		logger: logger,
	}

	// Health check
	router.HandleFunc("/health", s.health).Methods("GET")

	if cfg.APIKey == "" {
		logger.Warn("No API key configured, requests are not authenticated")
	}
	api := router.NewRoute().Subrouter()
	api.Use(handler.APIKeyMiddleware(cfg.APIKey, logger))

	// Transaction routes
	api.HandleFunc("/transactions", transactionHandler.Create).Methods("POST")
	api.HandleFunc("/transactions", transactionHandler.List).Methods("GET")
	api.HandleFunc("/transactions/{id}", transactionHandler.Get).Methods("GET")
	api.HandleFunc("/transactions/{id}/actions", transactionHandler.Actions).Methods("GET")
	api.HandleFunc("/transactions/{id}/process", transactionHandler.Process).Methods("POST")
	api.HandleFunc("/transactions/{id}/cancel", transactionHandler.Cancel).Methods("POST")

	// Action log routes
	api.HandleFunc("/actions", actionHandler.List).Methods("GET")

	return s
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	// Check store connectivity in health check
	if err := s.store.Ping(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy", "error": "database unavailable"})
		return
	}

	json.NewEncoder(w).Encode(map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// loggingMiddleware adds request logging
func loggingMiddleware(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Create response wrapper to capture status code
			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.statusCode,
				"duration", time.Since(start),
				"user_agent", r.UserAgent(),
			)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server on the specified port
func (s *Server) Start(port string) (string, error) {
	// Create listener first to get actual port
	listener, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return "", err
	}

	// Get the actual port being used
	addr := listener.Addr().(*net.TCPAddr)
	s.port = strconv.Itoa(addr.Port)

	// Provider calls can outlast the usual write deadline
	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting server", "port", s.port)

	// Start server in background
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Server failed to start", "error", err)
		}
	}()

	return s.port, nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	var err error
	// Shutdown HTTP server before closing the pool it drains into
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}

	// Close database connection
	if s.db != nil {
		s.db.Close()
	}
	return err
}

// GetPort returns the port the server is listening on
func (s *Server) GetPort() string {
	return s.port
}

// GetBaseURL returns the base URL for the server
func (s *Server) GetBaseURL() string {
	return "http://localhost:" + s.port
}

// GetRouter returns the router for testing purposes
func (s *Server) GetRouter() *mux.Router {
	return s.router
}

// StartServer starts the server with the given configuration
func StartServer(cfg *config.Config) (*Server, string, error) {
	// Initialize logger - use io.Discard for tests to avoid noise
	var logger *slog.Logger
	if cfg.ServerPort == "0" {
		logger = logging.Discard()
	} else {
		logger = logging.New(cfg.Logging, os.Stdout)
	}

	server, err := NewServer(cfg, logger)
	if err != nil {
		return nil, "", err
	}

	// Start the server and get the actual port
	port, err := server.Start(cfg.ServerPort)
	if err != nil {
		return nil, "", err
	}

	return server, port, nil
}
