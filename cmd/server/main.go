package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"transfer-hub/internal/config"
	"transfer-hub/internal/domain"
	"transfer-hub/internal/logging"
	"transfer-hub/internal/repository"
	"transfer-hub/internal/server"
)

func main() {
	cli := &cli{}

	root := &cobra.Command{
		Use:          "transfer-hub",
		Short:        "Payment transfer hub routing transactions to mobile money providers",
		SilenceUsage: true,
	}

	// Flags are parsed by config.Load so they can fall back to HUB_ env vars.
	root.AddCommand(
		&cobra.Command{
			Use:                "serve",
			Short:              "Run the HTTP API",
			DisableFlagParsing: true,
			PreRunE:            cli.setupConfig,
			RunE:               cli.serve,
		},
		&cobra.Command{
			Use:                "migrate",
			Short:              "Apply database migrations",
			DisableFlagParsing: true,
			PreRunE:            cli.setupConfig,
			RunE:               cli.migrate,
		},
		&cobra.Command{
			Use:                "seed",
			Short:              "Upsert the default payment channels",
			DisableFlagParsing: true,
			PreRunE:            cli.setupConfig,
			RunE:               cli.seed,
		},
	)

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

type cli struct {
	cfg    *config.Config
	logger *slog.Logger
}

func (c *cli) setupConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = logging.New(cfg.Logging, os.Stdout)
	slog.SetDefault(c.logger)
	return nil
}

func (c *cli) serve(cmd *cobra.Command, args []string) error {
	serverInstance, err := server.NewServer(c.cfg, c.logger)
	if err != nil {
		c.logger.Error("Failed to start server", "error", err)
		return err
	}

	port, err := serverInstance.Start(c.cfg.ServerPort)
	if err != nil {
		return err
	}
	c.logger.Info("Server started successfully", "port", port)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done() // block until the OS terminates the program

	// Create context with timeout for shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := serverInstance.Stop(shutdownCtx); err != nil {
		c.logger.Error("Server shutdown failed", "error", err)
		return err
	}

	c.logger.Info("Server stopped")
	return nil
}

func (c *cli) migrate(cmd *cobra.Command, args []string) error {
	return repository.Migrate(c.cfg.GetDBConnectionString(), c.logger)
}

func (c *cli) seed(cmd *cobra.Command, args []string) error {
	db, err := repository.Connect(cmd.Context(), c.cfg.GetDBConnectionString())
	if err != nil {
		return err
	}
	defer db.Close()

	store := repository.NewStore(db, c.logger)
	return repository.SeedChannels(cmd.Context(), store, domain.DefaultChannels, c.logger)
}
