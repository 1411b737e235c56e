package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"assessment-service/internal/config"
	transport "assessment-service/internal/transport/http"
	"assessment-service/internal/worker"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the assessment server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := newLogger(cfg.Log.Level, cfg.Log.Format)

	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwtSecret (or JWT_SECRET) must be set")
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	c, err := wire(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer c.Close()

	if !cfg.Development() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := transport.NewRouter(transport.RouterConfig{
		Attempts:       c.attempts,
		Leaderboard:    c.leaderboard,
		Sweeper:        c.sweeper,
		Auth:           transport.NewAuthenticator(cfg.Auth.JWTSecret),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Development:    cfg.Development(),
		Log:            log,
	})

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting assessment service", "port", finalPort, "mode", cfg.Server.Mode)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if cfg.SweeperEnabled() {
		scheduler, err := worker.NewScheduler(c.sweeper, worker.Config{
			ExpiredSchedule: cfg.Sweeper.ExpiredSchedule,
			PurgeSchedule:   cfg.Sweeper.PurgeSchedule,
		}, log)
		if err != nil {
			return err
		}
		g.Go(func() error { return scheduler.Run(gctx) })
	}
	return g.Wait()
}
