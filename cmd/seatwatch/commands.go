package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "github.com/noah-isme/seatwatch/api/swagger"
	"github.com/noah-isme/seatwatch/internal/handler"
	"github.com/noah-isme/seatwatch/internal/service"
	"github.com/noah-isme/seatwatch/pkg/config"
	"github.com/noah-isme/seatwatch/pkg/database"
	"github.com/noah-isme/seatwatch/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

type cliState struct {
	cfg    *config.Config
	logger *zap.Logger
}

func newRootCommand() *cobra.Command {
	rt := &cliState{}
	root := &cobra.Command{
		Use:           "seatwatch",
		Short:         "Watch course sections and notify subscribers when a seat opens",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logr, err := logger.New(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			rt.cfg = cfg
			rt.logger = logr
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if rt.logger != nil {
				_ = rt.logger.Sync()
			}
		},
	}

	root.AddCommand(
		newServeCommand(rt),
		newPollCommand(rt),
		newSyncCommand(rt),
		newMigrateCommand(rt),
		newTokenCommand(rt),
	)
	return root
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newServeCommand(rt *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and the ops API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := newApp(ctx, rt.cfg, rt.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if rt.cfg.Env == config.EnvProduction {
				gin.SetMode(gin.ReleaseMode)
			}

			checks := map[string]handler.Pinger{"catalog": a.store}
			if a.redis != nil {
				checks["redis"] = a.cycles
			}
			router := handler.NewRouter(handler.RouterConfig{
				APIPrefix:      rt.cfg.APIPrefix,
				EnableDocs:     rt.cfg.Env != config.EnvProduction,
				AllowedOrigins: rt.cfg.CORS.AllowedOrigins,
				Logger:         rt.logger,
				Metrics:        a.metrics,
				Auth:           service.NewAuthService(nil, service.AuthConfig{Secret: rt.cfg.JWT.Secret, Issuer: rt.cfg.JWT.Issuer}),
				Probes:         handler.NewMetricsHandler(a.metrics, checks),
				Sections:       handler.NewSectionHandler(service.NewSectionService(a.store, nil, rt.logger)),
				Status:         handler.NewStatusHandler(service.NewStatusService(a.cycles, a.scheduler, rt.logger)),
			})

			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", rt.cfg.Port),
				Handler:           router,
				ReadHeaderTimeout: 5 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				rt.logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", rt.cfg.Env))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			g.Go(func() error {
				err := a.scheduler.Run(gctx)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})

			err = g.Wait()
			rt.logger.Info("shutdown complete")
			return err
		},
	}
}

func newPollCommand(rt *cliState) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Run the scheduler without the ops API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := newApp(ctx, rt.cfg, rt.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if once {
				return printJSON(cmd, a.scheduler.RunCycle(ctx, 0))
			}
			if err := a.scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single cycle (resync then poll) and exit")
	return cmd
}

func newSyncCommand(rt *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Fetch the full catalog once and insert new sections",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := newApp(ctx, rt.cfg, rt.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.scheduler.Resync(ctx)
			if err != nil {
				return fmt.Errorf("catalog resync: %w", err)
			}
			return printJSON(cmd, result)
		},
	}
}

func newMigrateCommand(rt *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate [up|down|version]",
		Short:     "Manage the catalog schema",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if rt.cfg.Database.Backend != config.BackendPostgres {
				return fmt.Errorf("migrations need the postgres backend, got %q", rt.cfg.Database.Backend)
			}
			db, err := database.NewPostgres(cmd.Context(), rt.cfg.Database, rt.logger)
			if err != nil {
				return err
			}
			defer db.Close()

			migrator, err := database.NewMigrator(db)
			if err != nil {
				return err
			}
			switch args[0] {
			case "up":
				if err := migrator.Up(); err != nil {
					return err
				}
			case "down":
				if err := migrator.Down(); err != nil {
					return err
				}
			}
			version, dirty, err := migrator.Version()
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]interface{}{"version": version, "dirty": dirty})
		},
	}
	return cmd
}

func newTokenCommand(rt *cliState) *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an operator token for the ops API",
		RunE: func(cmd *cobra.Command, args []string) error {
			auth := service.NewAuthService(nil, service.AuthConfig{Secret: rt.cfg.JWT.Secret, Issuer: rt.cfg.JWT.Issuer})
			issued, err := auth.IssueToken(service.IssueTokenRequest{Subject: subject, Role: role, TTL: ttl})
			if err != nil {
				return err
			}
			return printJSON(cmd, issued)
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "operator", "token subject")
	cmd.Flags().StringVar(&role, "role", "admin", "operator role (admin or viewer)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
