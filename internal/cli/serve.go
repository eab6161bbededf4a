package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/fjod/go_shop/internal/cache"
	"github.com/fjod/go_shop/internal/config"
	"github.com/fjod/go_shop/internal/domain"
	shopgrpc "github.com/fjod/go_shop/internal/grpc"
	h "github.com/fjod/go_shop/internal/http"
	"github.com/fjod/go_shop/internal/ratelimit"
	"github.com/fjod/go_shop/internal/repository"
	"github.com/fjod/go_shop/internal/service"
	"github.com/fjod/go_shop/internal/session"
	"github.com/fjod/go_shop/internal/upload"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc/health"
)

const healthCheckInterval = 10 * time.Second

// NewServeCommand runs the HTTP API and, when GRPC_PORT is set, the gRPC
// health endpoint.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	var runMigrations bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, logger, runMigrations)
		},
	}

	cmd.Flags().BoolVar(&runMigrations, "migrate", true, "apply migrations and indexes before serving")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, logger zerolog.Logger, runMigrations bool) error {
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	res, err := openResources(connectCtx, cfg, logger)
	cancel()
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := res.Close(closeCtx); err != nil {
			logger.Error().Err(err).Msg("failed to close resources")
		}
	}()

	if runMigrations {
		if err := migrate(ctx, res); err != nil {
			return err
		}
		logger.Info().Msg("database migrations completed")
	}

	handler, err := buildHandler(cfg, res, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           otelhttp.NewHandler(handler, "shop"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info().Str("port", cfg.HTTPPort).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	stopGRPC, err := startHealth(ctx, cfg, res, logger, errCh)
	if err != nil {
		_ = srv.Close()
		return err
	}

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server failed, shutting down")
		stopGRPC()
		_ = srv.Close()
		return err
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()

	stopGRPC()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info().Msg("server exited")
	return nil
}

func buildHandler(cfg *config.Config, res *resources, logger zerolog.Logger) (http.Handler, error) {
	validator := domain.NewValidator(cfg.MinPasswordLength)

	users := repository.NewUserRepository(res.mongo)
	carts := repository.NewCartRepository(res.mongo)
	products := repository.NewProductRepository(res.mongo)

	images, err := upload.NewStore(cfg.UploadDir, "/images", cfg.MaxUploadSize)
	if err != nil {
		return nil, err
	}

	catalog := service.NewCatalogService(products, cache.NewRedisCache(res.redis, cfg.ProductCacheTTL, logger), images, validator, cfg.PageSize, logger)
	cartService := service.NewCartService(carts, catalog, logger)
	orderService := service.NewOrderService(res.orders, users, carts, catalog, res.publisher, logger)

	authService, err := service.NewAuthService(
		users,
		session.NewRedisStore(res.redis, cfg.SessionTTL),
		res.publisher,
		validator,
		service.AuthConfig{ResetTokenTTL: cfg.ResetTokenTTL},
		logger,
	)
	if err != nil {
		return nil, err
	}

	return h.NewRouter(h.RouterConfig{
		RequestTimeout: cfg.RequestTimeout,
		Cookie:         h.CookieConfig{Name: cfg.SessionCookieName, Secure: cfg.CookieSecure},
		MaxUploadSize:  cfg.MaxUploadSize,
		UploadDir:      images.Dir(),
	}, h.Services{
		Auth:    authService,
		Catalog: catalog,
		Carts:   cartService,
		Orders:  orderService,
		Limiter: ratelimit.NewFixedWindow(res.redis, cfg.RateLimitRequests, cfg.RateLimitWindow),
	}, logger), nil
}

// startHealth serves grpc.health.v1 on GRPC_PORT. It returns a stop func
// that is a no-op when the port is not configured.
func startHealth(ctx context.Context, cfg *config.Config, res *resources, logger zerolog.Logger, errCh chan<- error) (func(), error) {
	if cfg.GRPCPort == "" {
		return func() {}, nil
	}

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}

	hs := health.NewServer()
	checker := shopgrpc.NewChecker(hs, map[string]shopgrpc.PingFunc{
		"mongo":    func(ctx context.Context) error { return res.mongo.Client().Ping(ctx, nil) },
		"postgres": res.orders.Ping,
		"redis":    func(ctx context.Context) error { return res.redis.Ping(ctx).Err() },
	}, 2*time.Second, logger)

	checkCtx, cancelChecks := context.WithCancel(ctx)
	go checker.Run(checkCtx, healthCheckInterval)

	grpcServer := shopgrpc.NewServer(hs)
	go func() {
		logger.Info().Str("port", cfg.GRPCPort).Msg("gRPC health server listening")
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	return func() {
		cancelChecks()
		grpcServer.GracefulStop()
	}, nil
}
