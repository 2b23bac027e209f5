package main

import (
	"context"
	"crypto/rand"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/netmanager/internal/auth"
	"github.com/hamed0406/netmanager/internal/config"
	"github.com/hamed0406/netmanager/internal/httpapi"
	apimw "github.com/hamed0406/netmanager/internal/httpapi/middleware"
	"github.com/hamed0406/netmanager/internal/logging"
	"github.com/hamed0406/netmanager/internal/metrics"
	"github.com/hamed0406/netmanager/internal/netquality"
	"github.com/hamed0406/netmanager/internal/notify"
	"github.com/hamed0406/netmanager/internal/optimize"
	"github.com/hamed0406/netmanager/internal/probe"
	"github.com/hamed0406/netmanager/internal/repo"
	"github.com/hamed0406/netmanager/internal/repo/memory"
	"github.com/hamed0406/netmanager/internal/repo/postgres"
	"github.com/hamed0406/netmanager/internal/scheduler"
)

type stores struct {
	users   repo.UserStore
	history repo.HistoryStore
	alerts  repo.AlertStore
	close   func()
}

func main() {
	_ = godotenv.Load() // .env is optional

	cfg := config.FromEnv()
	logger, err := logging.NewLogger(cfg.LogDir)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store_open_failed", zap.Error(err))
	}
	defer st.close()

	rdb := openRedis(ctx, cfg, logger)
	if rdb != nil {
		defer rdb.Close()
	}

	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			logger.Fatal("jwt_secret_generate_failed", zap.Error(err))
		}
		logger.Warn("jwt_secret_ephemeral", zap.String("hint", "set JWT_SECRET; tokens will not survive a restart"))
	}
	tokens, err := auth.NewTokens(auth.TokenConfig{
		Secret:     secret,
		Issuer:     cfg.JWTIssuer,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	})
	if err != nil {
		logger.Fatal("token_config_invalid", zap.Error(err))
	}
	authSvc := auth.NewService(st.users, auth.NewHasher(cfg.BcryptCost), tokens, logger)

	mc := metrics.New()
	assessor := netquality.NewAssessor(
		netquality.NewSpeedtestClient(cfg.SpeedtestCandidates),
		logger,
		netquality.Options{
			ConfigTimeout:  cfg.SpeedtestTimeout,
			MeasureTimeout: cfg.SpeedtestMeasureTimeout,
			Recorder:       mc,
		},
	)
	diag := probe.NewMultiChecker(
		probe.Probe{Checker: probe.NewDNSChecker(3 * time.Second), Target: cfg.DiagDNSHost},
		probe.Probe{Checker: probe.NewHTTPChecker(5 * time.Second), Target: cfg.DiagHTTPURL},
	)
	optimizer := optimize.New(assessor, diag, logger)

	api := httpapi.NewServer(logger, authSvc, assessor, optimizer, st.history, mc)
	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: api.Router(httpapi.RouterConfig{
			AdminKeys:      apimw.Keys{Admin: cfg.AdminAPIKeys},
			AllowedOrigins: cfg.AllowedOrigins,
			Redis:          rdb,
			NetworkRPM:     cfg.NetworkRPM,
			NetworkBurst:   cfg.NetworkBurst,
			AuthRPM:        cfg.AuthRPM,
			AuthBurst:      cfg.AuthBurst,
			HistoryLink:    cfg.MonitorLink,
			TrustProxy:     cfg.TrustProxy,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	if cfg.MonitorInterval > 0 {
		mon := scheduler.NewMonitor(logger, assessor, st.history, cfg.MonitorLink, cfg.MonitorInterval)

		var notifiers notify.Multi
		if s := notify.NewSlack(cfg.SlackWebhookURL); s != nil {
			notifiers = append(notifiers, s)
		} else {
			logger.Info("alerts_log_only", zap.String("reason", "SLACK_WEBHOOK_URL not set"))
		}
		alerter := scheduler.NewAlerter(logger, st.history, st.alerts, notifiers, scheduler.AlerterConfig{
			Link:            cfg.MonitorLink,
			AlertOnRecovery: cfg.AlertOnRecovery,
			Cooldown:        cfg.AlertCooldown,
			PollInterval:    cfg.MonitorInterval,
		})

		wg.Add(2)
		go func() { defer wg.Done(); mon.Run(ctx) }()
		go func() { defer wg.Done(); _ = alerter.Run(ctx) }()
		logger.Info("monitor_started",
			zap.String("link", cfg.MonitorLink),
			zap.Duration("interval", cfg.MonitorInterval),
		)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api_listen", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	runErr = multierr.Append(runErr, srv.Shutdown(shutdownCtx))
	wg.Wait()

	if runErr != nil {
		logger.Error("api_stopped", zap.Error(runErr))
		return
	}
	logger.Info("api_stopped")
}

func openStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (stores, error) {
	if cfg.DatabaseURL == "" {
		logger.Info("store_memory")
		m := memory.New()
		return stores{users: m, history: m, alerts: m, close: func() {}}, nil
	}
	pg, err := postgres.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return stores{}, err
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		pg.Close()
		return stores{}, err
	}
	logger.Info("store_postgres")
	return stores{users: pg, history: pg, alerts: pg, close: pg.Close}, nil
}

// openRedis returns nil when Redis is not configured or unreachable; the
// API then falls back to in-process rate limiting.
func openRedis(ctx context.Context, cfg config.Config, logger *zap.Logger) *redis.Client {
	if cfg.RedisURL == "" {
		return nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warn("redis_url_invalid", zap.Error(err))
		return nil
	}
	rdb := redis.NewClient(opts)
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		logger.Warn("redis_unreachable", zap.Error(err))
		_ = rdb.Close()
		return nil
	}
	logger.Info("redis_connected", zap.String("addr", opts.Addr))
	return rdb
}
