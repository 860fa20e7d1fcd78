package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/marketgrid/credential-service/internal/core/port"
	"github.com/marketgrid/credential-service/internal/infra/config"
	"github.com/marketgrid/credential-service/internal/infra/database"
	kafkainfra "github.com/marketgrid/credential-service/internal/infra/kafka"
	"github.com/marketgrid/credential-service/internal/infra/logger"
	redisinfra "github.com/marketgrid/credential-service/internal/infra/redis"
	"github.com/marketgrid/credential-service/internal/infra/security"
	postgresrepo "github.com/marketgrid/credential-service/internal/repository/postgres"
	redisrepo "github.com/marketgrid/credential-service/internal/repository/redis"
	"github.com/marketgrid/credential-service/internal/transport/http/middleware"
	"github.com/marketgrid/credential-service/internal/transport/http/routes"
	"github.com/marketgrid/credential-service/internal/usecase"
)

type Application struct {
	cfg    *config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	pool   *pgxpool.Pool
	redis  *redisinfra.Client
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool)
	codeStore := redisrepo.NewRecoveryCodeRepository(redisClient.Client(), cfg.Redis.CodePrefix)

	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(kafkaProducer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	delivery := kafkainfra.NewDeliveryDispatcher(eventPublisher, log)

	hasher := security.NewHasher()
	policy := security.NewPolicyEvaluator(log)

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Hour
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: "credential:rate-limit",
		TTL:       rateLimitWindow * 2,
	})
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		_ = redisClient.Close()
		pool.Close()
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	tokenIssuer := usecase.NewTokenIssuer(repos.Tokens, log)
	if cfg.Recovery.TokenTTL > 0 {
		tokenIssuer.WithTTL(cfg.Recovery.TokenTTL)
	}

	smsIssuer := usecase.NewSMSIssuer(codeStore, log)
	if cfg.Recovery.CodeTTL > 0 {
		smsIssuer.WithTTL(cfg.Recovery.CodeTTL)
	}
	if cfg.Recovery.CodeLength > 0 {
		smsIssuer.WithCodeLength(cfg.Recovery.CodeLength)
	}

	loginService := usecase.NewLoginService(repos.Users, hasher, eventPublisher, log)
	credentialService := usecase.NewCredentialService(repos.Users, hasher, policy, eventPublisher, log)
	recoveryService := usecase.NewRecoveryService(cfg, repos.Users, tokenIssuer, smsIssuer, hasher, policy, rateLimitStore, delivery, eventPublisher, log)

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		Metrics:     metrics,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Login:       loginService,
			Credentials: credentialService,
			Recovery:    recoveryService,
			Policy:      policy,
		},
	})

	return &Application{
		cfg:    cfg,
		engine: engine,
		logger: log,
		pool:   pool,
		redis:  redisClient,
	}, nil
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting credential API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}
