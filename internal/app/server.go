// internal/app/server.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"edu-ledger-service/internal/config"
	"edu-ledger-service/internal/db"
	"edu-ledger-service/internal/domain/entitlement"
	"edu-ledger-service/internal/domain/pricing"
	"edu-ledger-service/internal/domain/voucher"
	entitlementHandler "edu-ledger-service/internal/handlers/entitlement"
	pricingHandler "edu-ledger-service/internal/handlers/pricing"
	voucherHandler "edu-ledger-service/internal/handlers/voucher"
	"edu-ledger-service/internal/middleware"
	"edu-ledger-service/internal/pkg/jwt"
	"edu-ledger-service/internal/pkg/ratelimit"
	"edu-ledger-service/internal/repository/memory"
	"edu-ledger-service/internal/repository/postgres"
	redisrepo "edu-ledger-service/internal/repository/redis"
	entitlementsvc "edu-ledger-service/internal/service/entitlement"
	pricingsvc "edu-ledger-service/internal/service/pricing"
	vouchersvc "edu-ledger-service/internal/service/voucher"
	"edu-ledger-service/migrations"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Stores bundles the persistence collaborators the ledger writes through.
type Stores struct {
	Users   entitlement.Repository
	Codes   voucher.Repository
	Plans   pricing.Repository
	Cache   pricing.Cache
	Limiter vouchersvc.AttemptLimiter
}

type Server struct {
	cfg     config.AppConfig
	logger  *zap.Logger
	http    *http.Server
	closers []func()
}

func NewServer() *Server {
	cfg := config.Load()
	logger, _ := zap.NewProduction()
	return &Server{cfg: cfg, logger: logger}
}

func (s *Server) Start() error {
	ctx := context.Background()

	stores, err := s.buildStores()
	if err != nil {
		return err
	}

	// ----- JWT Verifier -----
	verifier, err := jwt.LoadVerifier(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to load JWT verifier: %w", err)
	}

	engine, pricingService := NewEngine(s.cfg, s.logger, stores, verifier)

	// The price table may be empty on a fresh deployment.
	if err := pricingService.SyncCache(ctx); err != nil {
		s.logger.Warn("initial pricing cache sync failed", zap.Error(err))
	}

	s.http = &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("server running",
		zap.String("addr", s.cfg.HTTPAddr),
		zap.String("store", s.cfg.StoreDriver),
		zap.Bool("redis", s.cfg.RedisEnabled),
	)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains HTTP traffic and closes the storage clients.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.http != nil {
		err = s.http.Shutdown(ctx)
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	_ = s.logger.Sync()
	return err
}

func (s *Server) buildStores() (Stores, error) {
	var stores Stores

	// ----- Redis -----
	var redisClient *redis.Client
	if s.cfg.RedisEnabled {
		client, err := db.NewRedisClient(db.RedisConfig{
			Address:  s.cfg.RedisAddr,
			Password: s.cfg.RedisPass,
			DB:       0,
			PoolSize: 10,
		})
		if err != nil {
			return stores, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		redisClient = client
		s.closers = append(s.closers, func() { _ = client.Close() })
		s.logger.Info("connected to Redis", zap.String("addr", s.cfg.RedisAddr))
	}

	// ----- Repositories -----
	switch s.cfg.StoreDriver {
	case "memory":
		store := memory.NewStore()
		stores.Users, stores.Codes, stores.Plans, stores.Cache = store, store, store, store.PricingCache()
		s.logger.Warn("using in-memory store, data is lost on restart")

	case "postgres":
		pool, err := db.ConnectDB(s.cfg.DatabaseURL)
		if err != nil {
			return stores, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		s.closers = append(s.closers, pool.Close)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = migrations.Apply(ctx, pool)
		cancel()
		if err != nil {
			return stores, err
		}

		dbWrapper := postgres.NewDB(pool)
		stores.Users = postgres.NewUserRepository(pool, dbWrapper)
		stores.Codes = postgres.NewGiftCodeRepository(pool, dbWrapper)
		stores.Plans = postgres.NewPricingRepository(pool, dbWrapper)
		stores.Cache = postgres.NewPricingCacheRepository(pool, dbWrapper)

	default:
		return stores, fmt.Errorf("unknown STORE_DRIVER %q", s.cfg.StoreDriver)
	}

	// ----- Pricing cache & rate limiter -----
	limit := ratelimit.Limit{Attempts: s.cfg.RedeemAttemptsPerWindow, Window: s.cfg.RedeemWindow}
	if redisClient != nil {
		stores.Cache = redisrepo.NewPricingCache(redisClient)
		stores.Limiter = ratelimit.NewRedisLimiter(redisClient, "redeem", limit)
	} else {
		stores.Limiter = ratelimit.NewMemoryLimiter(limit)
	}

	return stores, nil
}

// NewEngine wires services, handlers and routes over the given stores.
func NewEngine(cfg config.AppConfig, logger *zap.Logger, stores Stores, verifier middleware.TokenVerifier) (*gin.Engine, *pricingsvc.PricingService) {
	// ----- Services -----
	pricingService := pricingsvc.NewPricingService(stores.Plans, stores.Cache, logger)
	granter := entitlementsvc.NewGranter(stores.Users, pricingService, entitlementsvc.GranterConfig{
		MaxAttempts:  cfg.WriteMaxAttempts,
		DefaultPrice: cfg.DefaultPlanPrice,
	}, logger)
	generator := vouchersvc.NewGenerator(stores.Codes, vouchersvc.GeneratorConfig{
		CodeLength: cfg.VoucherCodeLength,
		MaxBatch:   cfg.VoucherMaxBatch,
	}, logger)
	redemptionService := vouchersvc.NewRedemptionService(
		stores.Codes,
		stores.Users,
		granter,
		stores.Limiter,
		cfg.WriteMaxAttempts,
		logger,
	)

	// ----- Handlers -----
	handlers := &Handlers{
		EntitlementHandler: entitlementHandler.NewEntitlementHandler(granter),
		VoucherHandler:     voucherHandler.NewVoucherHandler(generator, redemptionService),
		PricingHandler:     pricingHandler.NewPricingHandler(pricingService),
		AuthMiddleware:     middleware.NewAuthMiddleware(verifier),
	}

	// ----- Middlewares -----
	engine := gin.New()
	engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(),
	)

	SetupRouter(engine, logger, handlers)
	return engine, pricingService
}
