package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	v1 "wecom_ops/api/v1"
	"wecom_ops/internal/audit"
	"wecom_ops/internal/auth"
	"wecom_ops/internal/cache"
	"wecom_ops/internal/config"
	"wecom_ops/internal/db"
	"wecom_ops/internal/mass"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func main() {
	configPath := flag.String("config", "", "optional INI config file (environment overrides it)")
	addOperator := flag.String("add-operator", "", "create or reset an operator as user:password[:role] and exit")
	flag.Parse()

	// 1. Load configuration
	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFromINI(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	logger := newLogger(cfg.Log)
	logger.Info("Configuration loaded")

	// 2. Initialize MySQL
	gdb, err := db.OpenMySQL(cfg.MySQL.DSN)
	if err != nil {
		logger.Fatalf("Failed to initialize MySQL: %v", err)
	}
	defer db.Close(gdb)

	if cfg.Migrate {
		if err := db.Migrate(gdb, logger.WithField("component", "migrate")); err != nil {
			logger.Fatalf("Failed to migrate: %v", err)
		}
	}

	if *addOperator != "" {
		if err := upsertOperator(gdb, *addOperator); err != nil {
			logger.Fatalf("Failed to add operator: %v", err)
		}
		logger.Info("Operator saved")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Initialize Redis
	var store *cache.Store
	if cfg.Redis.Enabled {
		rdb, err := cache.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatalf("Failed to initialize Redis: %v", err)
		}
		defer rdb.Close()
		store = cache.NewStore(rdb, "wecom_ops")
	} else {
		logger.Warn("Redis disabled: estimate cache and idempotency keys are off")
	}

	// 4. Services
	svc := mass.NewService(gdb, mass.Options{
		DefaultBatchSize:   cfg.Mass.DefaultBatchSize,
		DefaultQPSLimit:    cfg.Mass.DefaultQPSLimit,
		DefaultConcurrency: cfg.Mass.DefaultConcurrency,
		DefaultTargetLimit: cfg.Mass.DefaultTargetLimit,
		InsertChunkSize:    cfg.Mass.InsertChunkSize,
	}, logger)

	var estimateCache mass.Cache
	if store != nil {
		estimateCache = store
	}
	estimator := mass.NewEstimator(svc.Resolver(), estimateCache,
		time.Duration(cfg.Estimate.CacheTTLSec)*time.Second, logger)

	var tokens *auth.TokenIssuer
	if cfg.JWT.Secret != "" {
		tokens, err = auth.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.Issuer,
			time.Duration(cfg.JWT.ExpireMinutes)*time.Minute)
		if err != nil {
			logger.Fatalf("Failed to initialize JWT: %v", err)
		}
	} else {
		logger.Warn("JWT_SECRET empty: operator authentication disabled")
	}

	if cfg.Executor.Enabled {
		interval := time.Duration(cfg.Executor.IntervalSec) * time.Second
		go mass.NewExecutor(svc, interval, logger).RunLoop(ctx)
	}

	// 5. Initialize Gin router
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	v1.SetupRouter(r, v1.Deps{
		DB:        gdb,
		Logger:    logger,
		Mass:      svc,
		Estimator: estimator,
		Audit:     audit.NewRecorder(gdb, logger),
		Cache:     store,
		Tokens:    tokens,
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.WithField("addr", cfg.HTTPAddr).Info("Server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("Failed to start server: %v", err)
	}
	logger.Info("Server stopped")
}

func newLogger(cfg config.LogConfig) *logrus.Entry {
	l := logrus.StandardLogger()
	if strings.EqualFold(cfg.Format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)
	return logrus.NewEntry(l).WithField("app", "wecom_ops")
}

func upsertOperator(gdb *gorm.DB, spec string) error {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) < 2 {
		return errors.New("expected user:password[:role]")
	}
	role := ""
	if len(parts) == 3 {
		role = parts[2]
	}
	_, err := auth.UpsertOperator(context.Background(), gdb, parts[0], parts[1], role)
	return err
}
