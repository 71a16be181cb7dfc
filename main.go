package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/foodsnap/internal/apperrors"
	"github.com/example/foodsnap/internal/auth"
	"github.com/example/foodsnap/internal/handlers"
	"github.com/example/foodsnap/internal/jobqueue"
	"github.com/example/foodsnap/internal/ownership"
	"github.com/example/foodsnap/internal/recognition"
	"github.com/example/foodsnap/internal/repository"
	"github.com/example/foodsnap/internal/storage"
	"github.com/example/foodsnap/internal/usecase"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	logger, err := newLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	db := initDatabase(ctx, logger)
	repo := repository.NewJobRepository(db, logger)
	if err := repo.AutoMigrate(ctx); err != nil {
		logger.Fatal("auto migrate failed", zap.Error(err))
	}

	redisCtx, redisCancel := context.WithTimeout(ctx, 5*time.Second)
	defer redisCancel()
	redisClient := initRedis(redisCtx, logger)

	owners := ownership.NewRegistry(
		ownership.NewRedisCache(redisClient),
		ownership.DefaultTTL,
		logger,
	)

	blobs, err := storage.NewS3Store(ctx, getEnv("UPLOAD_BUCKET", "foodsnap-uploads"))
	if err != nil {
		logger.Fatal("failed to initialize blob store", zap.Error(err))
	}

	recognizer := recognition.NewClient(recognition.Config{
		BaseURL:        getEnv("RECOGNITION_BASE_URL", "http://recognition:9000"),
		APIKey:         os.Getenv("RECOGNITION_API_KEY"),
		ConnectTimeout: getEnvDuration("RECOGNITION_CONNECT_TIMEOUT", 3*time.Second),
		ReadTimeout:    getEnvDuration("RECOGNITION_READ_TIMEOUT", 60*time.Second),
	}, logger)

	dailyLimit := getEnvInt("DAILY_RECOGNITION_LIMIT", 10)
	uc := usecase.NewRecognitionUseCase(repo, owners, blobs, recognizer, dailyLimit, logger)

	pool := jobqueue.NewPool(
		getEnvInt("WORKER_COUNT", 4),
		getEnvInt("QUEUE_DEPTH", 64),
		uc,
		logger,
	)
	uc.AttachQueue(pool)

	registry := apperrors.NewRegistry(getEnv("DEBUG_ERRORS", "") == "1")

	r := gin.Default()
	r.MaxMultipartMemory = handlers.MaxUploadSize

	jwtSecret := getEnv("JWT_SECRET", "dev-secret")
	jwtAudience := os.Getenv("JWT_AUDIENCE")
	authMiddleware := auth.JWTMiddleware(jwtSecret, jwtAudience)

	handlers.RegisterRoutes(r, uc, registry, authMiddleware)

	server := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	logger.Info("foodsnap API listening", zap.String("addr", ":8080"))
	if err := serveHTTPServer(server, 15*time.Second, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}

	pool.Close()
	logger.Info("worker pool drained, exiting")
}

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	return cfg.Build()
}

func initDatabase(ctx context.Context, zapLogger *zap.Logger) *gorm.DB {
	dsn := getEnv("DATABASE_DSN", "host=postgres user=postgres password=postgres dbname=foodsnap port=5432 sslmode=disable")
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		zapLogger.Fatal("failed to access db handle", zap.Error(err))
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		zapLogger.Fatal("database ping failed", zap.Error(err))
	}

	return db
}

func initRedis(ctx context.Context, zapLogger *zap.Logger) *redis.Client {
	addr := getEnv("REDIS_ADDR", "redis:6379")
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	return client
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
