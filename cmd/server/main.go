package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/AnshRaj112/usedgoods-backend/internal/config"
	"github.com/AnshRaj112/usedgoods-backend/internal/database"
	"github.com/AnshRaj112/usedgoods-backend/internal/handlers"
	"github.com/AnshRaj112/usedgoods-backend/internal/middleware"
	"github.com/AnshRaj112/usedgoods-backend/internal/routes"
	"github.com/AnshRaj112/usedgoods-backend/internal/services"
)

const (
	shutdownTimeout = 30 * time.Second

	sessionSweepInterval = time.Hour
	attemptPruneInterval = 24 * time.Hour
	limiterSweepInterval = 5 * time.Minute
)

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	logger, err := newLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if envErr != nil {
		logger.Info("No .env file found")
	}
	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	if cfg.IsProduction() && cfg.JWTSecret == "your-secret-key-change-in-production" {
		return errors.New("JWT_SECRET must be set in production")
	}
	if cfg.CSRFEnabled && cfg.SessionSecret == "" {
		return errors.New("SESSION_SECRET is required when CSRF_ENABLED is true")
	}

	logger.Info("Connecting to database...", zap.String("driver", cfg.DBDriver))
	db, err := database.Connect(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	var redisClient *redis.Client
	var rateStore middleware.Store
	memStore := middleware.NewMemoryStore()
	if cfg.RedisURI != "" {
		logger.Info("Connecting to Redis...")
		redisClient, err = database.ConnectRedis(cfg.RedisURI, logger)
		if err != nil {
			logger.Warn("⚠️  Redis unavailable, using in-memory rate limits and no listing cache", zap.Error(err))
		}
	}
	if redisClient != nil {
		defer redisClient.Close()
		rateStore = middleware.NewRedisStore(redisClient)
	} else {
		rateStore = memStore
	}

	var history services.SearchRecorder = services.NewSQLSearchHistory(db)
	var mongoDB *mongo.Database
	if cfg.MongoURI != "" {
		mongoDB, err = database.ConnectMongo(cfg.MongoURI, logger)
		if err != nil {
			logger.Warn("⚠️  MongoDB unavailable, search history stays in SQL", zap.Error(err))
		}
	}
	if mongoDB != nil {
		defer database.DisconnectMongo(mongoDB)
		mh := services.NewMongoSearchHistory(mongoDB)
		if err := mh.EnsureIndexes(context.Background()); err != nil {
			logger.Warn("⚠️  failed to ensure MongoDB search history indexes", zap.Error(err))
		} else {
			logger.Info("✅ MongoDB search history indexes ensured")
		}
		history = mh
	}

	var images services.ImageStore
	serveUploads := false
	if cfg.CloudinaryEnabled() {
		cld, err := services.NewCloudinaryService(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, "usedgoods/products")
		if err != nil {
			logger.Warn("Failed to initialize Cloudinary, storing uploads on disk", zap.Error(err))
		} else {
			images = cld
			logger.Info("✅ Cloudinary service initialized")
		}
	}
	if images == nil {
		images = services.NewLocalImageStore(cfg.UploadDir, "/uploads")
		serveUploads = true
		logger.Info("Storing uploads on disk", zap.String("dir", cfg.UploadDir))
	}

	sessions := services.NewSessionService(db)
	tokens := services.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpiresIn)
	users := services.NewUserService(db, sessions, logger, cfg.BcryptCost, cfg.RequireEmailVerification)
	attempts := services.NewLoginAttemptService(db, logger, cfg.MaxLoginAttempts, cfg.LoginAttemptWindow, cfg.LoginAttemptRetention)
	cache := services.NewCacheService(redisClient, cfg.ListingCacheTTL)
	uploadLimiter := routes.NewUploadLimiter()

	h := handlers.New(handlers.Deps{
		Config:   cfg,
		Logger:   logger,
		DB:       db,
		Redis:    redisClient,
		Tokens:   tokens,
		Users:    users,
		Sessions: sessions,
		Attempts: attempts,
		Products: services.NewProductService(db, cache, logger),
		Cart:     services.NewCartService(db),
		History:  history,
		Images:   images,
		Uploads:  services.UploadPolicy{AllowedTypes: cfg.AllowedFileTypes, MaxFileSize: cfg.MaxFileSize},
	})

	router := routes.NewRouter(routes.Dependencies{
		Config:        cfg,
		Logger:        logger,
		Handler:       h,
		Auth:          middleware.NewAuthenticator(tokens, sessions, users, logger),
		Attempts:      attempts,
		RateStore:     rateStore,
		UploadLimiter: uploadLimiter,
		ServeUploads:  serveUploads,
	})

	janitor := services.NewJanitor(logger)
	janitor.Add("session-sweep", sessionSweepInterval, func(ctx context.Context) error {
		n, err := sessions.DeleteExpired(ctx)
		if err == nil && n > 0 {
			logger.Info("expired sessions removed", zap.Int64("count", n))
		}
		return err
	})
	janitor.Add("login-attempt-prune", attemptPruneInterval, func(ctx context.Context) error {
		_, err := attempts.Prune(ctx)
		return err
	})
	janitor.Add("rate-limit-sweep", limiterSweepInterval, memStore.Sweep)
	janitor.Add("upload-limiter-sweep", limiterSweepInterval, uploadLimiter.Sweep)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("🚀 Marketplace backend running", zap.String("port", cfg.Port), zap.String("env", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return janitor.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		janitor.Stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown timed out, forcing close", zap.Error(err))
			return srv.Close()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}
