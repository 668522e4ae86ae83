package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	apperrors "listing-service/common/errors"
	"listing-service/common/logger"
	"listing-service/common/middleware"
	"listing-service/controllers"
	"listing-service/database"
	"listing-service/images"
	awspkg "listing-service/pkg/aws"
	"listing-service/pkg/gitstore"
	"listing-service/repository"
	"listing-service/routes"
	"listing-service/services"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const serviceName = "listing-service"

func main() {
	// Load .env file (optional, falls back to system env)
	_ = godotenv.Load()

	log, err := logger.Initialize(getEnv("APP_ENV", "development"))
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	ctx := context.Background()

	cfg, err := LoadConfig(ctx)
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(ctx, cfg, os.Args[2:]); err != nil {
			zap.L().Fatal("Migration failed", zap.Error(err))
		}
		return
	}

	// --- 1. Initialization ---

	var awsCfg sdkaws.Config
	if cfg.NeedsAWS() {
		zap.L().Info("AWS Configuration",
			zap.String("AWS_ENDPOINT", cfg.AWSEndpoint),
			zap.String("AWS_S3_ENDPOINT", cfg.AWSS3Endpoint),
			zap.String("AWS_REGION", cfg.AWSRegion),
		)
		if awsCfg, err = awspkg.LoadAWSConfig(ctx, cfg.AWSOptions()); err != nil {
			zap.L().Fatal("Failed to load AWS config", zap.Error(err))
		}
	}

	if cfg.CloudWatchEnabled {
		cwLogs, err := awspkg.NewCloudWatchLogsClient(ctx, awsCfg, "/"+serviceName, serviceName, true)
		if err != nil {
			zap.L().Warn("CloudWatch Logs unavailable, logging locally only", zap.Error(err))
		} else if log, err = logger.InitializeWithWriter(cfg.Env, cwLogs); err != nil {
			zap.L().Fatal("Failed to initialize logger", zap.Error(err))
		}
	}
	metricsClient := awspkg.NewMetricsClient(awsCfg, "ListingService", cfg.CloudWatchEnabled)

	redisClient, err := database.NewRedisClient(cfg.RedisURL)
	if err != nil {
		zap.L().Warn("Listing cache disabled", zap.Error(err))
	}

	var gitClient *gitstore.Client
	if cfg.StorageBackend == BackendGitHub || cfg.ImageBackend == BackendGitHub {
		gitClient = gitstore.NewClient(nil, cfg.GitHubToken, cfg.GitHubOwner, cfg.GitHubRepo, cfg.GitHubBranch)
	}

	// --- 2. Dependency Injection (Wiring the layers together) ---

	repo, closeRepo, err := buildRepository(ctx, cfg, awsCfg, gitClient)
	if err != nil {
		zap.L().Fatal("Failed to initialize listing storage", zap.Error(err))
	}
	if err := repo.EnsureIndexes(ctx); err != nil {
		zap.L().Warn("Failed to ensure listing indexes", zap.Error(err))
	}

	imageStore := buildImageStore(cfg, awsCfg, gitClient)

	opts := []services.Option{}
	if cfg.CloudWatchEnabled {
		opts = append(opts, services.WithMetrics(metricsClient))
	}
	if cfg.SNSTopicARN != "" {
		publisher := services.NewSNSEventPublisher(awspkg.NewSNSClient(awsCfg), cfg.SNSTopicARN)
		opts = append(opts, services.WithEvents(publisher))
	}
	listingService := services.NewListingService(repo, imageStore, cfg.StorageBackend, opts...)

	listingController := controllers.NewListingController(listingService, redisClient)
	healthController := controllers.NewHealthController(listingService)

	// --- 3. HTTP Server & Middleware ---

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(apperrors.ErrorMiddleware())
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error(c, "Panic recovered", fmt.Errorf("%v", recovered))
		apperrors.Respond(c, apperrors.Internal("Internal server error", nil))
	}))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.MetricsMiddleware(metricsClient, serviceName))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middleware.RateLimitMiddleware(cfg.RateLimitPerMinute, cfg.RateLimitBurst))

	// Add request timeout middleware
	r.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), controllers.DefaultContextTimeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	// --- 4. Route Registration ---

	routes.RegisterRoutes(r, listingController, healthController, cfg.StaticDir)

	// --- 5. Graceful Shutdown ---

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		zap.L().Info("Listing Service starting",
			zap.String("port", cfg.Port),
			zap.String("storage", cfg.StorageBackend),
			zap.String("images", imageStore.Name()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for an interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.L().Info("Shutting down Listing Service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("Server forced to shutdown", zap.Error(err))
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			zap.L().Error("Failed to close Redis", zap.Error(err))
		}
	}
	if err := closeRepo(); err != nil {
		zap.L().Error("Failed to close listing storage", zap.Error(err))
	}

	zap.L().Info("Listing Service stopped gracefully")
}

// buildRepository opens the configured listing storage. The returned func
// releases its connections.
func buildRepository(ctx context.Context, cfg *Config, awsCfg sdkaws.Config, gitClient *gitstore.Client) (repository.ListingRepo, func() error, error) {
	noop := func() error { return nil }

	switch cfg.StorageBackend {
	case BackendMongo:
		m, err := database.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, noop, err
		}
		return repository.NewMongoRepository(m.DB), m.Close, nil
	case BackendDynamo:
		client := awspkg.NewDynamoDBClient(awsCfg)
		return repository.NewDynamoAdapter(client, cfg.DynamoTable), noop, nil
	case BackendGitHub:
		return repository.NewGitHubFileRepository(gitClient, cfg.GitHubDataPath), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func buildImageStore(cfg *Config, awsCfg sdkaws.Config, gitClient *gitstore.Client) images.Store {
	if cfg.ImageBackend == BackendGitHub {
		return images.NewGitHubStore(gitClient, cfg.GitHubImageDir)
	}
	s3Client := awspkg.NewS3Client(awsCfg, cfg.AWSS3Endpoint)
	return images.NewS3Store(s3Client, cfg.S3Bucket, cfg.S3Prefix, cfg.AWSS3Endpoint, cfg.CloudFrontDomain)
}
