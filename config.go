package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	awspkg "listing-service/pkg/aws"

	"go.uber.org/zap"
)

// Backend names accepted by STORAGE_BACKEND and IMAGE_BACKEND.
const (
	BackendMongo  = "mongo"
	BackendDynamo = "dynamo"
	BackendGitHub = "github"
	BackendS3     = "s3"
)

// Config holds all configuration for the listing service.
type Config struct {
	Port           string
	Env            string
	StorageBackend string
	ImageBackend   string

	MongoURI    string
	MongoDB     string
	DynamoTable string

	AWSRegion          string
	AWSEndpoint        string
	AWSS3Endpoint      string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	S3Bucket           string
	S3Prefix           string
	CloudFrontDomain   string
	SNSTopicARN        string
	CloudWatchEnabled  bool
	UseSecrets         bool
	SecretName         string

	GitHubOwner    string
	GitHubRepo     string
	GitHubBranch   string
	GitHubToken    string
	GitHubDataPath string
	GitHubImageDir string

	RedisURL           string
	StaticDir          string
	AllowedOrigins     string
	RateLimitPerMinute int
	RateLimitBurst     int
}

// secretReader is the Secrets Manager surface LoadConfig needs.
type secretReader interface {
	GetSecretMap(ctx context.Context, name string) (map[string]string, error)
	GetSecret(ctx context.Context, name string) (string, error)
}

// LoadConfig reads configuration from environment variables with optional
// Secrets Manager override, then validates it for the selected backends.
func LoadConfig(ctx context.Context) (*Config, error) {
	cfg := configFromEnv()

	if cfg.UseSecrets {
		awsCfg, err := awspkg.LoadAWSConfig(ctx, cfg.AWSOptions())
		if err != nil {
			zap.L().Warn("Secrets Manager unavailable, using environment", zap.Error(err))
		} else {
			cfg.applySecrets(ctx, awspkg.NewSecretsClient(awsCfg))
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func configFromEnv() *Config {
	storage := strings.ToLower(getEnv("STORAGE_BACKEND", BackendMongo))
	imageDefault := BackendS3
	if storage == BackendGitHub {
		imageDefault = BackendGitHub
	}
	endpoint := os.Getenv("AWS_ENDPOINT")

	return &Config{
		Port:           getEnv("PORT", "5000"),
		Env:            getEnv("APP_ENV", "development"),
		StorageBackend: storage,
		ImageBackend:   strings.ToLower(getEnv("IMAGE_BACKEND", imageDefault)),

		MongoURI:    os.Getenv("MONGO_URI"),
		MongoDB:     getEnv("MONGO_DB", "marketplace"),
		DynamoTable: getEnv("DDB_TABLE_LISTINGS", "Listings"),

		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		AWSEndpoint:        endpoint,
		AWSS3Endpoint:      getEnv("AWS_S3_ENDPOINT", endpoint),
		AWSAccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		S3Bucket:           getEnv("AWS_S3_BUCKET", "listings"),
		S3Prefix:           getEnv("AWS_S3_PREFIX", "listings/"),
		CloudFrontDomain:   os.Getenv("AWS_CLOUDFRONT_DOMAIN"),
		SNSTopicARN:        os.Getenv("LISTING_SNS_TOPIC_ARN"),
		CloudWatchEnabled:  getEnvBool("CLOUDWATCH_ENABLED", false),
		UseSecrets:         getEnvBool("AWS_USE_SECRETS", false),
		SecretName:         getEnv("AWS_SECRET_NAME", "listing-service/config"),

		GitHubOwner:    os.Getenv("GITHUB_OWNER"),
		GitHubRepo:     os.Getenv("GITHUB_REPO"),
		GitHubBranch:   getEnv("GITHUB_BRANCH", "main"),
		GitHubToken:    os.Getenv("GITHUB_TOKEN"),
		GitHubDataPath: getEnv("GITHUB_DATA_PATH", "data/products.json"),
		GitHubImageDir: getEnv("GITHUB_IMAGE_DIR", "images"),

		RedisURL:           os.Getenv("REDIS_URL"),
		StaticDir:          getEnv("STATIC_DIR", "./public"),
		AllowedOrigins:     os.Getenv("ALLOWED_ORIGINS"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 30),
	}
}

// applySecrets overrides credentials with values from Secrets Manager. The
// secret is a JSON object; keys missing from it are looked up as individual
// secrets named "<SecretName>/<KEY>".
func (c *Config) applySecrets(ctx context.Context, sm secretReader) {
	values, err := sm.GetSecretMap(ctx, c.SecretName)
	if err != nil {
		zap.L().Warn("Failed to read config secret", zap.String("secret", c.SecretName), zap.Error(err))
		values = map[string]string{}
	}

	targets := map[string]*string{
		"MONGO_URI":    &c.MongoURI,
		"GITHUB_TOKEN": &c.GitHubToken,
	}
	for key, dst := range targets {
		v := values[key]
		if v == "" {
			if single, err := sm.GetSecret(ctx, c.SecretName+"/"+key); err == nil {
				v = single
			}
		}
		if v != "" {
			*dst = v
		}
	}
}

// AWSOptions maps the config onto the shared AWS loader options.
func (c *Config) AWSOptions() awspkg.Options {
	return awspkg.Options{
		Region:          c.AWSRegion,
		Endpoint:        c.AWSEndpoint,
		AccessKeyID:     c.AWSAccessKeyID,
		SecretAccessKey: c.AWSSecretAccessKey,
	}
}

// NeedsAWS reports whether any configured component talks to AWS.
func (c *Config) NeedsAWS() bool {
	return c.StorageBackend == BackendDynamo || c.ImageBackend == BackendS3 ||
		c.SNSTopicARN != "" || c.CloudWatchEnabled
}

// Validate checks the settings the selected backends depend on.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when STORAGE_BACKEND=%s", BackendMongo)
		}
	case BackendDynamo:
		if c.DynamoTable == "" {
			return fmt.Errorf("DDB_TABLE_LISTINGS is required when STORAGE_BACKEND=%s", BackendDynamo)
		}
	case BackendGitHub:
		if err := c.requireGitHub("STORAGE_BACKEND"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}

	switch c.ImageBackend {
	case BackendS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("AWS_S3_BUCKET is required when IMAGE_BACKEND=%s", BackendS3)
		}
	case BackendGitHub:
		if err := c.requireGitHub("IMAGE_BACKEND"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown IMAGE_BACKEND %q", c.ImageBackend)
	}

	if c.RateLimitPerMinute <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}
	return nil
}

func (c *Config) requireGitHub(setting string) error {
	if c.GitHubOwner == "" || c.GitHubRepo == "" {
		return fmt.Errorf("GITHUB_OWNER and GITHUB_REPO are required when %s=%s", setting, BackendGitHub)
	}
	if c.GitHubToken == "" {
		return fmt.Errorf("GITHUB_TOKEN is required when %s=%s", setting, BackendGitHub)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
