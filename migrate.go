package main

import (
	"context"
	"flag"
	"fmt"

	awspkg "listing-service/pkg/aws"
	"listing-service/pkg/gitstore"
	"listing-service/repository"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"go.uber.org/zap"
)

// runMigrate implements "listing-service migrate -from X -to Y": it copies
// the active listings of one storage backend into another.
func runMigrate(ctx context.Context, cfg *Config, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	from := fs.String("from", BackendMongo, "source backend (mongo|dynamo|github)")
	to := fs.String("to", BackendDynamo, "target backend (mongo|dynamo|github)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *from == *to {
		return fmt.Errorf("source and target are both %q", *from)
	}

	src, closeSrc, err := openBackend(ctx, cfg, *from)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer closeSrc()
	dst, closeDst, err := openBackend(ctx, cfg, *to)
	if err != nil {
		return fmt.Errorf("open target: %w", err)
	}
	defer closeDst()

	res, err := repository.CopyListings(ctx, src, dst, func(n int) {
		zap.L().Info("Migrated listings", zap.Int("count", n))
	})
	if err != nil {
		return err
	}
	zap.L().Info("Migration complete",
		zap.String("from", *from),
		zap.String("to", *to),
		zap.Int("migrated", res.Copied),
		zap.Int("failed", res.Failed),
	)
	return nil
}

// openBackend builds the repository for backend using the rest of cfg.
func openBackend(ctx context.Context, cfg *Config, backend string) (repository.ListingRepo, func() error, error) {
	c := *cfg
	c.StorageBackend = backend
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}

	var awsCfg sdkaws.Config
	if backend == BackendDynamo {
		var err error
		if awsCfg, err = awspkg.LoadAWSConfig(ctx, c.AWSOptions()); err != nil {
			return nil, nil, err
		}
	}
	var gitClient *gitstore.Client
	if backend == BackendGitHub {
		gitClient = gitstore.NewClient(nil, c.GitHubToken, c.GitHubOwner, c.GitHubRepo, c.GitHubBranch)
	}
	return buildRepository(ctx, &c, awsCfg, gitClient)
}
