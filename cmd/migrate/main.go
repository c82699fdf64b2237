package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"user-migrator/internal/client"
	"user-migrator/internal/config"
	"user-migrator/internal/domain"
	"user-migrator/internal/report"
	"user-migrator/internal/repository/mysql"
	"user-migrator/internal/repository/sqlite"
	"user-migrator/internal/service"
	"user-migrator/internal/storage"
)

const (
	exitOK     = 0
	exitFatal  = 1
	exitFailed = 2
)

// errRowsFailed signals a completed pass with per-row failures.
var errRowsFailed = errors.New("some users were not migrated")

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cmd := newRootCmd(logger)
	err := cmd.ExecuteContext(context.Background())
	code := exitCode(err)
	switch code {
	case exitFailed:
		logger.Warn(err)
	case exitFatal:
		logger.Errorf("migrate: %v", err)
	}
	os.Exit(code)
}

// exitCode maps the outcome of a run onto the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errRowsFailed):
		return exitFailed
	default:
		return exitFatal
	}
}

func newRootCmd(logger *logrus.Logger) *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate legacy users into the account service",
		Long: `Migrate every user in the legacy MySQL user table into the account service.

For each legacy user an account is created through POST /local/user and the
returned identity is recorded in a local SQLite file (users.db by default)
together with the legacy numeric id.

Users that already have a recorded mapping are skipped, so an interrupted
run can simply be started again.

Configuration comes from MIGRATE_* environment variables, an optional .env
file, an optional config file and the flags below.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringVar(&configFile, "config", "", "config file (default ./config.{yaml,json,toml} if present)")
	cmd.Flags().Bool("dry-run", false, "list users that would be migrated without calling the account service")
	cmd.Flags().Bool("stop-on-error", false, "abort at the first user that cannot be migrated")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(config.Options{
			File: configFile,
			Flags: map[string]*pflag.Flag{
				"migration.dryrun":      cmd.Flags().Lookup("dry-run"),
				"migration.stoponerror": cmd.Flags().Lookup("stop-on-error"),
			},
		})
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		level, err := logrus.ParseLevel(cfg.Log.Level)
		if err != nil {
			return fmt.Errorf("parse log level: %w", err)
		}
		logger.SetLevel(level)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return run(ctx, cfg, logger)
	}

	return cmd
}

func run(ctx context.Context, cfg config.Config, logger *logrus.Logger) error {
	db, err := sqlite.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open local store: %w", err)
	}
	defer db.Close()

	mappings := sqlite.NewMappingRepository(db)
	if err := mappings.Init(ctx); err != nil {
		return fmt.Errorf("init local store: %w", err)
	}

	sourceDB, err := mysql.Open(ctx, mysql.Options{
		Host:     cfg.Source.Host,
		Port:     cfg.Source.Port,
		User:     cfg.Source.User,
		Password: cfg.Source.Password,
		Database: cfg.Source.Database,
		Timeout:  cfg.Source.Timeout,
	})
	if err != nil {
		return fmt.Errorf("open source database: %w", err)
	}
	defer sourceDB.Close()

	accounts := client.NewAccountClient(client.Config{
		BaseURL:     cfg.Target.BaseURL,
		Timeout:     cfg.Target.Timeout,
		MaxAttempts: cfg.Target.MaxAttempts,
		Backoff:     cfg.Target.Backoff,
		MaxBackoff:  cfg.Target.MaxBackoff,
		Logger:      logger,
	})

	migrations := service.NewMigrationService(
		mysql.NewUserRepository(sourceDB),
		mappings,
		accounts,
		cfg.Target.Password,
		logger,
	)

	publisher, err := buildPublisher(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("setup report publisher: %w", err)
	}

	logger.Infof("migrating users from %s/%s into %s", cfg.Source.Host, cfg.Source.Database, cfg.Target.BaseURL)
	return migrate(ctx, migrations, publisher, service.MigrationOptions{
		DryRun:      cfg.Migration.DryRun,
		StopOnError: cfg.Migration.StopOnError,
	}, logger)
}

// migrate runs one pass, publishes its summary and reports per-row failures as errRowsFailed.
func migrate(ctx context.Context, migrations service.MigrationService, publisher report.Publisher, opts service.MigrationOptions, logger *logrus.Logger) error {
	summary, runErr := migrations.Run(ctx, opts)

	if summary != nil {
		publishSummary(context.WithoutCancel(ctx), publisher, summary, logger)
	}
	if runErr != nil {
		return runErr
	}
	if !summary.Succeeded() {
		return fmt.Errorf("%w: %d of %d failed", errRowsFailed, summary.Failed, summary.Total)
	}
	return nil
}

func publishSummary(ctx context.Context, publisher report.Publisher, summary *domain.Summary, logger *logrus.Logger) {
	location, err := publisher.Publish(ctx, summary)
	if err != nil {
		logger.Warnf("publish run summary: %v", err)
		return
	}
	if location != "" {
		logger.Infof("run summary written to %s", location)
	}
}

func buildPublisher(ctx context.Context, cfg config.Config, logger *logrus.Logger) (report.Publisher, error) {
	if cfg.Report.Bucket == "" {
		return report.NewLogPublisher(logger), nil
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Report.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Report.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Report.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("using s3 bucket %s (region %s) for run summaries", cfg.Report.Bucket, cfg.Report.Region)
	return report.NewStoragePublisher(storage.NewS3Service(s3Client), cfg.Report.Bucket, cfg.Report.Prefix), nil
}
