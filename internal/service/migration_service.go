package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"user-migrator/internal/client"
	"user-migrator/internal/domain"
	"user-migrator/internal/repository"
)

// ErrRowFailed is returned when StopOnError is set and a row could not be migrated.
var ErrRowFailed = errors.New("migration stopped on failed row")

// MigrationOptions tunes a single migration pass.
type MigrationOptions struct {
	// DryRun reads the source and checks the mapping without calling the account service or writing.
	DryRun bool
	// StopOnError aborts the pass at the first failed row instead of recording it and moving on.
	StopOnError bool
}

// MigrationService runs migration passes.
type MigrationService interface {
	Run(ctx context.Context, opts MigrationOptions) (*domain.Summary, error)
}

type migrationService struct {
	source   repository.SourceUserRepository
	mappings repository.MappingRepository
	accounts client.AccountService
	password string
	logger   logrus.FieldLogger
	now      func() time.Time
}

func NewMigrationService(
	source repository.SourceUserRepository,
	mappings repository.MappingRepository,
	accounts client.AccountService,
	password string,
	logger logrus.FieldLogger,
) MigrationService {
	if password == "" {
		password = domain.PlaceholderPassword
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &migrationService{
		source:   source,
		mappings: mappings,
		accounts: accounts,
		password: password,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run reads every source user and migrates the ones without a recorded mapping, in source order.
// The returned summary is non-nil even when err is set.
func (s *migrationService) Run(ctx context.Context, opts MigrationOptions) (*domain.Summary, error) {
	summary := &domain.Summary{
		RunID:     uuid.NewString(),
		StartedAt: s.now(),
		DryRun:    opts.DryRun,
	}
	log := s.logger.WithField("run_id", summary.RunID)
	defer func() { summary.FinishedAt = s.now() }()

	users, err := s.source.List(ctx)
	if err != nil {
		return summary, fmt.Errorf("read source users: %w", err)
	}
	summary.Total = len(users)
	log.Infof("read %d source users", len(users))

	for _, src := range users {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		rowLog := log.WithFields(logrus.Fields{"nid": src.ID, "email": src.Email})

		existing, err := s.mappings.GetByNID(ctx, src.ID)
		switch {
		case err == nil:
			summary.Skipped++
			rowLog.WithField("id", existing.ID).Info("already migrated, skipping")
			continue
		case !errors.Is(err, repository.ErrMappingNotFound):
			return summary, fmt.Errorf("lookup mapping for %d: %w", src.ID, err)
		}

		if opts.DryRun {
			summary.WouldMigrate++
			rowLog.Info("would migrate")
			continue
		}

		if err := s.migrate(ctx, src, rowLog); err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			if !isRowError(err) {
				return summary, err
			}
			summary.RecordFailure(src, err)
			rowLog.Errorf("migrate user: %v", err)
			if opts.StopOnError {
				return summary, fmt.Errorf("%w: nid %d: %v", ErrRowFailed, src.ID, err)
			}
			continue
		}
		summary.Migrated++
	}

	log.WithFields(logrus.Fields{
		"dry_run":       summary.DryRun,
		"total":         summary.Total,
		"migrated":      summary.Migrated,
		"would_migrate": summary.WouldMigrate,
		"skipped":       summary.Skipped,
		"failed":        summary.Failed,
	}).Info("migration pass finished")
	return summary, nil
}

func (s *migrationService) migrate(ctx context.Context, src domain.SourceUser, log logrus.FieldLogger) error {
	created, err := s.accounts.CreateUser(ctx, domain.NewCreateUserRequest(src, s.password))
	if err != nil {
		return &rowError{err: err}
	}

	if created.Handle != src.Username {
		log.WithFields(logrus.Fields{
			"source_username": src.Username,
			"handle":          created.Handle,
		}).Warn("account service changed the handle; recording the returned value")
	}

	user := domain.NewMigratedUser(src, created, s.password)
	if err := s.mappings.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrMappingExists) {
			return &rowError{err: err}
		}
		return fmt.Errorf("record mapping for %d: %w", src.ID, err)
	}

	log.WithFields(logrus.Fields{
		"id":        user.ID,
		"handle":    created.Handle,
		"publicKey": user.PublicKey,
	}).Info("migrated user")
	return nil
}

// rowError marks failures confined to a single row; anything else ends the pass.
type rowError struct {
	err error
}

func (e *rowError) Error() string { return e.err.Error() }
func (e *rowError) Unwrap() error { return e.err }

func isRowError(err error) bool {
	var re *rowError
	return errors.As(err, &re)
}
