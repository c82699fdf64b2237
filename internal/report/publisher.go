package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/sirupsen/logrus"

	"user-migrator/internal/domain"
	"user-migrator/internal/storage"
)

// Publisher makes a run summary available after a migration pass.
type Publisher interface {
	Publish(ctx context.Context, summary *domain.Summary) (string, error)
}

// StoragePublisher writes the summary as JSON into object storage.
type StoragePublisher struct {
	store  storage.Service
	bucket string
	prefix string
}

func NewStoragePublisher(store storage.Service, bucket, prefix string) *StoragePublisher {
	return &StoragePublisher{
		store:  store,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

func (p *StoragePublisher) Publish(ctx context.Context, summary *domain.Summary) (string, error) {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode summary: %w", err)
	}

	location, err := p.store.Upload(ctx, bytes.NewReader(data), storage.UploadOptions{
		Bucket:      p.bucket,
		Key:         Key(p.prefix, summary),
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("publish summary: %w", err)
	}
	return location, nil
}

// Key is the object key a summary is stored under.
func Key(prefix string, summary *domain.Summary) string {
	name := summary.RunID + ".json"
	if summary.DryRun {
		name = summary.RunID + ".dry-run.json"
	}
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// LogPublisher only logs the summary.
type LogPublisher struct {
	logger logrus.FieldLogger
}

func NewLogPublisher(logger logrus.FieldLogger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, summary *domain.Summary) (string, error) {
	for _, f := range summary.Failures {
		p.logger.WithFields(logrus.Fields{
			"run_id": summary.RunID,
			"nid":    f.NID,
			"email":  f.Email,
		}).Warnf("failed: %s", f.Reason)
	}
	fields := logrus.Fields{
		"run_id":   summary.RunID,
		"dry_run":  summary.DryRun,
		"total":    summary.Total,
		"migrated": summary.Migrated,
		"skipped":  summary.Skipped,
		"failed":   summary.Failed,
		"duration": summary.FinishedAt.Sub(summary.StartedAt),
	}
	if summary.DryRun {
		fields["would_migrate"] = summary.WouldMigrate
	}
	p.logger.WithFields(fields).Info("run summary")
	return "", nil
}

var (
	_ Publisher = (*StoragePublisher)(nil)
	_ Publisher = (*LogPublisher)(nil)
)
