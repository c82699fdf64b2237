package repository

import (
	"context"
	"errors"

	"user-migrator/internal/domain"
)

var (
	// ErrMappingExists is returned when a mapping with the same new id is already recorded.
	ErrMappingExists = errors.New("user mapping already exists")
	// ErrMappingNotFound is returned when no mapping is recorded for a source id.
	ErrMappingNotFound = errors.New("user mapping not found")
)

// SourceUserRepository reads users from the legacy database.
type SourceUserRepository interface {
	List(ctx context.Context) ([]domain.SourceUser, error)
}

// MappingRepository persists the old-to-new id mapping produced by a migration pass.
type MappingRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.MigratedUser) error
	GetByNID(ctx context.Context, nid int64) (*domain.MigratedUser, error)
	Count(ctx context.Context) (int, error)
}
