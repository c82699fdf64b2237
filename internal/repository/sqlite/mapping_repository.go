package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"user-migrator/internal/domain"
	"user-migrator/internal/repository"
)

const createUserTable = `
CREATE TABLE IF NOT EXISTS user (
	id TEXT PRIMARY KEY,
	nid NUMBER,
	email TEXT,
	username TEXT,
	password TEXT,
	publicKey TEXT
);
CREATE INDEX IF NOT EXISTS idx_user_nid ON user(nid);
`

type MappingRepository struct {
	db *sql.DB
}

func NewMappingRepository(db *sql.DB) repository.MappingRepository {
	return &MappingRepository{db: db}
}

func (r *MappingRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createUserTable); err != nil {
		return fmt.Errorf("create user table: %w", err)
	}
	return nil
}

// Create inserts one mapping row. The statement runs outside an explicit
// transaction so every row is committed on its own.
func (r *MappingRepository) Create(ctx context.Context, user *domain.MigratedUser) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO user (id, nid, email, username, password, publicKey)
VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.NID,
		user.Email,
		user.Username,
		user.Password,
		user.PublicKey,
	)
	if err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "unique") || strings.Contains(msg, "primary key") {
			return fmt.Errorf("%w: id %s: %v", repository.ErrMappingExists, user.ID, err)
		}
		return fmt.Errorf("insert user mapping: %w", err)
	}
	return nil
}

func (r *MappingRepository) GetByNID(ctx context.Context, nid int64) (*domain.MigratedUser, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, nid, email, username, password, publicKey
FROM user
WHERE nid = ?
LIMIT 1`,
		nid,
	)
	return scanMigratedUser(row)
}

func (r *MappingRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count user mappings: %w", err)
	}
	return n, nil
}

func scanMigratedUser(row interface {
	Scan(dest ...any) error
}) (*domain.MigratedUser, error) {
	var (
		user                                 domain.MigratedUser
		email, username, password, publicKey sql.NullString
	)
	if err := row.Scan(
		&user.ID,
		&user.NID,
		&email,
		&username,
		&password,
		&publicKey,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrMappingNotFound
		}
		return nil, fmt.Errorf("scan user mapping: %w", err)
	}
	user.Email = email.String
	user.Username = username.String
	user.Password = password.String
	user.PublicKey = publicKey.String
	return &user, nil
}
