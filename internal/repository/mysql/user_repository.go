package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"user-migrator/internal/domain"
	"user-migrator/internal/repository"
)

const listUsersQuery = `SELECT id, email, username FROM user`

type sourceUserRow struct {
	ID       int64          `db:"id"`
	Email    sql.NullString `db:"email"`
	Username sql.NullString `db:"username"`
}

type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) repository.SourceUserRepository {
	return &UserRepository{db: db}
}

// List loads every legacy user into memory, in whatever order the server returns them.
func (r *UserRepository) List(ctx context.Context) ([]domain.SourceUser, error) {
	var rows []sourceUserRow
	if err := r.db.SelectContext(ctx, &rows, listUsersQuery); err != nil {
		return nil, fmt.Errorf("list source users: %w", err)
	}

	users := make([]domain.SourceUser, 0, len(rows))
	for _, row := range rows {
		users = append(users, domain.SourceUser{
			ID:       row.ID,
			Email:    row.Email.String,
			Username: row.Username.String,
		})
	}
	return users, nil
}
