package mysql

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"user-migrator/internal/domain"
)

func setupMockDB(t *testing.T) (sqlmock.Sqlmock, *UserRepository) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err, "Failed to create mock database")
	t.Cleanup(func() { db.Close() })

	return mock, &UserRepository{db: sqlx.NewDb(db, "mysql")}
}

func TestUserRepository_List_Success(t *testing.T) {
	mock, repo := setupMockDB(t)

	rows := sqlmock.NewRows([]string{"id", "email", "username"}).
		AddRow(int64(42), "a@x.com", "alice").
		AddRow(int64(7), nil, "bob")
	mock.ExpectQuery(listUsersQuery).WillReturnRows(rows)

	users, err := repo.List(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []domain.SourceUser{
		{ID: 42, Email: "a@x.com", Username: "alice"},
		{ID: 7, Email: "", Username: "bob"},
	}, users)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_List_Empty(t *testing.T) {
	mock, repo := setupMockDB(t)

	mock.ExpectQuery(listUsersQuery).WillReturnRows(sqlmock.NewRows([]string{"id", "email", "username"}))

	users, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_List_QueryError(t *testing.T) {
	mock, repo := setupMockDB(t)

	mock.ExpectQuery(listUsersQuery).WillReturnError(errors.New("table user doesn't exist"))

	_, err := repo.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list source users")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOptionsDSN(t *testing.T) {
	opts := Options{
		Host:     "192.168.1.105",
		Port:     3306,
		User:     "john",
		Password: "secret",
		Database: "notthetalk",
		Timeout:  5 * time.Second,
	}

	dsn := opts.DSN()
	assert.True(t, strings.HasPrefix(dsn, "john:secret@tcp(192.168.1.105:3306)/notthetalk"), dsn)
	assert.Contains(t, dsn, "timeout=5s")
}
