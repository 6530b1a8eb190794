package database

import (
	"context"
	"regexp"
	"testing"

	"terratrack_notifier/internal/domain/user"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userRowColumns = []string{"user_id", "display_name", "email", "notifications_enabled"}

func TestPostgresUserRepository_ListAllPages(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresUserRepository(db)
	repo.pageSize = 2

	listQuery := regexp.QuoteMeta("FROM users WHERE user_id > $1 ORDER BY user_id LIMIT $2")
	mock.ExpectQuery(listQuery).
		WithArgs("", 2).
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow("u1", "Ann", "ann@example.com", true).
			AddRow("u2", nil, nil, false))
	mock.ExpectQuery(listQuery).
		WithArgs("u2", 2).
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow("u3", "Cat", "cat@example.com", true))

	users, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 3)

	assert.Equal(t, "ann@example.com", users[0].ContactAddress)
	assert.Equal(t, "", users[1].DisplayName)
	assert.Equal(t, "", users[1].ContactAddress)
	assert.False(t, users[1].NotificationsEnabled)
	assert.Equal(t, "u3", users[2].UserID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUserRepository_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresUserRepository(db)
	getQuery := regexp.QuoteMeta("FROM users WHERE user_id = $1")

	mock.ExpectQuery(getQuery).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(userRowColumns).AddRow("u1", "Ann", "ann@example.com", true))
	mock.ExpectQuery(getQuery).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(userRowColumns))

	u, err := repo.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ann", u.Greeting())
	assert.True(t, u.Notifiable())

	_, err = repo.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, user.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUserRepository_SetNotificationsEnabled(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresUserRepository(db)
	updateQuery := regexp.QuoteMeta("UPDATE users SET notifications_enabled = $1")

	mock.ExpectExec(updateQuery).
		WithArgs(true, "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(updateQuery).
		WithArgs(false, "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.SetNotificationsEnabled(context.Background(), "u1", true))
	assert.ErrorIs(t, repo.SetNotificationsEnabled(context.Background(), "ghost", false), user.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
