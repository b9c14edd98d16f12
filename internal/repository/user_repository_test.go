package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-enrollment-api/internal/models"
)

var accountColumns = []string{"id", "email", "password_hash", "full_name", "role", "active", "year_of_study", "advisor_id", "last_login", "created_at", "updated_at"}

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func TestUserRepositoryFindByEmailJoinsStudentProfile(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN students s ON s.id = u.id WHERE lower(u.email) = $1 LIMIT 1")).
		WithArgs("ana@uni.test").
		WillReturnRows(sqlmock.NewRows(accountColumns).
			AddRow("S", "Ana@Uni.test", "hash", "Ana Silva", string(models.RoleStudent), true, 3, "A", nil, now, now))

	user, err := repo.FindByEmail(context.Background(), "  ANA@uni.test ")
	require.NoError(t, err)
	require.NotNil(t, user.YearOfStudy)
	assert.Equal(t, 3, *user.YearOfStudy)
	assert.Equal(t, "A", *user.AdvisorID)
	assert.Nil(t, user.LastLogin)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindByIDFacultyHasNoProfile(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE u.id = $1")).
		WithArgs("F").
		WillReturnRows(sqlmock.NewRows(accountColumns).
			AddRow("F", "reyes@uni.test", "hash", "Dr. Reyes", string(models.RoleFaculty), true, nil, nil, now, now, now))

	user, err := repo.FindByID(context.Background(), "F")
	require.NoError(t, err)
	assert.Nil(t, user.YearOfStudy)
	assert.Equal(t, "Dr. Reyes", user.Info().FullName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE u.id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryUpdateLastLogin(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	ts := time.Now()
	query := regexp.QuoteMeta("UPDATE users SET last_login = $2, updated_at = $2 WHERE id = $1 AND active")
	mock.ExpectExec(query).WithArgs("u1", ts).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs("gone", ts).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.UpdateLastLogin(context.Background(), "u1", ts))
	assert.ErrorIs(t, repo.UpdateLastLogin(context.Background(), "gone", ts), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreateAuditLog(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)
	now := time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(1, 1))

	userID := "u1"
	entry := &models.AuditLog{UserID: &userID, Action: models.AuditActionEnroll, Resource: "enrollments", OldValues: []byte{}}
	require.NoError(t, repo.CreateAuditLog(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, now, entry.CreatedAt)
	assert.Nil(t, entry.OldValues)
	assert.NoError(t, mock.ExpectationsWereMet())
}
