package report

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	apperrors "github.com/playground-engine/jobsystem/pkg/errors"
)

func newMockRepo(t *testing.T) (*GormRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	return NewGormRepository(gdb), mock
}

func TestMySQL_SaveInsertsRow(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `bench_runs`")).
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectCommit()

	run := sampleRun("mysql-session", 10)
	require.NoError(t, repo.Save(context.Background(), run))
	assert.EqualValues(t, 42, run.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQL_SaveRollsBackOnError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `bench_runs`")).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.Save(context.Background(), sampleRun("mysql-session", 10))
	assert.Equal(t, apperrors.CodeDatabaseError, apperrors.GetErrorCode(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQL_BySession(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := sqlmock.NewRows([]string{"id", "session_id", "host", "jobs", "duration_ns", "throughput", "created_at"}).
		AddRow(int64(7), "abc", "bench-host", int64(21), int64(time.Millisecond), 21000.0, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `bench_runs` WHERE session_id = ?")).
		WillReturnRows(rows)

	run, err := repo.BySession(context.Background(), "abc")
	require.NoError(t, err)
	assert.EqualValues(t, 7, run.ID)
	assert.EqualValues(t, 21, run.Jobs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQL_LatestQueryError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `bench_runs` ORDER BY id DESC")).
		WillReturnError(errors.New("too many connections"))

	_, err := repo.Latest(context.Background(), 5)
	assert.Equal(t, apperrors.CodeDatabaseError, apperrors.GetErrorCode(err))
}
