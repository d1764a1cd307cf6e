package repositories

import (
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"alfredoptarigan/hr-agent/internal/apperr"
	"alfredoptarigan/hr-agent/internal/models"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return db, mock
}

func TestJobRepositoryFindByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "jobs" WHERE id = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "description", "created_at"}))

	job, err := repo.FindByID(7)
	assert.Nil(t, job)
	assert.True(t, apperr.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepositoryFindByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "jobs" WHERE id = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "description", "created_at"}).
			AddRow(1, "Backend Engineer", "Go, Postgres", now))

	job, err := repo.FindByID(1)
	require.NoError(t, err)
	assert.Equal(t, "Backend Engineer", job.Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepositoryDeleteMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "jobs"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(3)
	assert.True(t, apperr.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEvaluationRepositoryUpsertUsesOnConflict(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEvaluationRepository(db)

	eval := &models.Evaluation{
		CandidateID:     4,
		TechnicalScore:  80,
		ExperienceScore: 70,
		EducationScore:  60,
		OverallScore:    models.OverallScore(80, 70, 60),
		Recommendation:  models.ModerateMatch,
	}
	eval.SetStrengths([]string{"Go"})
	eval.SetConcerns(nil)

	mock.ExpectQuery(`INSERT INTO "evaluations" .* ON CONFLICT \("candidate_id"\) DO UPDATE SET`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))

	require.NoError(t, repo.Upsert(eval))
	assert.Equal(t, uint(11), eval.ID)
	assert.False(t, eval.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEvaluationRepositoryFindByJobJoinsCandidates(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEvaluationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT evaluations.* FROM "evaluations" JOIN candidates ON candidates.id = evaluations.candidate_id WHERE candidates.job_id = $1`)).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "candidate_id", "overall_score"}).
			AddRow(1, 10, 70.5).
			AddRow(2, 11, 40))

	evals, err := repo.FindByJob(2)
	require.NoError(t, err)
	require.Len(t, evals, 2)
	assert.Equal(t, uint(10), evals[0].CandidateID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCandidateRepositoryFindByIDsEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCandidateRepository(db)

	candidates, err := repo.FindByIDs(nil)
	assert.NoError(t, err)
	assert.Empty(t, candidates)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCandidateRepositoryUpdateVectorID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCandidateRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "candidates" SET "vector_id"=$1 WHERE id = $2`)).
		WithArgs("candidate_5_abcd1234", 5).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateVectorID(5, "candidate_5_abcd1234"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChatRepositoryListSessionsFiltersByJob(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChatRepository(db)

	now := time.Now()
	jobID := uint(3)
	mock.ExpectQuery(`SELECT s.session_id, s.job_id, s.created_at, COUNT\(m.id\) AS message_count FROM chat_sessions AS s LEFT JOIN chat_messages AS m .* WHERE s.job_id = \$1 GROUP BY .* ORDER BY s.updated_at DESC`).
		WithArgs(jobID).
		WillReturnRows(sqlmock.NewRows([]string{"session_id", "job_id", "created_at", "message_count"}).
			AddRow("abc", 3, now, 4))

	sessions, err := repo.ListSessions(&jobID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "abc", sessions[0].SessionID)
	assert.Equal(t, int64(4), sessions[0].MessageCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChatRepositoryFindSessionNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChatRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "chat_sessions" WHERE session_id = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "session_id"}))

	_, err := repo.FindSession("missing")
	assert.True(t, apperr.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
