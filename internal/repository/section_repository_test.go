package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/seatwatch/internal/models"
	appErrors "github.com/noah-isme/seatwatch/pkg/errors"
)

var sectionRowColumns = []string{"course_code", "section_number", "title", "instructor", "schedule", "classroom", "department", "credits",
	"capacity_text", "enrolled_count", "is_full", "created_at", "updated_at"}

func newSectionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSectionRepositoryFindByKey(t *testing.T) {
	db, mock, cleanup := newSectionRepoMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(sectionRowColumns).
		AddRow("4190.310", "001", "Operating Systems", "Kim", "Mon 10:00", "301-101", "CSE", "3", "30 (10)", 30, true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM course_sections WHERE course_code = $1 AND section_number = $2")).
		WithArgs("4190.310", "001").
		WillReturnRows(rows)

	section, err := repo.FindByKey(context.Background(), models.SectionKey{CourseCode: "4190.310", SectionNumber: "001"})
	require.NoError(t, err)
	assert.Equal(t, "Operating Systems", section.Title)
	assert.Equal(t, "30 (10)", section.CapacityText)
	assert.Equal(t, 30, section.EnrolledCount)
	assert.True(t, section.IsFull)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryFindByKeyNotFound(t *testing.T) {
	db, mock, cleanup := newSectionRepoMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM course_sections WHERE course_code = $1")).
		WithArgs("X", "1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByKey(context.Background(), models.SectionKey{CourseCode: "X", SectionNumber: "1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryInsertIfAbsent(t *testing.T) {
	db, mock, cleanup := newSectionRepoMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	section := &models.CourseSection{
		SectionKey:    models.SectionKey{CourseCode: "4190.310", SectionNumber: "001"},
		Title:         "Operating Systems",
		CapacityText:  "30",
		EnrolledCount: 12,
	}

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (course_code, section_number) DO NOTHING")).
		WithArgs("4190.310", "001", "Operating Systems", "", "", "", "", "", "30", 12, false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO course_sections")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := repo.InsertIfAbsent(context.Background(), section)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.False(t, section.CreatedAt.IsZero())

	inserted, err = repo.InsertIfAbsent(context.Background(), section)
	require.NoError(t, err)
	assert.False(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryUpdateFields(t *testing.T) {
	db, mock, cleanup := newSectionRepoMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	enrolled := 29
	full := false
	capacityText := "30"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE course_sections SET enrolled_count = $1, is_full = $2, capacity_text = $3, updated_at = NOW() WHERE course_code = $4 AND section_number = $5")).
		WithArgs(29, false, "30", "4190.310", "001").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateFields(context.Background(), models.SectionKey{CourseCode: "4190.310", SectionNumber: "001"}, models.SectionPatch{
		EnrolledCount: &enrolled,
		IsFull:        &full,
		CapacityText:  &capacityText,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryUpdateFieldsPartialAndMissing(t *testing.T) {
	db, mock, cleanup := newSectionRepoMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	enrolled := 3
	mock.ExpectExec(regexp.QuoteMeta("UPDATE course_sections SET enrolled_count = $1, updated_at = NOW() WHERE course_code = $2 AND section_number = $3")).
		WithArgs(3, "X", "9").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateFields(context.Background(), models.SectionKey{CourseCode: "X", SectionNumber: "9"}, models.SectionPatch{EnrolledCount: &enrolled})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	require.NoError(t, repo.UpdateFields(context.Background(), models.SectionKey{CourseCode: "X", SectionNumber: "9"}, models.SectionPatch{}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryResolveSubscribers(t *testing.T) {
	db, mock, cleanup := newSectionRepoMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT u.device_token FROM section_registrations sr")).
		WithArgs("4190.310", "001").
		WillReturnRows(sqlmock.NewRows([]string{"device_token"}).AddRow("tok-a").AddRow("tok-b"))

	tokens, err := repo.ResolveSubscribers(context.Background(), models.SectionKey{CourseCode: "4190.310", SectionNumber: "001"})
	require.NoError(t, err)
	assert.Equal(t, []string{"tok-a", "tok-b"}, tokens)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryList(t *testing.T) {
	db, mock, cleanup := newSectionRepoMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	now := time.Now()
	full := true
	mock.ExpectQuery(regexp.QuoteMeta("FROM course_sections WHERE course_code = $1 AND is_full = $2 ORDER BY course_code, section_number LIMIT 20 OFFSET 0")).
		WithArgs("4190.310", true).
		WillReturnRows(sqlmock.NewRows(sectionRowColumns).
			AddRow("4190.310", "001", "OS", "", "", "", "", "", "30", 30, true, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM course_sections WHERE course_code = $1 AND is_full = $2")).
		WithArgs("4190.310", true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	sections, total, err := repo.List(context.Background(), models.SectionFilter{CourseCode: "4190.310", Full: &full})
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Equal(t, 1, total)
	require.NoError(t, mock.ExpectationsWereMet())
}
