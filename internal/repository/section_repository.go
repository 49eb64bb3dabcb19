package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/seatwatch/internal/models"
	appErrors "github.com/noah-isme/seatwatch/pkg/errors"
)

const sectionColumns = `course_code, section_number, title, instructor, schedule, classroom, department, credits,
capacity_text, enrolled_count, is_full, created_at, updated_at`

// SectionRepository persists the section catalog in PostgreSQL. Subscribers
// are resolved through the registration relation.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository constructs the repository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

// WriteSerialized reports false: the connection pool accepts concurrent
// single-row updates.
func (r *SectionRepository) WriteSerialized() bool {
	return false
}

// FindByKey returns the section or appErrors.ErrNotFound.
func (r *SectionRepository) FindByKey(ctx context.Context, key models.SectionKey) (*models.CourseSection, error) {
	query := "SELECT " + sectionColumns + " FROM course_sections WHERE course_code = $1 AND section_number = $2"
	var section models.CourseSection
	if err := r.db.GetContext(ctx, &section, query, key.CourseCode, key.SectionNumber); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("section %s not found", key))
		}
		return nil, fmt.Errorf("find section %s: %w", key, err)
	}
	return &section, nil
}

// InsertIfAbsent creates the section unless its key already exists. Existing
// rows are never touched.
func (r *SectionRepository) InsertIfAbsent(ctx context.Context, section *models.CourseSection) (bool, error) {
	now := time.Now().UTC()
	if section.CreatedAt.IsZero() {
		section.CreatedAt = now
	}
	section.UpdatedAt = now
	const query = `INSERT INTO course_sections (course_code, section_number, title, instructor, schedule, classroom, department, credits,
capacity_text, enrolled_count, is_full, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (course_code, section_number) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query,
		section.CourseCode,
		section.SectionNumber,
		section.Title,
		section.Instructor,
		section.Schedule,
		section.Classroom,
		section.Department,
		section.Credits,
		section.CapacityText,
		section.EnrolledCount,
		section.IsFull,
		section.CreatedAt,
		section.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert section %s: %w", section.SectionKey, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert section %s rows affected: %w", section.SectionKey, err)
	}
	return affected == 1, nil
}

// UpdateFields applies patch to a single row in one statement.
func (r *SectionRepository) UpdateFields(ctx context.Context, key models.SectionKey, patch models.SectionPatch) error {
	set := make([]string, 0, 4)
	args := make([]interface{}, 0, 5)
	argPos := 1

	if patch.EnrolledCount != nil {
		set = append(set, fmt.Sprintf("enrolled_count = $%d", argPos))
		args = append(args, *patch.EnrolledCount)
		argPos++
	}
	if patch.IsFull != nil {
		set = append(set, fmt.Sprintf("is_full = $%d", argPos))
		args = append(args, *patch.IsFull)
		argPos++
	}
	if patch.CapacityText != nil {
		set = append(set, fmt.Sprintf("capacity_text = $%d", argPos))
		args = append(args, *patch.CapacityText)
		argPos++
	}

	if len(set) == 0 {
		return nil
	}
	set = append(set, "updated_at = NOW()")

	query := fmt.Sprintf("UPDATE course_sections SET %s WHERE course_code = $%d AND section_number = $%d",
		strings.Join(set, ", "), argPos, argPos+1)
	args = append(args, key.CourseCode, key.SectionNumber)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update section %s: %w", key, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update section %s rows affected: %w", key, err)
	}
	if affected == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("section %s not found", key))
	}
	return nil
}

// ResolveSubscribers returns the distinct device tokens of users registered
// for the section.
func (r *SectionRepository) ResolveSubscribers(ctx context.Context, key models.SectionKey) ([]string, error) {
	const query = `SELECT DISTINCT u.device_token FROM section_registrations sr
JOIN users u ON u.id = sr.user_id
WHERE sr.course_code = $1 AND sr.section_number = $2 AND u.device_token <> ''`
	var tokens []string
	if err := r.db.SelectContext(ctx, &tokens, query, key.CourseCode, key.SectionNumber); err != nil {
		return nil, fmt.Errorf("resolve subscribers %s: %w", key, err)
	}
	return tokens, nil
}

// List returns sections matching filter with the total count.
func (r *SectionRepository) List(ctx context.Context, filter models.SectionFilter) ([]models.CourseSection, int, error) {
	var conditions []string
	var args []interface{}

	if filter.CourseCode != "" {
		conditions = append(conditions, fmt.Sprintf("course_code = $%d", len(args)+1))
		args = append(args, filter.CourseCode)
	}
	if filter.Full != nil {
		conditions = append(conditions, fmt.Sprintf("is_full = $%d", len(args)+1))
		args = append(args, *filter.Full)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page, size := normalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM course_sections%s ORDER BY course_code, section_number LIMIT %d OFFSET %d",
		sectionColumns, clause, size, offset)

	var sections []models.CourseSection
	if err := r.db.SelectContext(ctx, &sections, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sections: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM course_sections"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count sections: %w", err)
	}
	return sections, total, nil
}

// Ping checks connectivity for readiness probes.
func (r *SectionRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}
