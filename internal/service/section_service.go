package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/seatwatch/internal/models"
	appErrors "github.com/noah-isme/seatwatch/pkg/errors"
	"github.com/noah-isme/seatwatch/pkg/export"
)

const (
	exportPageSize = 100
	exportMaxRows  = 5000
)

type sectionReader interface {
	FindByKey(ctx context.Context, key models.SectionKey) (*models.CourseSection, error)
	List(ctx context.Context, filter models.SectionFilter) ([]models.CourseSection, int, error)
}

// SectionService serves read-only catalog queries for the ops API.
type SectionService struct {
	repo      sectionReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSectionService constructs SectionService.
func NewSectionService(repo sectionReader, validate *validator.Validate, logger *zap.Logger) *SectionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SectionService{repo: repo, validator: validate, logger: logger}
}

// List returns a page of sections.
func (s *SectionService) List(ctx context.Context, filter models.SectionFilter) ([]models.CourseSection, *models.Pagination, error) {
	filter.CourseCode = strings.TrimSpace(filter.CourseCode)
	if err := s.validator.Struct(filter); err != nil {
		return nil, nil, appErrors.WrapAs(appErrors.ErrValidation, err, "invalid section filter")
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	sections, total, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list sections", zap.Error(err))
		return nil, nil, appErrors.WrapAs(appErrors.ErrRepository, err, "failed to list sections")
	}
	return sections, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns one section by key.
func (s *SectionService) Get(ctx context.Context, key models.SectionKey) (*models.CourseSection, error) {
	if strings.TrimSpace(key.CourseCode) == "" || strings.TrimSpace(key.SectionNumber) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course code and section number are required")
	}
	section, err := s.repo.FindByKey(ctx, key)
	if err != nil {
		if appErr := appErrors.FromError(err); appErr.Code == appErrors.ErrNotFound.Code {
			return nil, appErr
		}
		return nil, appErrors.WrapAs(appErrors.ErrRepository, err, "failed to load section")
	}
	return section, nil
}

// Export renders every section matching filter as a CSV or PDF document.
func (s *SectionService) Export(ctx context.Context, filter models.SectionFilter, format string) (*export.Document, error) {
	filter.PageSize = exportPageSize
	var all []models.CourseSection
	for page := 1; len(all) < exportMaxRows; page++ {
		filter.Page = page
		sections, pagination, err := s.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, sections...)
		if len(sections) == 0 || len(all) >= pagination.TotalCount {
			break
		}
	}

	doc, err := export.Render(export.SectionTable("Monitored sections", all), format, "sections")
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrValidation, err, err.Error())
	}
	s.logger.Info("sections exported", zap.String("format", format), zap.Int("rows", len(all)))
	return doc, nil
}
