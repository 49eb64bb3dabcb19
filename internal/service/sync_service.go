package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/seatwatch/internal/capacity"
	"github.com/noah-isme/seatwatch/internal/models"
)

type catalogWriter interface {
	InsertIfAbsent(ctx context.Context, section *models.CourseSection) (bool, error)
}

// SyncResult counts what a resync did.
type SyncResult struct {
	Inserted int
	Existing int
	Invalid  int
	Failed   int
}

// SyncService grows the catalog from a full export. It only ever inserts;
// live counters of existing sections belong to the reconciler.
type SyncService struct {
	store          catalogWriter
	oldStudentMode bool
	logger         *zap.Logger
}

// NewSyncService constructs SyncService.
func NewSyncService(store catalogWriter, oldStudentMode bool, logger *zap.Logger) *SyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncService{store: store, oldStudentMode: oldStudentMode, logger: logger}
}

// Sync inserts every row whose key is not yet in the catalog.
func (s *SyncService) Sync(ctx context.Context, rows []models.CatalogRow) SyncResult {
	log := loggerFor(ctx, s.logger)
	var result SyncResult
	for _, row := range rows {
		full, err := capacity.IsFull(row.EnrolledCount, row.CapacityText, s.oldStudentMode)
		if err != nil {
			result.Invalid++
			log.Error("catalog row has invalid capacity",
				zap.String("course_code", row.CourseCode),
				zap.String("section_number", row.SectionNumber),
				zap.String("capacity_text", row.CapacityText),
				zap.Error(err),
			)
			continue
		}

		section := &models.CourseSection{
			SectionKey:    row.SectionKey,
			Title:         row.Title,
			Instructor:    row.Instructor,
			Schedule:      row.Schedule,
			Classroom:     row.Classroom,
			Department:    row.Department,
			Credits:       row.Credits,
			CapacityText:  row.CapacityText,
			EnrolledCount: row.EnrolledCount,
			IsFull:        full,
		}
		inserted, err := s.store.InsertIfAbsent(ctx, section)
		if err != nil {
			result.Failed++
			log.Error("catalog insert failed",
				zap.String("course_code", row.CourseCode),
				zap.String("section_number", row.SectionNumber),
				zap.Error(err),
			)
			continue
		}
		if inserted {
			result.Inserted++
		} else {
			result.Existing++
		}
	}

	log.Info("catalog synced",
		zap.Int("rows", len(rows)),
		zap.Int("inserted", result.Inserted),
		zap.Int("existing", result.Existing),
		zap.Int("invalid", result.Invalid),
		zap.Int("failed", result.Failed),
	)
	return result
}
