package portal

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/noah-isme/seatwatch/internal/models"
	appErrors "github.com/noah-isme/seatwatch/pkg/errors"
)

// Columns maps table cells to row fields. A negative index means the column
// is not present in that document.
type Columns struct {
	Department    int
	Credits       int
	CourseCode    int
	SectionNumber int
	Title         int
	Schedule      int
	Classroom     int
	Instructor    int
	Capacity      int
	Enrolled      int
}

// DefaultColumns follows the course search table layout, which the catalog
// export shares.
var DefaultColumns = Columns{
	Department:    2,
	CourseCode:    5,
	SectionNumber: 6,
	Title:         7,
	Credits:       9,
	Schedule:      12,
	Classroom:     14,
	Instructor:    15,
	Capacity:      19,
	Enrolled:      20,
}

// HTMLTableExtractor turns an HTML table into row records. Rows whose key
// cells are missing (headers, spacer rows) are skipped.
type HTMLTableExtractor struct {
	rowSelector string
	columns     Columns
	logger      *zap.Logger
}

// NewHTMLTableExtractor constructs an extractor for rows matched by rowSelector.
func NewHTMLTableExtractor(rowSelector string, columns Columns, logger *zap.Logger) *HTMLTableExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTMLTableExtractor{rowSelector: rowSelector, columns: columns, logger: logger}
}

// Snapshots extracts live enrollment rows.
func (e *HTMLTableExtractor) Snapshots(body []byte) ([]models.EnrollmentSnapshot, error) {
	rows, err := e.CatalogRows(body)
	if err != nil {
		return nil, err
	}
	snapshots := make([]models.EnrollmentSnapshot, 0, len(rows))
	for _, row := range rows {
		snapshots = append(snapshots, models.EnrollmentSnapshot{
			SectionKey:    row.SectionKey,
			CapacityText:  row.CapacityText,
			EnrolledCount: row.EnrolledCount,
		})
	}
	return snapshots, nil
}

// CatalogRows extracts full catalog rows including display fields.
func (e *HTMLTableExtractor) CatalogRows(body []byte) ([]models.CatalogRow, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrParse, err, "failed to read portal document")
	}

	var rows []models.CatalogRow
	doc.Find(e.rowSelector).Each(func(i int, tr *goquery.Selection) {
		cells := tr.Find("td").Map(func(_ int, td *goquery.Selection) string {
			return normalizeCell(td.Text())
		})
		row, ok := e.buildRow(cells)
		if !ok {
			e.logger.Debug("skipping table row", zap.Int("row", i), zap.Int("cells", len(cells)))
			return
		}
		rows = append(rows, row)
	})
	return rows, nil
}

func (e *HTMLTableExtractor) buildRow(cells []string) (models.CatalogRow, bool) {
	code := cell(cells, e.columns.CourseCode)
	section := cell(cells, e.columns.SectionNumber)
	capacityText := cell(cells, e.columns.Capacity)
	if code == "" || section == "" || capacityText == "" {
		return models.CatalogRow{}, false
	}
	enrolled, err := parseCount(cell(cells, e.columns.Enrolled))
	if err != nil {
		return models.CatalogRow{}, false
	}
	return models.CatalogRow{
		SectionKey:    models.SectionKey{CourseCode: code, SectionNumber: section},
		Title:         cell(cells, e.columns.Title),
		Instructor:    cell(cells, e.columns.Instructor),
		Schedule:      cell(cells, e.columns.Schedule),
		Classroom:     cell(cells, e.columns.Classroom),
		Department:    cell(cells, e.columns.Department),
		Credits:       cell(cells, e.columns.Credits),
		CapacityText:  capacityText,
		EnrolledCount: enrolled,
	}, true
}

func cell(cells []string, idx int) string {
	if idx < 0 || idx >= len(cells) {
		return ""
	}
	return cells[idx]
}

func normalizeCell(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// parseCount rejects a blank cell so a truncated row never reads as zero
// enrolled.
func parseCount(raw string) (int, error) {
	if raw == "" {
		return 0, fmt.Errorf("missing count")
	}
	n, err := strconv.Atoi(strings.ReplaceAll(raw, ",", ""))
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative count %d", n)
	}
	return n, nil
}
