// Package export renders catalog listings into downloadable documents.
package export

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/noah-isme/seatwatch/internal/models"
)

// Supported formats.
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

// Table is a rectangular set of string cells with a header row.
type Table struct {
	Title   string
	Columns []string
	Rows    [][]string
}

// Document is a rendered export ready to be served.
type Document struct {
	Filename    string
	ContentType string
	Body        []byte
}

var sectionColumns = []string{"Course", "Section", "Title", "Instructor", "Capacity", "Enrolled", "Status"}

// SectionTable lays out sections one per row.
func SectionTable(title string, sections []models.CourseSection) Table {
	rows := make([][]string, 0, len(sections))
	for _, s := range sections {
		status := "open"
		if s.IsFull {
			status = "full"
		}
		rows = append(rows, []string{
			s.CourseCode,
			s.SectionNumber,
			s.Title,
			s.Instructor,
			s.CapacityText,
			strconv.Itoa(s.EnrolledCount),
			status,
		})
	}
	return Table{Title: title, Columns: sectionColumns, Rows: rows}
}

// Render encodes t in format.
func Render(t Table, format, basename string) (*Document, error) {
	switch strings.ToLower(format) {
	case "", FormatCSV:
		body, err := RenderCSV(t)
		if err != nil {
			return nil, err
		}
		return &Document{Filename: basename + ".csv", ContentType: "text/csv; charset=utf-8", Body: body}, nil
	case FormatPDF:
		body, err := RenderPDF(t)
		if err != nil {
			return nil, err
		}
		return &Document{Filename: basename + ".pdf", ContentType: "application/pdf", Body: body}, nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}
