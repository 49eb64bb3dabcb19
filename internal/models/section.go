package models

import (
	"fmt"
	"time"
)

// SectionKey is the composite identity of a course section.
type SectionKey struct {
	CourseCode    string `db:"course_code" json:"course_code"`
	SectionNumber string `db:"section_number" json:"section_number"`
}

// String renders the key the way the portal prints it (e.g. "4190.310-001").
func (k SectionKey) String() string {
	return fmt.Sprintf("%s-%s", k.CourseCode, k.SectionNumber)
}

// CourseSection is one catalog entry. Display fields are passed through as
// scraped; only the counters are maintained by the monitor.
type CourseSection struct {
	SectionKey
	Title         string    `db:"title" json:"title"`
	Instructor    string    `db:"instructor" json:"instructor"`
	Schedule      string    `db:"schedule" json:"schedule"`
	Classroom     string    `db:"classroom" json:"classroom"`
	Department    string    `db:"department" json:"department"`
	Credits       string    `db:"credits" json:"credits"`
	CapacityText  string    `db:"capacity_text" json:"capacity_text"`
	EnrolledCount int       `db:"enrolled_count" json:"enrolled_count"`
	IsFull        bool      `db:"is_full" json:"is_full"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`

	// SubscriberTokens is only populated by document-style stores that embed
	// subscribers in the section record.
	SubscriberTokens []string `db:"-" json:"-"`
}

// SectionPatch sets any subset of the live counters of one section.
type SectionPatch struct {
	EnrolledCount *int
	IsFull        *bool
	CapacityText  *string
}

// Empty reports whether the patch changes nothing.
func (p SectionPatch) Empty() bool {
	return p.EnrolledCount == nil && p.IsFull == nil && p.CapacityText == nil
}

// Apply copies the patched fields onto s.
func (p SectionPatch) Apply(s *CourseSection) {
	if p.EnrolledCount != nil {
		s.EnrolledCount = *p.EnrolledCount
	}
	if p.IsFull != nil {
		s.IsFull = *p.IsFull
	}
	if p.CapacityText != nil {
		s.CapacityText = *p.CapacityText
	}
}

// EnrollmentSnapshot is one row of a live enrollment page. It lives for a
// single cycle.
type EnrollmentSnapshot struct {
	SectionKey
	CapacityText  string `json:"capacity_text"`
	EnrolledCount int    `json:"enrolled_count"`
}

// CatalogRow is one row of the full catalog export.
type CatalogRow struct {
	SectionKey
	Title         string
	Instructor    string
	Schedule      string
	Classroom     string
	Department    string
	Credits       string
	CapacityText  string
	EnrolledCount int
}

// Transition classifies what a reconciliation did to one section.
type Transition string

// Possible transitions, evaluated in this order.
const (
	TransitionOpened    Transition = "OPENED"
	TransitionFilled    Transition = "FILLED"
	TransitionUnchanged Transition = "UNCHANGED"
)

// NotificationTask asks the dispatcher to tell subscribers a seat opened.
type NotificationTask struct {
	Section       SectionKey
	Title         string
	EnrolledCount int
	Capacity      int
}

// SectionFilter narrows section listings on the ops API.
type SectionFilter struct {
	CourseCode string `validate:"omitempty,max=32"`
	Full       *bool
	Page       int `validate:"min=0"`
	PageSize   int `validate:"min=0,max=100"`
}

// Pagination describes list metadata.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
