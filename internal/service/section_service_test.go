package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/seatwatch/internal/models"
	appErrors "github.com/noah-isme/seatwatch/pkg/errors"
)

func TestSectionServiceListDefaultsPagination(t *testing.T) {
	store := newTrackingStore(true)
	store.seed(key("4190.310", "001"), "Operating Systems", "30", 30, true)
	store.seed(key("4190.310", "002"), "Operating Systems", "30", 10, false)
	svc := NewSectionService(store, nil, nil)

	sections, pagination, err := svc.List(context.Background(), models.SectionFilter{CourseCode: " 4190.310 "})

	require.NoError(t, err)
	assert.Len(t, sections, 2)
	assert.Equal(t, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 2}, pagination)
}

func TestSectionServiceListRejectsLargePage(t *testing.T) {
	svc := NewSectionService(newTrackingStore(true), nil, nil)

	_, _, err := svc.List(context.Background(), models.SectionFilter{PageSize: 500})

	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestSectionServiceGet(t *testing.T) {
	store := newTrackingStore(true)
	store.seed(key("4190.310", "001"), "Operating Systems", "30", 30, true)
	svc := NewSectionService(store, nil, nil)

	section, err := svc.Get(context.Background(), key("4190.310", "001"))
	require.NoError(t, err)
	assert.Equal(t, "Operating Systems", section.Title)

	_, err = svc.Get(context.Background(), key("4190.310", "404"))
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = svc.Get(context.Background(), key("", "001"))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

type cycleReaderStub struct {
	report *models.CycleReport
	err    error
}

func (s cycleReaderStub) LastCycleReport(context.Context) (*models.CycleReport, error) {
	return s.report, s.err
}

type schedulerControlStub struct {
	requested int
}

func (s *schedulerControlStub) Status() SchedulerStatus {
	return SchedulerStatus{Running: true, Cycle: 3, State: models.StatePolling}
}

func (s *schedulerControlStub) RequestResync() {
	s.requested++
}

func TestStatusServiceToleratesMissingReport(t *testing.T) {
	svc := NewStatusService(cycleReaderStub{err: appErrors.ErrCacheMiss}, &schedulerControlStub{}, nil)

	status, err := svc.Status(context.Background())

	require.NoError(t, err)
	assert.Nil(t, status.LastCycle)
	assert.Equal(t, 3, status.Scheduler.Cycle)
}

func TestStatusServiceReportsFailure(t *testing.T) {
	svc := NewStatusService(cycleReaderStub{err: errBoom}, nil, nil)

	_, err := svc.Status(context.Background())

	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}

func TestStatusServiceRequestResync(t *testing.T) {
	control := &schedulerControlStub{}
	svc := NewStatusService(cycleReaderStub{}, control, nil)

	require.NoError(t, svc.RequestResync(context.Background(), "ops"))
	assert.Equal(t, 1, control.requested)

	err := NewStatusService(cycleReaderStub{}, nil, nil).RequestResync(context.Background(), "ops")
	assert.Error(t, err)
}

func TestSectionServiceExportWalksAllPages(t *testing.T) {
	store := newTrackingStore(true)
	for i := 0; i < 130; i++ {
		store.seed(key("4190.310", fmt.Sprintf("%03d", i)), "Operating Systems", "30", i%31, i%31 >= 30)
	}
	svc := NewSectionService(store, nil, nil)

	doc, err := svc.Export(context.Background(), models.SectionFilter{}, "csv")

	require.NoError(t, err)
	assert.Equal(t, "sections.csv", doc.Filename)
	assert.Equal(t, 131, strings.Count(string(doc.Body), "\n"))

	_, err = svc.Export(context.Background(), models.SectionFilter{}, "docx")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
