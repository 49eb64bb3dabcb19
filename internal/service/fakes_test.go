package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/noah-isme/seatwatch/internal/models"
	"github.com/noah-isme/seatwatch/internal/repository"
)

var errBoom = errors.New("boom")

func key(code, section string) models.SectionKey {
	return models.SectionKey{CourseCode: code, SectionNumber: section}
}

// pageSourceStub serves canned pages and records peak concurrency.
type pageSourceStub struct {
	pages    map[int][]models.EnrollmentSnapshot
	failing  map[int]error
	delay    time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32
	calls    atomic.Int32
}

func (s *pageSourceStub) FetchEnrollmentPage(ctx context.Context, page int) ([]models.EnrollmentSnapshot, error) {
	s.calls.Add(1)
	current := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		peak := s.peak.Load()
		if current <= peak || s.peak.CompareAndSwap(peak, current) {
			break
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if err, ok := s.failing[page]; ok {
		return nil, err
	}
	return s.pages[page], nil
}

// catalogSourceStub returns a fixed catalog and counts calls.
type catalogSourceStub struct {
	rows  []models.CatalogRow
	err   error
	calls int
}

func (s *catalogSourceStub) FetchFullCatalog(ctx context.Context) ([]models.CatalogRow, error) {
	s.calls++
	return s.rows, s.err
}

// trackingStore wraps the in-memory catalog and detects overlapping writes.
type trackingStore struct {
	*repository.MemorySectionRepository
	serialized  bool
	updateDelay time.Duration
	updateErr   map[models.SectionKey]error
	findErr     map[models.SectionKey]error

	writing    atomic.Int32
	overlapped atomic.Bool
	updates    atomic.Int32
}

func newTrackingStore(serialized bool) *trackingStore {
	return &trackingStore{
		MemorySectionRepository: repository.NewMemorySectionRepository(),
		serialized:              serialized,
	}
}

func (s *trackingStore) WriteSerialized() bool {
	return s.serialized
}

func (s *trackingStore) FindByKey(ctx context.Context, k models.SectionKey) (*models.CourseSection, error) {
	if err, ok := s.findErr[k]; ok {
		return nil, err
	}
	return s.MemorySectionRepository.FindByKey(ctx, k)
}

func (s *trackingStore) UpdateFields(ctx context.Context, k models.SectionKey, patch models.SectionPatch) error {
	if s.writing.Add(1) > 1 {
		s.overlapped.Store(true)
	}
	defer s.writing.Add(-1)
	s.updates.Add(1)
	if s.updateDelay > 0 {
		time.Sleep(s.updateDelay)
	}
	if err, ok := s.updateErr[k]; ok {
		return err
	}
	return s.MemorySectionRepository.UpdateFields(ctx, k, patch)
}

func (s *trackingStore) seed(k models.SectionKey, title, capacityText string, enrolled int, full bool) {
	_, _ = s.InsertIfAbsent(context.Background(), &models.CourseSection{
		SectionKey:    k,
		Title:         title,
		CapacityText:  capacityText,
		EnrolledCount: enrolled,
		IsFull:        full,
	})
}

type delivery struct {
	Token string
	Title string
	Body  string
}

// delivererStub records deliveries and fails the configured tokens.
type delivererStub struct {
	mu        sync.Mutex
	failing   map[string]bool
	delivered []delivery
	attempts  int
}

func (d *delivererStub) Deliver(ctx context.Context, token, title, body string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attempts++
	if d.failing[token] {
		return errBoom
	}
	d.delivered = append(d.delivered, delivery{Token: token, Title: title, Body: body})
	return nil
}

func (d *delivererStub) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.delivered)
}

// recorderStub captures cycle reports.
type recorderStub struct {
	mu      sync.Mutex
	reports []models.CycleReport
}

func (r *recorderStub) SaveCycleReport(ctx context.Context, report models.CycleReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	return nil
}
