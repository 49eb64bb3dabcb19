package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/seatwatch/internal/models"
	"github.com/noah-isme/seatwatch/internal/service"
	appErrors "github.com/noah-isme/seatwatch/pkg/errors"
	"github.com/noah-isme/seatwatch/pkg/export"
)

type fakeSections struct {
	sections   []models.CourseSection
	lastFilter models.SectionFilter
	getErr     error
}

func (f *fakeSections) List(_ context.Context, filter models.SectionFilter) ([]models.CourseSection, *models.Pagination, error) {
	f.lastFilter = filter
	return f.sections, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: len(f.sections)}, nil
}

func (f *fakeSections) Get(_ context.Context, key models.SectionKey) (*models.CourseSection, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for i := range f.sections {
		if f.sections[i].SectionKey == key {
			return &f.sections[i], nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
}

func (f *fakeSections) Export(_ context.Context, filter models.SectionFilter, format string) (*export.Document, error) {
	f.lastFilter = filter
	return export.Render(export.SectionTable("Sections", f.sections), format, "sections")
}

type fakeStatus struct {
	status      *service.MonitorStatus
	requestedBy []string
}

func (f *fakeStatus) Status(context.Context) (*service.MonitorStatus, error) {
	return f.status, nil
}

func (f *fakeStatus) RequestResync(_ context.Context, requestedBy string) error {
	f.requestedBy = append(f.requestedBy, requestedBy)
	return nil
}

type pingerFunc func(ctx context.Context) error

func (p pingerFunc) Ping(ctx context.Context) error { return p(ctx) }

type testAPI struct {
	router   *gin.Engine
	sections *fakeSections
	status   *fakeStatus
	auth     *service.AuthService
}

func newTestAPI(t *testing.T, checks map[string]Pinger) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	api := &testAPI{
		sections: &fakeSections{sections: []models.CourseSection{
			{SectionKey: models.SectionKey{CourseCode: "4190.310", SectionNumber: "001"}, Title: "Operating Systems", CapacityText: "30", EnrolledCount: 30, IsFull: true},
		}},
		status: &fakeStatus{status: &service.MonitorStatus{
			Scheduler: service.SchedulerStatus{Running: true, Cycle: 4, State: models.StatePolling},
			LastCycle: &models.CycleReport{ID: "cycle-id", Cycle: 3, Opened: 1},
		}},
		auth: service.NewAuthService(nil, service.AuthConfig{Secret: "secret", Issuer: "seatwatch"}),
	}
	metrics := service.NewMetricsService()
	api.router = NewRouter(RouterConfig{
		Metrics:  metrics,
		Auth:     api.auth,
		Probes:   NewMetricsHandler(metrics, checks),
		Sections: NewSectionHandler(api.sections),
		Status:   NewStatusHandler(api.status),
	})
	return api
}

func (a *testAPI) do(method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) token(t *testing.T, role string) string {
	t.Helper()
	issued, err := a.auth.IssueToken(service.IssueTokenRequest{Subject: "ops", Role: role, TTL: time.Hour})
	require.NoError(t, err)
	return issued.AccessToken
}

type envelope struct {
	Data       json.RawMessage    `json:"data"`
	Error      *appErrors.Error   `json:"error"`
	Pagination *models.Pagination `json:"pagination"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestListSectionsParsesFilter(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(http.MethodGet, "/api/v1/sections?courseCode=4190.310&full=true&page=2&limit=5", "")

	require.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 2, env.Pagination.Page)
	assert.Equal(t, "4190.310", api.sections.lastFilter.CourseCode)
	require.NotNil(t, api.sections.lastFilter.Full)
	assert.True(t, *api.sections.lastFilter.Full)
	assert.Equal(t, 5, api.sections.lastFilter.PageSize)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestGetSection(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(http.MethodGet, "/api/v1/sections/4190.310/001", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var section models.CourseSection
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &section))
	assert.Equal(t, "Operating Systems", section.Title)

	missing := api.do(http.MethodGet, "/api/v1/sections/4190.310/999", "")
	assert.Equal(t, http.StatusNotFound, missing.Code)
	assert.Equal(t, appErrors.ErrNotFound.Code, decode(t, missing).Error.Code)
}

func TestGetSectionRepositoryError(t *testing.T) {
	api := newTestAPI(t, nil)
	api.sections.getErr = appErrors.WrapAs(appErrors.ErrRepository, errors.New("db down"), "")

	rec := api.do(http.MethodGet, "/api/v1/sections/4190.310/001", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStatusReturnsLastCycle(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(http.MethodGet, "/api/v1/status", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var status service.MonitorStatus
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &status))
	assert.Equal(t, 4, status.Scheduler.Cycle)
	require.NotNil(t, status.LastCycle)
	assert.Equal(t, "cycle-id", status.LastCycle.ID)
}

func TestAdminResyncRequiresAdminToken(t *testing.T) {
	api := newTestAPI(t, nil)

	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodPost, "/api/v1/admin/resync", "").Code)
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPost, "/api/v1/admin/resync", api.token(t, "viewer")).Code)
	assert.Empty(t, api.status.requestedBy)

	rec := api.do(http.MethodPost, "/api/v1/admin/resync", api.token(t, "admin"))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"ops"}, api.status.requestedBy)
}

func TestProbes(t *testing.T) {
	healthy := newTestAPI(t, map[string]Pinger{
		"database": pingerFunc(func(context.Context) error { return nil }),
	})
	assert.Equal(t, http.StatusOK, healthy.do(http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, healthy.do(http.MethodGet, "/ready", "").Code)

	metrics := healthy.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), "goroutines_total")

	degraded := newTestAPI(t, map[string]Pinger{
		"redis": pingerFunc(func(context.Context) error { return errors.New("connection refused") }),
	})
	rec := degraded.do(http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestRequestIDHeader(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(http.MethodGet, "/health", "")

	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestExportSections(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(http.MethodGet, "/api/v1/sections/export?full=true", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "sections.csv")
	assert.Contains(t, rec.Body.String(), "4190.310,001,Operating Systems")
	require.NotNil(t, api.sections.lastFilter.Full)

	bad := api.do(http.MethodGet, "/api/v1/sections/export?format=xlsx", "")
	assert.Equal(t, http.StatusInternalServerError, bad.Code)
}
