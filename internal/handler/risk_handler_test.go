package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/behavior-tracker-api/internal/models"
	"github.com/noah-isme/behavior-tracker-api/internal/service"
	"github.com/noah-isme/behavior-tracker-api/pkg/timerange"
)

type stubRisk struct {
	report     *models.RiskReport
	hit        bool
	computeErr error
	schoolID   string
}

func (s *stubRisk) Window(token string, now time.Time) timerange.Window {
	return timerange.Resolve(token, now)
}

func (s *stubRisk) Compute(_ context.Context, schoolID string, _ timerange.Window) (*models.RiskReport, bool, error) {
	s.schoolID = schoolID
	if s.computeErr != nil {
		return nil, false, s.computeErr
	}
	return s.report, s.hit, nil
}

func (s *stubRisk) Report(_ context.Context, schoolID string, window timerange.Window) (*models.RiskReport, bool) {
	s.schoolID = schoolID
	if s.report == nil {
		return &models.RiskReport{Range: window}, false
	}
	return s.report, s.hit
}

func sampleRiskReport() *models.RiskReport {
	return &models.RiskReport{
		Range: timerange.Window{Key: "30d", Label: "Last 30 days"},
		RiskAggregate: models.RiskAggregate{
			Summary:   models.RiskSummary{TotalLogs: 1, HighCount: 1, StudentCount: 1},
			ByStudent: []models.RiskBucket{{Key: "stu-1", DisplayName: "Ana Lee", TotalLogs: 1, High: 1, RiskScore: 3}},
			ByClass:   []models.RiskBucket{},
			ByRoom:    []models.RiskBucket{},
		},
	}
}

func TestRiskViewReportsCacheHit(t *testing.T) {
	risk := &stubRisk{report: sampleRiskReport(), hit: true}
	router := buildRouter(Handlers{Risk: NewRiskHandler(risk, service.NewExportService(nil, nil, nil, nil, nil, service.ExportConfig{}))}, nil)

	resp := performRequest(router, newRequest(http.MethodGet, "/api/v1/risk?range=30d", "TEACHER", ""))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"cache_hit":true`)
	assert.Contains(t, resp.Body.String(), `"totalLogs":1`)
	assert.Equal(t, testSchool, risk.schoolID)
}

func TestRiskExportRendersCSV(t *testing.T) {
	risk := &stubRisk{report: sampleRiskReport()}
	router := buildRouter(Handlers{Risk: NewRiskHandler(risk, service.NewExportService(nil, nil, nil, nil, nil, service.ExportConfig{}))}, nil)

	resp := performRequest(router, newRequest(http.MethodGet, "/api/v1/risk-export", "STAFF", ""))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, resp.Header().Get("Content-Disposition"), "attachment;")
	assert.Contains(t, resp.Body.String(), `"Ana Lee"`)
}

func TestRiskExportRejectsUnknownFormat(t *testing.T) {
	router := buildRouter(Handlers{Risk: NewRiskHandler(&stubRisk{}, service.NewExportService(nil, nil, nil, nil, nil, service.ExportConfig{}))}, nil)

	resp := performRequest(router, newRequest(http.MethodGet, "/api/v1/risk-export?format=docx", "STAFF", ""))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Header().Get("Content-Type"), "text/plain")
}

func TestRiskExportStoreFailureIsPlainText(t *testing.T) {
	risk := &stubRisk{computeErr: errors.New("db down")}
	router := buildRouter(Handlers{Risk: NewRiskHandler(risk, service.NewExportService(nil, nil, nil, nil, nil, service.ExportConfig{}))}, nil)

	resp := performRequest(router, newRequest(http.MethodGet, "/api/v1/risk-export", "ADMIN", ""))
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Contains(t, resp.Header().Get("Content-Type"), "text/plain")
	assert.Empty(t, resp.Header().Get("Content-Disposition"))
}
