package service

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/behavior-tracker-api/internal/models"
	appErrors "github.com/noah-isme/behavior-tracker-api/pkg/errors"
	"github.com/noah-isme/behavior-tracker-api/pkg/jobs"
	"github.com/noah-isme/behavior-tracker-api/pkg/storage"
)

type capturingQueue struct {
	jobs []jobs.Job
	err  error
}

func (q *capturingQueue) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func newReportFixture(t *testing.T, rows []models.BehaviorLogRow) (*ReportService, *capturingQueue, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	risk := NewRiskService(&stubRowReader{rows: rows}, nil, nil, nil, RiskServiceConfig{})
	exports := NewExportService(&stubRowReader{}, nil, nil, nil, nil, ExportConfig{})
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	svc := NewReportService(store, signer, risk, exports, NewMetricsService(), nil, ReportServiceConfig{APIPrefix: "/api/v1"})
	queue := &capturingQueue{}
	svc.SetQueue(queue)
	return svc, queue, store
}

func TestReportServiceEnqueueAndRender(t *testing.T) {
	svc, queue, store := newReportFixture(t, []models.BehaviorLogRow{logRow("1", "high", strPtr("S1"), nil)})

	queued, err := svc.EnqueueRisk(context.Background(), "school-1", RiskReportRequest{Range: "7d", Format: "csv"}, fixedNow)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(queued.Path, "school-1/risk-7d-20240630T120000-"))
	assert.True(t, strings.HasSuffix(queued.Path, ".csv"))
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, JobTypeRiskReport, queue.jobs[0].Type)

	exists, err := store.Exists(queued.Path)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, svc.HandleJob(context.Background(), queue.jobs[0]))
	exists, err = store.Exists(queued.Path)
	require.NoError(t, err)
	assert.True(t, exists)

	link, err := svc.SignedURL(context.Background(), "school-1", queued.Path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link.URL, "/api/v1/export/school-1."))

	token := strings.TrimPrefix(link.URL, "/api/v1/export/")
	download, err := svc.ResolveDownload(context.Background(), token)
	require.NoError(t, err)
	defer download.File.Close()
	assert.Equal(t, "text/csv; charset=utf-8", download.ContentType)
	body, err := os.ReadFile(download.File.Name())
	require.NoError(t, err)
	assert.Contains(t, string(body), `"student","S1"`)
}

func TestReportServiceEnqueueRejectsUnknownFormat(t *testing.T) {
	svc, queue, _ := newReportFixture(t, nil)
	_, err := svc.EnqueueRisk(context.Background(), "school-1", RiskReportRequest{Format: "docx"}, fixedNow)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, queue.jobs)
}

func TestReportServiceSignedURLMissingFile(t *testing.T) {
	svc, _, _ := newReportFixture(t, nil)

	_, err := svc.SignedURL(context.Background(), "school-1", "")
	assert.Equal(t, "path is required", appErrors.FromError(err).Message)

	_, err = svc.SignedURL(context.Background(), "school-1", "school-1/missing.csv")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = svc.SignedURL(context.Background(), "school-1", "school-2/other.csv")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestReportServiceResolveDownloadRejectsBadToken(t *testing.T) {
	svc, _, _ := newReportFixture(t, nil)
	_, err := svc.ResolveDownload(context.Background(), "school-1.123.abc.def")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestReportServiceHandleJobRejectsForeignJobs(t *testing.T) {
	svc, _, _ := newReportFixture(t, nil)
	err := svc.HandleJob(context.Background(), jobs.Job{ID: "x", Type: "other"})
	assert.Error(t, err)
}
