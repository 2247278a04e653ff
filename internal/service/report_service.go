package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/behavior-tracker-api/internal/models"
	appErrors "github.com/noah-isme/behavior-tracker-api/pkg/errors"
	"github.com/noah-isme/behavior-tracker-api/pkg/jobs"
	"github.com/noah-isme/behavior-tracker-api/pkg/middleware/requestid"
	"github.com/noah-isme/behavior-tracker-api/pkg/storage"
	"github.com/noah-isme/behavior-tracker-api/pkg/timerange"
)

// JobTypeRiskReport identifies queued risk report renders.
const JobTypeRiskReport = "risk_report"

// globalOwner owns reports requested without a school scope.
const globalOwner = "global"

type reportStorage interface {
	Save(relPath string, data []byte) (string, error)
	Exists(relPath string) (bool, error)
	Open(relPath string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type urlSigner interface {
	Generate(owner, relPath string) (storage.SignedToken, error)
	Parse(token string, allowExpired bool) (storage.TokenClaims, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type riskComputer interface {
	Window(token string, now time.Time) timerange.Window
	Compute(ctx context.Context, schoolID string, window timerange.Window) (*models.RiskReport, bool, error)
}

type riskRenderer interface {
	RiskFile(report *models.RiskReport, format ExportFormat, now time.Time) (*ExportFile, error)
}

// ReportServiceConfig governs signed URLs and cleanup.
type ReportServiceConfig struct {
	APIPrefix       string
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

// RiskReportRequest asks for a risk report file.
type RiskReportRequest struct {
	Range  string `json:"range"`
	Format string `json:"format"`
}

// QueuedReport is returned once a render has been accepted.
type QueuedReport struct {
	Path   string           `json:"path"`
	Format ExportFormat     `json:"format"`
	Range  timerange.Window `json:"range"`
}

// SignedReportURL is a time limited download link.
type SignedReportURL struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ReportDownload is an opened report file ready to stream.
type ReportDownload struct {
	File        *os.File
	Filename    string
	ContentType string
	ExpiresAt   time.Time
}

type riskReportPayload struct {
	SchoolID string
	Window   timerange.Window
	Format   ExportFormat
	Path     string
}

// ReportService renders report files in the background and hands out signed links to them.
type ReportService struct {
	storage reportStorage
	signer  urlSigner
	queue   jobDispatcher
	risk    riskComputer
	render  riskRenderer
	metrics *MetricsService
	logger  *zap.Logger
	cfg     ReportServiceConfig
}

// NewReportService constructs the report service.
func NewReportService(store reportStorage, signer urlSigner, risk riskComputer, render riskRenderer, metrics *MetricsService, logger *zap.Logger, cfg ReportServiceConfig) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ReportService{storage: store, signer: signer, risk: risk, render: render, metrics: metrics, logger: logger, cfg: cfg}
}

// SetQueue wires the dispatcher. The queue's handler is HandleJob, so the two
// are built in sequence.
func (s *ReportService) SetQueue(queue jobDispatcher) {
	s.queue = queue
}

// EnqueueRisk schedules a risk report render and returns the path it will be written to.
func (s *ReportService) EnqueueRisk(ctx context.Context, schoolID string, req RiskReportRequest, now time.Time) (*QueuedReport, error) {
	if s.queue == nil {
		return nil, appErrors.Internal(errors.New("report queue not configured"), "failed to queue report")
	}
	format, err := ParseExportFormat(req.Format)
	if err != nil {
		return nil, err
	}
	window := s.risk.Window(req.Range, now)
	owner := reportOwner(schoolID)
	relPath := fmt.Sprintf("%s/risk-%s-%s-%s.%s", owner, window.Key, now.UTC().Format("20060102T150405"), uuid.NewString()[:8], format)

	job := jobs.Job{
		ID:   uuid.NewString(),
		Type: JobTypeRiskReport,
		Payload: riskReportPayload{
			SchoolID: schoolID,
			Window:   window,
			Format:   format,
			Path:     relPath,
		},
	}
	if err := s.queue.Enqueue(job); err != nil {
		return nil, appErrors.Internal(err, "failed to queue report")
	}
	s.logger.Info("risk report queued",
		zap.String("job_id", job.ID),
		zap.String("path", relPath),
		zap.String("request_id", requestid.FromContext(ctx)))
	return &QueuedReport{Path: relPath, Format: format, Range: window}, nil
}

// HandleJob is the queue handler for report renders.
func (s *ReportService) HandleJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(riskReportPayload)
	if !ok || job.Type != JobTypeRiskReport {
		return fmt.Errorf("unsupported job %s of type %s", job.ID, job.Type)
	}
	report, _, err := s.risk.Compute(ctx, payload.SchoolID, payload.Window)
	if err != nil {
		return err
	}
	file, err := s.render.RiskFile(report, payload.Format, time.Now().UTC())
	if err != nil {
		return err
	}
	if _, err := s.storage.Save(payload.Path, file.Payload); err != nil {
		return err
	}
	s.metrics.RecordReportJob("finished")
	s.logger.Info("risk report rendered", zap.String("job_id", job.ID), zap.String("path", payload.Path), zap.Int("rows", file.Rows))
	return nil
}

// OnJobExhausted records a render that ran out of retries.
func (s *ReportService) OnJobExhausted(job jobs.Job, err error) {
	s.metrics.RecordReportJob("failed")
	s.logger.Error("risk report failed", zap.String("job_id", job.ID), zap.Error(err))
}

// SignedURL issues a download link for a stored report owned by schoolID.
func (s *ReportService) SignedURL(ctx context.Context, schoolID, relPath string) (*SignedReportURL, error) {
	relPath = strings.TrimSpace(relPath)
	if relPath == "" {
		return nil, appErrors.Required("path")
	}
	owner := reportOwner(schoolID)
	if !strings.HasPrefix(path.Clean(relPath), owner+"/") {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
	}
	exists, err := s.storage.Exists(relPath)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidPath) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "path is invalid")
		}
		return nil, appErrors.Internal(err, "failed to check report")
	}
	if !exists {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
	}
	token, err := s.signer.Generate(owner, path.Clean(relPath))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to sign report url")
	}
	return &SignedReportURL{
		URL:       fmt.Sprintf("%s/export/%s", strings.TrimRight(s.cfg.APIPrefix, "/"), token.Token),
		ExpiresAt: token.ExpiresAt,
	}, nil
}

// ResolveDownload validates a token and opens the file it names.
func (s *ReportService) ResolveDownload(ctx context.Context, token string) (*ReportDownload, error) {
	claims, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	if !strings.HasPrefix(claims.Path, claims.Owner+"/") {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	file, err := s.storage.Open(claims.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return nil, appErrors.Internal(err, "failed to open report")
	}
	return &ReportDownload{
		File:        file,
		Filename:    path.Base(claims.Path),
		ContentType: contentTypeFor(claims.Path),
		ExpiresAt:   claims.ExpiresAt,
	}, nil
}

// StartCleanup purges report files older than ResultTTL until ctx is done.
func (s *ReportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Cleanup()
			}
		}
	}()
}

// Cleanup runs a single purge pass.
func (s *ReportService) Cleanup() {
	deleted, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL)
	if err != nil {
		s.logger.Warn("report cleanup failed", zap.Error(err))
		return
	}
	if len(deleted) > 0 {
		s.logger.Info("expired reports removed", zap.Int("count", len(deleted)))
	}
}

func reportOwner(schoolID string) string {
	if schoolID == "" {
		return globalOwner
	}
	return schoolID
}

func contentTypeFor(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".pdf":
		return "application/pdf"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv; charset=utf-8"
	}
}
