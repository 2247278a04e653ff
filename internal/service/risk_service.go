package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/behavior-tracker-api/internal/models"
	appErrors "github.com/noah-isme/behavior-tracker-api/pkg/errors"
	"github.com/noah-isme/behavior-tracker-api/pkg/middleware/requestid"
	"github.com/noah-isme/behavior-tracker-api/pkg/timerange"
)

type behaviorRowReader interface {
	ListRows(ctx context.Context, filter models.BehaviorLogFilter) ([]models.BehaviorLogRow, error)
}

type riskCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// RiskServiceConfig tunes risk aggregation.
type RiskServiceConfig struct {
	DefaultRange string
	CacheTTL     time.Duration
	// PageSize is the number of rows fetched per query while scanning a window.
	PageSize int
}

// RiskService loads behavior logs for a window and aggregates them into risk buckets.
type RiskService struct {
	logs    behaviorRowReader
	cache   riskCache
	metrics *MetricsService
	logger  *zap.Logger
	cfg     RiskServiceConfig
}

// NewRiskService constructs a RiskService. cache may be nil.
func NewRiskService(logs behaviorRowReader, cache riskCache, metrics *MetricsService, logger *zap.Logger, cfg RiskServiceConfig) *RiskService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultRange == "" {
		cfg.DefaultRange = timerange.DefaultKey
	}
	return &RiskService{logs: logs, cache: cache, metrics: metrics, logger: logger, cfg: cfg}
}

// Window resolves a range token against the configured default.
func (s *RiskService) Window(token string, now time.Time) timerange.Window {
	return timerange.ResolveWith(token, s.cfg.DefaultRange, false, now)
}

// Compute aggregates every log for the school inside the window. Store failures are returned.
func (s *RiskService) Compute(ctx context.Context, schoolID string, window timerange.Window) (*models.RiskReport, bool, error) {
	key := riskCacheKey(schoolID, window.Key)
	if s.cache != nil {
		var cached models.RiskReport
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return &cached, true, nil
		}
	}

	start := time.Now()
	rows, err := scanRows(ctx, s.logs, models.BehaviorLogFilter{SchoolID: schoolID, From: window.From}, s.cfg.PageSize, 0)
	s.metrics.ObserveDBQuery("risk_rows", time.Since(start))
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to load behavior logs")
	}
	report := &models.RiskReport{Range: window, RiskAggregate: AggregateRisk(rows)}

	if s.cache != nil {
		_ = s.cache.Set(ctx, key, report, s.cfg.CacheTTL)
	}
	return report, false, nil
}

// Report is the dashboard view of Compute. A store failure is logged and the
// zeroed aggregate is returned so the page still renders.
func (s *RiskService) Report(ctx context.Context, schoolID string, window timerange.Window) (*models.RiskReport, bool) {
	report, hit, err := s.Compute(ctx, schoolID, window)
	if err != nil {
		s.logger.Warn("risk view degraded to empty aggregate",
			zap.String("school_id", schoolID),
			zap.String("range", window.Key),
			zap.String("request_id", requestid.FromContext(ctx)),
			zap.Error(err))
		s.metrics.RecordRiskDegraded()
		return &models.RiskReport{Range: window, RiskAggregate: AggregateRisk(nil)}, false
	}
	return report, hit
}

func riskCacheKey(schoolID, rangeKey string) string {
	if schoolID == "" {
		schoolID = "all"
	}
	return fmt.Sprintf("risk:%s:%s", schoolID, rangeKey)
}

// riskCachePattern matches every cached risk view for a school.
func riskCachePattern(schoolID string) string {
	if schoolID == "" {
		return "risk:*"
	}
	return fmt.Sprintf("risk:%s:*", schoolID)
}
