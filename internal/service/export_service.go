package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/behavior-tracker-api/internal/models"
	appErrors "github.com/noah-isme/behavior-tracker-api/pkg/errors"
	"github.com/noah-isme/behavior-tracker-api/pkg/export"
	"github.com/noah-isme/behavior-tracker-api/pkg/middleware/requestid"
	"github.com/noah-isme/behavior-tracker-api/pkg/timerange"
)

// Column sets for each export flavor. Order is part of the file contract.
var (
	StudentReportHeaders = []string{"log_id", "student_name", "student_code", "class_name", "room", "severity", "category", "summary", "created_at", "range_label"}
	ClassReportHeaders   = []string{"log_id", "class_id", "class_name", "room", "student_id", "student_name", "student_code", "severity", "category", "summary", "created_at", "range_key", "range_label"}
	GeneralLogHeaders    = []string{"Date/Time", "Student", "Class", "Room", "Severity", "Category", "Summary", "Student ID", "Class ID", "Log ID", "Range"}
	RiskExportHeaders    = []string{"scope", "key", "name", "total_logs", "high", "medium", "low", "risk_score"}
)

const generalTimestampLayout = "2006-01-02 15:04"

// ErrExportTooLarge is returned when a filtered set is larger than the export cap.
var ErrExportTooLarge = appErrors.New("EXPORT_TOO_LARGE", http.StatusUnprocessableEntity, "export too large")

// ExportFormat selects the renderer for a risk export.
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatPDF  ExportFormat = "pdf"
	ExportFormatXLSX ExportFormat = "xlsx"
)

// ParseExportFormat maps a query value onto a format. Empty means csv.
func ParseExportFormat(raw string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(strings.TrimSpace(raw))); f {
	case "":
		return ExportFormatCSV, nil
	case ExportFormatCSV, ExportFormatPDF, ExportFormatXLSX:
		return f, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, "format is invalid")
	}
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type classReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
}

type pdfRenderer interface {
	Render(data export.Dataset, title, subtitle string) ([]byte, error)
	ContentType() string
}

type xlsxRenderer interface {
	Render(data export.Dataset, sheetName string) ([]byte, error)
	ContentType() string
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Payload     []byte
	Rows        int
}

// ExportConfig bounds export queries. An export whose filtered set exceeds
// MaxRows is refused rather than truncated.
type ExportConfig struct {
	MaxRows  int
	PageSize int
}

// ExportService turns behavior logs and risk aggregates into downloadable files.
type ExportService struct {
	logs     behaviorRowReader
	students studentReader
	classes  classReader
	csv      csvRenderer
	pdf      pdfRenderer
	xlsx     xlsxRenderer
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      ExportConfig
}

// NewExportService constructs an ExportService with the default renderers.
func NewExportService(logs behaviorRowReader, students studentReader, classes classReader, metrics *MetricsService, logger *zap.Logger, cfg ExportConfig) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 50000
	}
	return &ExportService{
		logs:     logs,
		students: students,
		classes:  classes,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		xlsx:     export.NewXLSXExporter(),
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
	}
}

// LogsCSV renders the general logs export for the filter.
func (s *ExportService) LogsCSV(ctx context.Context, filter models.BehaviorLogFilter, window timerange.Window, now time.Time) (*ExportFile, error) {
	filter.From = window.From
	rows, err := s.loadRows(ctx, "export_logs", filter)
	if err != nil {
		return nil, err
	}
	return s.renderCSV("logs", GeneralLogsDataset(rows, window), fmt.Sprintf("behavior-logs-%s-%s.csv", window.Key, now.UTC().Format("20060102")))
}

// StudentCSV renders the per-student report. The student must exist within schoolID.
func (s *ExportService) StudentCSV(ctx context.Context, studentID, schoolID string, window timerange.Window, now time.Time) (*ExportFile, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Internal(err, "failed to load student")
	}
	if schoolID != "" && student.SchoolID != schoolID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}

	rows, err := s.loadRows(ctx, "export_student", models.BehaviorLogFilter{StudentID: student.ID, From: window.From})
	if err != nil {
		return nil, err
	}
	name := filenameToken(student.Code, student.ID)
	return s.renderCSV("student", StudentReportDataset(rows, window), fmt.Sprintf("student-%s-logs-%s-%s.csv", name, window.Key, now.UTC().Format("20060102")))
}

// ClassCSV renders the per-class report. The class must exist within schoolID.
func (s *ExportService) ClassCSV(ctx context.Context, classID, schoolID string, window timerange.Window, now time.Time) (*ExportFile, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Internal(err, "failed to load class")
	}
	if schoolID != "" && class.SchoolID != schoolID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}

	rows, err := s.loadRows(ctx, "export_class", models.BehaviorLogFilter{ClassID: class.ID, From: window.From})
	if err != nil {
		return nil, err
	}
	name := filenameToken(class.Name, class.ID)
	return s.renderCSV("class", ClassReportDataset(rows, window), fmt.Sprintf("class-%s-logs-%s-%s.csv", name, window.Key, now.UTC().Format("20060102")))
}

// RiskFile renders a risk report in the requested format.
func (s *ExportService) RiskFile(report *models.RiskReport, format ExportFormat, now time.Time) (*ExportFile, error) {
	data := RiskDataset(report.RiskAggregate)
	base := fmt.Sprintf("risk-report-%s-%s", report.Range.Key, now.UTC().Format("20060102"))

	switch format {
	case ExportFormatPDF:
		subtitle := fmt.Sprintf("%s | generated %s", report.Range.Label, now.UTC().Format(time.RFC3339))
		payload, err := s.pdf.Render(data, "Behavior risk report", subtitle)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to render pdf")
		}
		s.metrics.AddExportRows("risk_pdf", len(data.Rows))
		return &ExportFile{Filename: base + ".pdf", ContentType: s.pdf.ContentType(), Payload: payload, Rows: len(data.Rows)}, nil
	case ExportFormatXLSX:
		payload, err := s.xlsx.Render(data, "Risk")
		if err != nil {
			return nil, appErrors.Internal(err, "failed to render xlsx")
		}
		s.metrics.AddExportRows("risk_xlsx", len(data.Rows))
		return &ExportFile{Filename: base + ".xlsx", ContentType: s.xlsx.ContentType(), Payload: payload, Rows: len(data.Rows)}, nil
	default:
		return s.renderCSV("risk", data, base+".csv")
	}
}

func (s *ExportService) loadRows(ctx context.Context, label string, filter models.BehaviorLogFilter) ([]models.BehaviorLogRow, error) {
	start := time.Now()
	rows, err := scanRows(ctx, s.logs, filter, s.cfg.PageSize, s.cfg.MaxRows)
	s.metrics.ObserveDBQuery(label, time.Since(start))
	switch {
	case errors.Is(err, errRowCapExceeded):
		s.logger.Warn("export refused, row cap exceeded",
			zap.String("export", label),
			zap.Int("max_rows", s.cfg.MaxRows),
			zap.String("request_id", requestid.FromContext(ctx)))
		s.metrics.RecordExportRefused(label)
		return nil, appErrors.New(ErrExportTooLarge.Code, ErrExportTooLarge.Status,
			fmt.Sprintf("export exceeds %d rows, narrow the range or filters", s.cfg.MaxRows))
	case err != nil:
		return nil, appErrors.Internal(err, "failed to load behavior logs")
	}
	return rows, nil
}

func (s *ExportService) renderCSV(flavor string, data export.Dataset, filename string) (*ExportFile, error) {
	payload, err := s.csv.Render(data)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render csv")
	}
	s.metrics.AddExportRows(flavor, len(data.Rows))
	s.logger.Debug("export rendered", zap.String("flavor", flavor), zap.Int("rows", len(data.Rows)))
	return &ExportFile{Filename: filename, ContentType: s.csv.ContentType(), Payload: payload, Rows: len(data.Rows)}, nil
}

// GeneralLogsDataset maps rows onto the general logs columns.
func GeneralLogsDataset(rows []models.BehaviorLogRow, window timerange.Window) export.Dataset {
	data := export.Dataset{Headers: GeneralLogHeaders, Rows: make([]map[string]string, 0, len(rows))}
	for _, row := range rows {
		data.Rows = append(data.Rows, map[string]string{
			"Date/Time":  row.CreatedAt.UTC().Format(generalTimestampLayout),
			"Student":    row.StudentDisplayName(),
			"Class":      row.ClassDisplayName(),
			"Room":       exportRoom(row),
			"Severity":   row.Severity,
			"Category":   row.Category,
			"Summary":    row.Summary,
			"Student ID": value(row.StudentID),
			"Class ID":   value(row.ClassID),
			"Log ID":     row.ID,
			"Range":      window.Label,
		})
	}
	return data
}

// StudentReportDataset maps rows onto the student report columns.
func StudentReportDataset(rows []models.BehaviorLogRow, window timerange.Window) export.Dataset {
	data := export.Dataset{Headers: StudentReportHeaders, Rows: make([]map[string]string, 0, len(rows))}
	for _, row := range rows {
		data.Rows = append(data.Rows, map[string]string{
			"log_id":       row.ID,
			"student_name": row.StudentDisplayName(),
			"student_code": value(row.StudentCode),
			"class_name":   row.ClassDisplayName(),
			"room":         exportRoom(row),
			"severity":     row.Severity,
			"category":     row.Category,
			"summary":      row.Summary,
			"created_at":   row.CreatedAt.UTC().Format(time.RFC3339),
			"range_label":  window.Label,
		})
	}
	return data
}

// ClassReportDataset maps rows onto the class report columns.
func ClassReportDataset(rows []models.BehaviorLogRow, window timerange.Window) export.Dataset {
	data := export.Dataset{Headers: ClassReportHeaders, Rows: make([]map[string]string, 0, len(rows))}
	for _, row := range rows {
		data.Rows = append(data.Rows, map[string]string{
			"log_id":       row.ID,
			"class_id":     value(row.ClassID),
			"class_name":   row.ClassDisplayName(),
			"room":         exportRoom(row),
			"student_id":   value(row.StudentID),
			"student_name": row.StudentDisplayName(),
			"student_code": value(row.StudentCode),
			"severity":     row.Severity,
			"category":     row.Category,
			"summary":      row.Summary,
			"created_at":   row.CreatedAt.UTC().Format(time.RFC3339),
			"range_key":    window.Key,
			"range_label":  window.Label,
		})
	}
	return data
}

// RiskDataset flattens an aggregate into student, then class, then room rows.
func RiskDataset(agg models.RiskAggregate) export.Dataset {
	data := export.Dataset{Headers: RiskExportHeaders}
	data.Rows = make([]map[string]string, 0, len(agg.ByStudent)+len(agg.ByClass)+len(agg.ByRoom))
	appendScope := func(scope string, buckets []models.RiskBucket) {
		for _, b := range buckets {
			data.Rows = append(data.Rows, map[string]string{
				"scope":      scope,
				"key":        b.Key,
				"name":       b.DisplayName,
				"total_logs": strconv.Itoa(b.TotalLogs),
				"high":       strconv.Itoa(b.High),
				"medium":     strconv.Itoa(b.Medium),
				"low":        strconv.Itoa(b.Low),
				"risk_score": strconv.Itoa(b.RiskScore),
			})
		}
	}
	appendScope("student", agg.ByStudent)
	appendScope("class", agg.ByClass)
	appendScope("room", agg.ByRoom)
	return data
}

// exportRoom is the resolved room, left blank when neither class nor log carries one.
func exportRoom(row models.BehaviorLogRow) string {
	room := row.ResolvedRoom()
	if room == models.UnknownRoom {
		return ""
	}
	return room
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func filenameToken(preferred, fallback string) string {
	raw := strings.TrimSpace(preferred)
	if raw == "" {
		raw = fallback
	}
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "export"
	}
	return b.String()
}
