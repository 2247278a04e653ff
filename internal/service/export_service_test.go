package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/behavior-tracker-api/internal/models"
	appErrors "github.com/noah-isme/behavior-tracker-api/pkg/errors"
	"github.com/noah-isme/behavior-tracker-api/pkg/timerange"
)

type stubStudentReader struct {
	student *models.Student
	err     error
}

func (s stubStudentReader) FindByID(ctx context.Context, id string) (*models.Student, error) {
	return s.student, s.err
}

type stubClassReader struct {
	class *models.Class
	err   error
}

func (s stubClassReader) FindByID(ctx context.Context, id string) (*models.Class, error) {
	return s.class, s.err
}

func fullRow() models.BehaviorLogRow {
	return models.BehaviorLogRow{
		BehaviorLog: models.BehaviorLog{
			ID:        "log-1",
			StudentID: strPtr("stu-1"),
			ClassID:   strPtr("class-1"),
			Room:      strPtr("Hall"),
			Category:  "disruption",
			Severity:  "high",
			Summary:   `Said "no", then left, then
came back`,
			CreatedAt: time.Date(2024, 6, 1, 9, 15, 0, 0, time.UTC),
		},
		StudentFirstName: strPtr("Ana"),
		StudentLastName:  strPtr("Lopez"),
		StudentCode:      strPtr("S-01"),
		ClassName:        strPtr("7A"),
		ClassRoom:        strPtr("Room 12"),
	}
}

func parseCSV(t *testing.T, payload []byte) [][]string {
	t.Helper()
	records, err := csv.NewReader(bytes.NewReader(payload)).ReadAll()
	require.NoError(t, err)
	return records
}

func TestLogsCSVGeneralFlavor(t *testing.T) {
	sparse := models.BehaviorLogRow{BehaviorLog: models.BehaviorLog{ID: "log-2", Severity: "low", Category: "late", CreatedAt: fixedNow}}
	reader := &stubRowReader{rows: []models.BehaviorLogRow{fullRow(), sparse}}
	svc := NewExportService(reader, nil, nil, nil, nil, ExportConfig{PageSize: 10})

	window := timerange.Resolve("7d", fixedNow)
	file, err := svc.LogsCSV(context.Background(), models.BehaviorLogFilter{Severity: "high", SchoolID: "school-1"}, window, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "behavior-logs-7d-20240630.csv", file.Filename)
	assert.Equal(t, "text/csv; charset=utf-8", file.ContentType)
	assert.Equal(t, 2, file.Rows)
	assert.Equal(t, 10, reader.lastFilter.Limit)
	assert.Equal(t, window.From, reader.lastFilter.From)
	assert.Equal(t, "high", reader.lastFilter.Severity)

	records := parseCSV(t, file.Payload)
	require.Len(t, records, 3)
	assert.Equal(t, GeneralLogHeaders, records[0])
	assert.Equal(t, []string{"2024-06-01 09:15", "Ana Lopez", "7A", "Room 12", "high", "disruption", fullRow().Summary, "stu-1", "class-1", "log-1", "Last 7 days"}, records[1])
	assert.Equal(t, []string{"2024-06-30 12:00", "—", "—", "", "low", "late", "", "", "", "log-2", "Last 7 days"}, records[2])
	assert.True(t, strings.HasPrefix(string(file.Payload), `"Date/Time","Student"`))
	assert.True(t, strings.HasSuffix(string(file.Payload), "\"Last 7 days\"\n"))
}

func TestLogsCSVEmptyIsHeaderOnly(t *testing.T) {
	svc := NewExportService(&stubRowReader{}, nil, nil, nil, nil, ExportConfig{})
	file, err := svc.LogsCSV(context.Background(), models.BehaviorLogFilter{}, timerange.Resolve("", fixedNow), fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 0, file.Rows)
	assert.Equal(t, 1, strings.Count(string(file.Payload), "\n"))
}

func TestLogsCSVStoreError(t *testing.T) {
	svc := NewExportService(&stubRowReader{err: errors.New("boom")}, nil, nil, nil, nil, ExportConfig{})
	_, err := svc.LogsCSV(context.Background(), models.BehaviorLogFilter{}, timerange.Resolve("", fixedNow), fixedNow)
	require.Error(t, err)
	assert.Equal(t, 500, appErrors.FromError(err).Status)
}

func TestStudentCSV(t *testing.T) {
	reader := &stubRowReader{rows: []models.BehaviorLogRow{fullRow()}}
	students := stubStudentReader{student: &models.Student{ID: "stu-1", SchoolID: "school-1", Code: "S-01"}}
	svc := NewExportService(reader, students, nil, nil, nil, ExportConfig{})

	window := timerange.Resolve("30d", fixedNow)
	file, err := svc.StudentCSV(context.Background(), "stu-1", "school-1", window, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "student-s-01-logs-30d-20240630.csv", file.Filename)
	assert.Equal(t, "stu-1", reader.lastFilter.StudentID)

	records := parseCSV(t, file.Payload)
	require.Len(t, records, 2)
	assert.Equal(t, StudentReportHeaders, records[0])
	assert.Equal(t, []string{"log-1", "Ana Lopez", "S-01", "7A", "Room 12", "high", "disruption", fullRow().Summary, "2024-06-01T09:15:00Z", "Last 30 days"}, records[1])
}

func TestStudentCSVNotFound(t *testing.T) {
	svc := NewExportService(&stubRowReader{}, stubStudentReader{err: sql.ErrNoRows}, nil, nil, nil, ExportConfig{})
	_, err := svc.StudentCSV(context.Background(), "ghost", "", timerange.Resolve("", fixedNow), fixedNow)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	other := stubStudentReader{student: &models.Student{ID: "stu-1", SchoolID: "school-2"}}
	svc = NewExportService(&stubRowReader{}, other, nil, nil, nil, ExportConfig{})
	_, err = svc.StudentCSV(context.Background(), "stu-1", "school-1", timerange.Resolve("", fixedNow), fixedNow)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestClassCSV(t *testing.T) {
	reader := &stubRowReader{rows: []models.BehaviorLogRow{fullRow()}}
	classes := stubClassReader{class: &models.Class{ID: "class-1", SchoolID: "school-1", Name: "7A"}}
	svc := NewExportService(reader, nil, classes, nil, nil, ExportConfig{})

	window := timerange.Resolve("90d", fixedNow)
	file, err := svc.ClassCSV(context.Background(), "class-1", "school-1", window, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "class-7a-logs-90d-20240630.csv", file.Filename)

	records := parseCSV(t, file.Payload)
	require.Len(t, records, 2)
	assert.Equal(t, ClassReportHeaders, records[0])
	assert.Equal(t, []string{"log-1", "class-1", "7A", "Room 12", "stu-1", "Ana Lopez", "S-01", "high", "disruption", fullRow().Summary, "2024-06-01T09:15:00Z", "90d", "Last 90 days"}, records[1])

	svc = NewExportService(reader, nil, stubClassReader{err: sql.ErrNoRows}, nil, nil, ExportConfig{})
	_, err = svc.ClassCSV(context.Background(), "ghost", "", window, fixedNow)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestRiskFileFormats(t *testing.T) {
	s1 := strPtr("S1")
	agg := AggregateRisk([]models.BehaviorLogRow{
		logRow("1", "high", s1, strPtr("C1")),
		logRow("2", "high", s1, strPtr("C1")),
		logRow("3", "low", s1, nil),
	})
	report := &models.RiskReport{Range: timerange.Resolve("30d", fixedNow), RiskAggregate: agg}
	svc := NewExportService(&stubRowReader{}, nil, nil, NewMetricsService(), nil, ExportConfig{})

	file, err := svc.RiskFile(report, ExportFormatCSV, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "risk-report-30d-20240630.csv", file.Filename)
	records := parseCSV(t, file.Payload)
	require.Len(t, records, 4)
	assert.Equal(t, RiskExportHeaders, records[0])
	assert.Equal(t, []string{"student", "S1", "—", "3", "2", "0", "1", "7"}, records[1])
	assert.Equal(t, []string{"class", "C1", "—", "2", "2", "0", "0", "6"}, records[2])
	assert.Equal(t, []string{"room", models.UnknownRoom, models.UnknownRoom, "3", "2", "0", "1", "7"}, records[3])

	pdf, err := svc.RiskFile(report, ExportFormatPDF, fixedNow)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf.Payload, []byte("%PDF")))
	assert.Equal(t, "application/pdf", pdf.ContentType)

	xlsx, err := svc.RiskFile(report, ExportFormatXLSX, fixedNow)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(xlsx.Payload, []byte("PK")))
	assert.True(t, strings.HasSuffix(xlsx.Filename, ".xlsx"))
}

func TestParseExportFormat(t *testing.T) {
	f, err := ParseExportFormat("")
	require.NoError(t, err)
	assert.Equal(t, ExportFormatCSV, f)

	f, err = ParseExportFormat(" PDF ")
	require.NoError(t, err)
	assert.Equal(t, ExportFormatPDF, f)

	_, err = ParseExportFormat("docx")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestLogsCSVPagesThroughEveryRow(t *testing.T) {
	reader := &stubRowReader{rows: highRows(25)}
	svc := NewExportService(reader, nil, nil, nil, nil, ExportConfig{PageSize: 10})

	file, err := svc.LogsCSV(context.Background(), models.BehaviorLogFilter{}, timerange.Resolve("12m", fixedNow), fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 3, reader.calls)
	assert.Equal(t, 25, file.Rows)
	records := parseCSV(t, file.Payload)
	require.Len(t, records, 26)
	assert.Equal(t, "log-00001", records[25][9])
}

func TestLogsCSVRefusesSetsOverTheCap(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	metrics := NewMetricsService()
	reader := &stubRowReader{rows: highRows(30)}
	svc := NewExportService(reader, nil, nil, metrics, zap.New(core), ExportConfig{PageSize: 10, MaxRows: 15})

	file, err := svc.LogsCSV(context.Background(), models.BehaviorLogFilter{}, timerange.Resolve("12m", fixedNow), fixedNow)
	require.Error(t, err)
	assert.Nil(t, file)
	assert.ErrorIs(t, err, ErrExportTooLarge)
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusUnprocessableEntity, appErr.Status)
	assert.Contains(t, appErr.Message, "15 rows")
	assert.Equal(t, 2, reader.calls)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "export refused, row cap exceeded", logs.All()[0].Message)
	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	var refused float64
	for _, family := range families {
		if family.GetName() == "export_refused_total" {
			refused = family.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.Equal(t, float64(1), refused)
}
