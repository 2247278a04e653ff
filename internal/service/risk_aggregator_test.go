package service

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/behavior-tracker-api/internal/models"
)

func strPtr(s string) *string { return &s }

func logRow(id, severity string, studentID, classID *string) models.BehaviorLogRow {
	return models.BehaviorLogRow{BehaviorLog: models.BehaviorLog{
		ID:        id,
		Severity:  severity,
		StudentID: studentID,
		ClassID:   classID,
	}}
}

func TestAggregateRiskSingleStudentScenario(t *testing.T) {
	s1 := strPtr("S1")
	rows := []models.BehaviorLogRow{
		logRow("1", "high", s1, nil),
		logRow("2", "high", s1, nil),
		logRow("3", "low", s1, nil),
	}

	agg := AggregateRisk(rows)
	require.Len(t, agg.ByStudent, 1)
	assert.Equal(t, models.RiskBucket{Key: "S1", DisplayName: "—", TotalLogs: 3, High: 2, Medium: 0, Low: 1, RiskScore: 7}, agg.ByStudent[0])
	assert.Empty(t, agg.ByClass)
	require.Len(t, agg.ByRoom, 1)
	assert.Equal(t, models.UnknownRoom, agg.ByRoom[0].Key)
	assert.Equal(t, 7, agg.ByRoom[0].RiskScore)
}

func TestAggregateRiskEmpty(t *testing.T) {
	agg := AggregateRisk(nil)
	assert.Equal(t, models.RiskSummary{}, agg.Summary)
	assert.NotNil(t, agg.ByStudent)
	assert.NotNil(t, agg.ByClass)
	assert.NotNil(t, agg.ByRoom)
	assert.Empty(t, agg.ByStudent)
	assert.Empty(t, agg.ByClass)
	assert.Empty(t, agg.ByRoom)
}

func TestAggregateRiskUnknownSeverityCountsAsLow(t *testing.T) {
	agg := AggregateRisk([]models.BehaviorLogRow{
		logRow("1", "", strPtr("S1"), nil),
		logRow("2", "CRITICAL", strPtr("S1"), nil),
		logRow("3", " Medium ", strPtr("S1"), nil),
	})
	assert.Equal(t, 2, agg.Summary.LowCount)
	assert.Equal(t, 1, agg.Summary.MediumCount)
	assert.Equal(t, 4, agg.ByStudent[0].RiskScore)
}

func TestAggregateRiskRoomPrecedence(t *testing.T) {
	withClassRoom := logRow("1", "high", nil, strPtr("C1"))
	withClassRoom.ClassRoom = strPtr("R-101")
	withClassRoom.Room = strPtr("Gym")
	withClassRoom.ClassName = strPtr("7A")

	withLogRoom := logRow("2", "medium", nil, nil)
	withLogRoom.Room = strPtr("Gym")

	bare := logRow("3", "low", nil, nil)

	agg := AggregateRisk([]models.BehaviorLogRow{withClassRoom, withLogRoom, bare})
	require.Len(t, agg.ByRoom, 3)
	assert.Equal(t, "R-101", agg.ByRoom[0].Key)
	assert.Equal(t, "Gym", agg.ByRoom[1].Key)
	assert.Equal(t, models.UnknownRoom, agg.ByRoom[2].Key)
	require.Len(t, agg.ByClass, 1)
	assert.Equal(t, "7A", agg.ByClass[0].DisplayName)
	assert.Equal(t, 0, agg.Summary.StudentCount)
	assert.Equal(t, 1, agg.Summary.ClassCount)
	assert.Equal(t, 3, agg.Summary.RoomCount)
}

func TestAggregateRiskOrdering(t *testing.T) {
	a, b, c, d := strPtr("A"), strPtr("B"), strPtr("C"), strPtr("D")
	// A and D tie on score and count, B ties them on score but has more logs.
	rows := []models.BehaviorLogRow{
		logRow("1", "medium", a, nil),
		logRow("2", "low", b, nil),
		logRow("3", "low", b, nil),
		logRow("4", "high", c, nil),
		logRow("5", "medium", d, nil),
	}
	agg := AggregateRisk(rows)
	keys := make([]string, 0, len(agg.ByStudent))
	for _, bucket := range agg.ByStudent {
		keys = append(keys, bucket.Key)
	}
	assert.Equal(t, []string{"C", "B", "A", "D"}, keys)
}

func TestAggregateRiskInvariants(t *testing.T) {
	severities := []string{"high", "medium", "low", "", "weird"}
	students := []*string{strPtr("S1"), strPtr("S2"), strPtr("S3")}
	classes := []*string{nil, strPtr("C1"), strPtr("C2")}
	rnd := rand.New(rand.NewSource(42))

	for trial := 0; trial < 50; trial++ {
		n := 1 + rnd.Intn(40)
		rows := make([]models.BehaviorLogRow, n)
		maxWeight := 0
		for i := range rows {
			sev := severities[rnd.Intn(len(severities))]
			rows[i] = logRow("", sev, students[rnd.Intn(len(students))], classes[rnd.Intn(len(classes))])
			if w := models.NormalizeSeverity(sev).Weight(); w > maxWeight {
				maxWeight = w
			}
		}

		first := AggregateRisk(rows)
		second := AggregateRisk(rows)
		assert.Equal(t, first, second)

		s := first.Summary
		assert.Equal(t, s.TotalLogs, s.HighCount+s.MediumCount+s.LowCount)
		assert.Equal(t, n, s.TotalLogs)

		sum := 0
		for _, bucket := range first.ByStudent {
			sum += bucket.RiskScore
			assert.Equal(t, bucket.TotalLogs, bucket.High+bucket.Medium+bucket.Low)
		}
		assert.GreaterOrEqual(t, sum, maxWeight)

		roomLogs := 0
		for _, bucket := range first.ByRoom {
			roomLogs += bucket.TotalLogs
		}
		assert.Equal(t, n, roomLogs)
	}
}
