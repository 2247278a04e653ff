package service

import (
	"sort"

	"github.com/noah-isme/behavior-tracker-api/internal/models"
)

// riskGroup accumulates buckets in first-seen order.
type riskGroup struct {
	index   map[string]int
	buckets []models.RiskBucket
}

func newRiskGroup() *riskGroup {
	return &riskGroup{index: make(map[string]int)}
}

func (g *riskGroup) add(key, displayName string, severity models.Severity) {
	i, ok := g.index[key]
	if !ok {
		i = len(g.buckets)
		g.index[key] = i
		g.buckets = append(g.buckets, models.RiskBucket{Key: key, DisplayName: displayName})
	}
	b := &g.buckets[i]
	b.TotalLogs++
	switch severity {
	case models.SeverityHigh:
		b.High++
	case models.SeverityMedium:
		b.Medium++
	default:
		b.Low++
	}
	b.RiskScore += severity.Weight()
}

// sorted orders by risk score, then log count, both descending. Ties keep first-seen order.
func (g *riskGroup) sorted() []models.RiskBucket {
	out := make([]models.RiskBucket, len(g.buckets))
	copy(out, g.buckets)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RiskScore != out[j].RiskScore {
			return out[i].RiskScore > out[j].RiskScore
		}
		return out[i].TotalLogs > out[j].TotalLogs
	})
	return out
}

// AggregateRisk folds behavior log rows into per-student, per-class and per-room
// risk buckets plus a global summary in a single pass. It never fails and never
// filters: rows without a student or class are simply left out of that grouping,
// while every row lands in exactly one room bucket.
func AggregateRisk(rows []models.BehaviorLogRow) models.RiskAggregate {
	students := newRiskGroup()
	classes := newRiskGroup()
	rooms := newRiskGroup()

	var summary models.RiskSummary
	for _, row := range rows {
		severity := models.NormalizeSeverity(row.Severity)
		summary.TotalLogs++
		switch severity {
		case models.SeverityHigh:
			summary.HighCount++
		case models.SeverityMedium:
			summary.MediumCount++
		default:
			summary.LowCount++
		}

		if row.StudentID != nil && *row.StudentID != "" {
			students.add(*row.StudentID, row.StudentDisplayName(), severity)
		}
		if row.ClassID != nil && *row.ClassID != "" {
			classes.add(*row.ClassID, row.ClassDisplayName(), severity)
		}
		room := row.ResolvedRoom()
		rooms.add(room, room, severity)
	}

	summary.StudentCount = len(students.buckets)
	summary.ClassCount = len(classes.buckets)
	summary.RoomCount = len(rooms.buckets)

	return models.RiskAggregate{
		Summary:   summary,
		ByStudent: students.sorted(),
		ByClass:   classes.sorted(),
		ByRoom:    rooms.sorted(),
	}
}
