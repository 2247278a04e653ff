package models

import "github.com/noah-isme/behavior-tracker-api/pkg/timerange"

// RiskSummary is the global tally across all aggregated logs.
type RiskSummary struct {
	TotalLogs    int `json:"totalLogs"`
	HighCount    int `json:"highCount"`
	MediumCount  int `json:"mediumCount"`
	LowCount     int `json:"lowCount"`
	StudentCount int `json:"studentCount"`
	ClassCount   int `json:"classCount"`
	RoomCount    int `json:"roomCount"`
}

// RiskBucket is the per-entity tally for a student, class or room.
type RiskBucket struct {
	Key         string `json:"key"`
	DisplayName string `json:"display_name"`
	TotalLogs   int    `json:"total_logs"`
	High        int    `json:"high"`
	Medium      int    `json:"medium"`
	Low         int    `json:"low"`
	RiskScore   int    `json:"risk_score"`
}

// RiskAggregate groups behavior logs by student, class and room.
type RiskAggregate struct {
	Summary   RiskSummary  `json:"summary"`
	ByStudent []RiskBucket `json:"by_student"`
	ByClass   []RiskBucket `json:"by_class"`
	ByRoom    []RiskBucket `json:"by_room"`
}

// RiskReport is a RiskAggregate scoped to a resolved time window.
type RiskReport struct {
	Range timerange.Window `json:"range"`
	RiskAggregate
}
