package service

import (
	"context"
	"errors"

	"github.com/noah-isme/behavior-tracker-api/internal/models"
)

const defaultScanPageSize = 1000

var errRowCapExceeded = errors.New("row cap exceeded")

// scanRows pages through every row matching filter, newest first. filter.Limit
// and filter.Before are managed here. With maxRows > 0 the scan stops with
// errRowCapExceeded as soon as the set is known to be larger.
func scanRows(ctx context.Context, reader behaviorRowReader, filter models.BehaviorLogFilter, pageSize, maxRows int) ([]models.BehaviorLogRow, error) {
	if pageSize <= 0 {
		pageSize = defaultScanPageSize
	}
	if pageSize > models.MaxLogPageSize {
		pageSize = models.MaxLogPageSize
	}
	filter.Limit = pageSize
	filter.Before = nil

	var rows []models.BehaviorLogRow
	for {
		page, err := reader.ListRows(ctx, filter)
		if err != nil {
			return nil, err
		}
		rows = append(rows, page...)
		if maxRows > 0 && len(rows) > maxRows {
			return nil, errRowCapExceeded
		}
		if len(page) < pageSize {
			return rows, nil
		}
		filter.Before = page[len(page)-1].Cursor()
	}
}
