package service

import (
	"context"
	"sort"
	"time"

	"github.com/94R1K/student-metrics-backend/internal/models"
	appErrors "github.com/94R1K/student-metrics-backend/pkg/errors"
)

// EventReader reads a course's event window from the analytical store.
type EventReader interface {
	FetchWindow(ctx context.Context, courseID string, start, end time.Time) ([]models.Event, error)
}

// MetricQueryExecutor resolves a (metric, course, window) request into
// per-user scalars. It owns no state: it pulls the window from the event
// store and applies the matching definition, so the store backend stays
// swappable behind EventReader.
type MetricQueryExecutor struct {
	events    EventReader
	telemetry *TelemetryService
}

// NewMetricQueryExecutor constructs the executor.
func NewMetricQueryExecutor(events EventReader, telemetry *TelemetryService) *MetricQueryExecutor {
	return &MetricQueryExecutor{events: events, telemetry: telemetry}
}

// FetchMetric returns one row per user active in the window, ordered by
// user id. A read failure is an infrastructure condition, not a data
// error; callers may retry.
func (e *MetricQueryExecutor) FetchMetric(
	ctx context.Context,
	metric models.MetricName,
	courseID string,
	start, end time.Time,
) ([]models.MetricRow, error) {
	began := time.Now()
	events, err := e.events.FetchWindow(ctx, courseID, start, end)
	if e.telemetry != nil {
		e.telemetry.ObserveEventStoreQuery(string(metric), time.Since(began), err == nil)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "event store read failed")
	}

	values, err := ComputeMetric(metric, events)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unsupported metric")
	}

	rows := make([]models.MetricRow, 0, len(values))
	for userID, value := range values {
		rows = append(rows, models.MetricRow{UserID: userID, Value: value})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].UserID < rows[j].UserID })

	return rows, nil
}
