package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/94R1K/student-metrics-backend/internal/models"
	"github.com/94R1K/student-metrics-backend/pkg/clickhouse"
)

// chTimeLayout is the DateTime representation ClickHouse emits and accepts
// in JSON formats. All event timestamps are stored in UTC.
const chTimeLayout = "2006-01-02 15:04:05"

// EventRepository persists events append-only in ClickHouse and reads
// them back by course and half-open time window.
type EventRepository struct {
	ch    *clickhouse.Client
	table string
}

// NewEventRepository instantiates the repository.
func NewEventRepository(ch *clickhouse.Client, table string) *EventRepository {
	if table == "" {
		table = "events"
	}
	return &EventRepository{ch: ch, table: table}
}

type eventRow struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	CourseID  string `json:"course_id"`
	ModuleID  string `json:"module_id"`
	EventType string `json:"event_type"`
	Timestamp string `json:"timestamp"`
	Payload   string `json:"payload"`
}

// InsertBatch appends the events via a single JSONEachRow insert. The
// write is atomic-or-retryable from the caller's perspective; a failure
// leaves the batch's persistence unknown, not guaranteed absent.
func (r *EventRepository) InsertBatch(ctx context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}

	var body strings.Builder
	for _, ev := range events {
		payload := "{}"
		if ev.Payload != nil {
			raw, err := json.Marshal(ev.Payload)
			if err != nil {
				return fmt.Errorf("encode event payload: %w", err)
			}
			payload = string(raw)
		}
		line, err := json.Marshal(eventRow{
			ID:        ev.ID,
			UserID:    ev.UserID,
			CourseID:  ev.CourseID,
			ModuleID:  ev.ModuleID,
			EventType: ev.EventType,
			Timestamp: ev.Timestamp.UTC().Format(chTimeLayout),
			Payload:   payload,
		})
		if err != nil {
			return fmt.Errorf("encode event row: %w", err)
		}
		body.Write(line)
		body.WriteByte('\n')
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (id, user_id, course_id, module_id, event_type, timestamp, payload) FORMAT JSONEachRow",
		r.table,
	)
	if err := r.ch.Exec(ctx, query, []byte(body.String())); err != nil {
		return fmt.Errorf("insert event batch: %w", err)
	}
	return nil
}

// FetchWindow returns all events for the course whose timestamp falls in
// [start, end), ordered by (timestamp, id) so downstream computations see
// a deterministic sequence even across equal timestamps.
func (r *EventRepository) FetchWindow(ctx context.Context, courseID string, start, end time.Time) ([]models.Event, error) {
	query := fmt.Sprintf(`SELECT id, user_id, course_id, module_id, event_type, formatDateTime(timestamp, '%%Y-%%m-%%d %%H:%%i:%%S') AS timestamp, payload
FROM %s
WHERE course_id = '%s'
  AND timestamp >= toDateTime('%s')
  AND timestamp < toDateTime('%s')
ORDER BY timestamp, id
FORMAT JSON`,
		r.table,
		escapeString(courseID),
		start.UTC().Format(chTimeLayout),
		end.UTC().Format(chTimeLayout),
	)

	var rows []eventRow
	if err := r.ch.QueryJSON(ctx, query, &rows); err != nil {
		return nil, fmt.Errorf("fetch event window: %w", err)
	}

	events := make([]models.Event, 0, len(rows))
	for _, row := range rows {
		ts, err := time.ParseInLocation(chTimeLayout, row.Timestamp, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse event timestamp %q: %w", row.Timestamp, err)
		}
		ev := models.Event{
			ID:        row.ID,
			UserID:    row.UserID,
			CourseID:  row.CourseID,
			ModuleID:  row.ModuleID,
			EventType: row.EventType,
			Timestamp: ts,
		}
		if row.Payload != "" && row.Payload != "{}" {
			if err := json.Unmarshal([]byte(row.Payload), &ev.Payload); err != nil {
				return nil, fmt.Errorf("decode event payload: %w", err)
			}
		}
		events = append(events, ev)
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].ID < events[j].ID
		}
		return events[i].Timestamp.Before(events[j].Timestamp)
	})

	return events, nil
}

func escapeString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
