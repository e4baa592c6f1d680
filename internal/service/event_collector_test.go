package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/94R1K/student-metrics-backend/internal/models"
	appErrors "github.com/94R1K/student-metrics-backend/pkg/errors"
)

type mockEventWriter struct {
	inserted []models.Event
	err      error
}

func (m *mockEventWriter) InsertBatch(ctx context.Context, events []models.Event) error {
	if m.err != nil {
		return m.err
	}
	m.inserted = append(m.inserted, events...)
	return nil
}

func validEvent() models.Event {
	return models.Event{
		UserID:    "u1",
		CourseID:  "course-1",
		ModuleID:  "module-1",
		EventType: "page_view",
		Timestamp: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}
}

func TestIngestAcceptsBatch(t *testing.T) {
	writer := &mockEventWriter{}
	svc := NewEventCollectorService(writer, nil, nil)

	accepted, err := svc.Ingest(context.Background(), models.EventBatch{Events: []models.Event{validEvent(), validEvent()}})
	require.NoError(t, err)
	assert.Equal(t, 2, accepted)
	assert.Len(t, writer.inserted, 2)
}

func TestIngestGeneratesMissingIDs(t *testing.T) {
	writer := &mockEventWriter{}
	svc := NewEventCollectorService(writer, nil, nil)

	withID := validEvent()
	withID.ID = "explicit-id"
	_, err := svc.Ingest(context.Background(), models.EventBatch{Events: []models.Event{withID, validEvent()}})
	require.NoError(t, err)
	require.Len(t, writer.inserted, 2)
	assert.Equal(t, "explicit-id", writer.inserted[0].ID)
	assert.NotEmpty(t, writer.inserted[1].ID)
	assert.NotNil(t, writer.inserted[1].Payload)
}

func TestIngestRejectsEmptyBatch(t *testing.T) {
	writer := &mockEventWriter{}
	svc := NewEventCollectorService(writer, nil, nil)

	_, err := svc.Ingest(context.Background(), models.EventBatch{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, writer.inserted)
}

func TestIngestRejectsIncompleteEvent(t *testing.T) {
	writer := &mockEventWriter{}
	svc := NewEventCollectorService(writer, nil, nil)

	bad := validEvent()
	bad.UserID = ""
	_, err := svc.Ingest(context.Background(), models.EventBatch{Events: []models.Event{validEvent(), bad}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, writer.inserted)
}

func TestIngestStoreFailure(t *testing.T) {
	writer := &mockEventWriter{err: errors.New("connection refused")}
	svc := NewEventCollectorService(writer, nil, nil)

	_, err := svc.Ingest(context.Background(), models.EventBatch{Events: []models.Event{validEvent()}})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnavailable.Code, appErr.Code)
	assert.Equal(t, 503, appErr.Status)
}
