package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/94R1K/student-metrics-backend/internal/models"
	appErrors "github.com/94R1K/student-metrics-backend/pkg/errors"
)

// eventWriter appends a batch of events to the analytical store.
type eventWriter interface {
	InsertBatch(ctx context.Context, events []models.Event) error
}

// EventCollectorService validates event batches and hands them to the
// event store. Admission is all-or-nothing per batch.
type EventCollectorService struct {
	repo      eventWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEventCollectorService constructs the collector.
func NewEventCollectorService(repo eventWriter, validate *validator.Validate, logger *zap.Logger) *EventCollectorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventCollectorService{repo: repo, validator: validate, logger: logger}
}

// Ingest accepts a non-empty batch and persists every event before
// reporting the accepted count. Malformed input rejects the whole batch
// with no side effects; a store failure surfaces as service-unavailable
// and the caller must treat the write outcome as unknown.
func (s *EventCollectorService) Ingest(ctx context.Context, batch models.EventBatch) (int, error) {
	if err := s.validator.Struct(batch); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event batch")
	}

	events := make([]models.Event, len(batch.Events))
	copy(events, batch.Events)
	for i := range events {
		if events[i].ID == "" {
			events[i].ID = uuid.NewString()
		}
		if events[i].Payload == nil {
			events[i].Payload = map[string]interface{}{}
		}
	}

	if err := s.repo.InsertBatch(ctx, events); err != nil {
		s.logger.Error("event batch ingestion failed", zap.Int("batch_size", len(events)), zap.Error(err))
		return 0, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to ingest events")
	}

	return len(events), nil
}
