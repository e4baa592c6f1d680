package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/94R1K/student-metrics-backend/internal/models"
	"github.com/94R1K/student-metrics-backend/internal/service"
	appErrors "github.com/94R1K/student-metrics-backend/pkg/errors"
	"github.com/94R1K/student-metrics-backend/pkg/response"
)

// EventHandler exposes the event ingestion endpoint.
type EventHandler struct {
	collector *service.EventCollectorService
	telemetry *service.TelemetryService
}

// NewEventHandler constructs the handler.
func NewEventHandler(collector *service.EventCollectorService, telemetry *service.TelemetryService) *EventHandler {
	return &EventHandler{collector: collector, telemetry: telemetry}
}

// Ingest accepts a batch of events and responds with the accepted count.
func (h *EventHandler) Ingest(c *gin.Context) {
	var batch models.EventBatch
	if err := c.ShouldBindJSON(&batch); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event batch payload"))
		return
	}

	accepted, err := h.collector.Ingest(c.Request.Context(), batch)
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.telemetry != nil {
		h.telemetry.RecordIngestedEvents(accepted)
	}
	response.Accepted(c, models.EventIngestResponse{Accepted: accepted})
}
