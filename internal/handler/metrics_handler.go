package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/94R1K/student-metrics-backend/internal/models"
	"github.com/94R1K/student-metrics-backend/internal/service"
	appErrors "github.com/94R1K/student-metrics-backend/pkg/errors"
	"github.com/94R1K/student-metrics-backend/pkg/response"
)

// MetricsHandler exposes the on-demand metric computation endpoint.
type MetricsHandler struct {
	engine *service.MetricsEngine
}

// NewMetricsHandler constructs the handler.
func NewMetricsHandler(engine *service.MetricsEngine) *MetricsHandler {
	return &MetricsHandler{engine: engine}
}

// Calculate triggers a compute pass for one course and window.
func (h *MetricsHandler) Calculate(c *gin.Context) {
	var req models.MetricsCalculationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid calculation payload"))
		return
	}

	calculated, err := h.engine.CalculateForCourse(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Accepted(c, models.MetricsCalculationResponse{Calculated: calculated})
}
