package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/extraction017/temporav3/internal/dto"
	"github.com/extraction017/temporav3/pkg/response"
)

type optimizationService interface {
	Run(ctx context.Context, req dto.OptimizeRequest) (*dto.OptimizationResponse, error)
	Apply(ctx context.Context, id string) (*dto.OptimizationResponse, error)
}

// OptimizationHandler previews and applies optimization policies.
type OptimizationHandler struct {
	service optimizationService
}

// NewOptimizationHandler constructs an OptimizationHandler.
func NewOptimizationHandler(service optimizationService) *OptimizationHandler {
	return &OptimizationHandler{service: service}
}

// Run godoc
// @Summary Run an optimization policy
// @Description Previews by default. A preview returns a proposal_id that can be applied until it expires. Set preview=false to commit at once.
// @Tags Optimizations
// @Accept json
// @Produce json
// @Param payload body dto.OptimizeRequest true "Optimization request"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /optimizations [post]
func (h *OptimizationHandler) Run(c *gin.Context) {
	var req dto.OptimizeRequest
	if !bindJSON(c, &req, "invalid optimization payload") {
		return
	}
	result, err := h.service.Run(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Apply godoc
// @Summary Apply a previewed proposal
// @Tags Optimizations
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /optimizations/{id}/apply [post]
func (h *OptimizationHandler) Apply(c *gin.Context) {
	result, err := h.service.Apply(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}
