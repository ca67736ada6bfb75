package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/extraction017/temporav3/internal/dto"
	"github.com/extraction017/temporav3/internal/scoring"
	appErrors "github.com/extraction017/temporav3/pkg/errors"
	"github.com/extraction017/temporav3/pkg/response"
)

type scoreService interface {
	Health(ctx context.Context, weekOffset int) (*dto.ScoreResponse, error)
	Productivity(ctx context.Context, weekOffset int) (*dto.ScoreResponse, error)
	Statistics(ctx context.Context, weekOffset int) (*scoring.Statistics, error)
}

// ScoreHandler serves week scores and statistics.
type ScoreHandler struct {
	service scoreService
}

// NewScoreHandler constructs a ScoreHandler.
func NewScoreHandler(service scoreService) *ScoreHandler {
	return &ScoreHandler{service: service}
}

// Health godoc
// @Summary Week health score
// @Tags Scores
// @Produce json
// @Param week_offset query int false "Weeks from the current one"
// @Success 200 {object} response.Envelope
// @Router /scores/health [get]
func (h *ScoreHandler) Health(c *gin.Context) {
	h.serve(c, h.service.Health)
}

// Productivity godoc
// @Summary Week productivity score
// @Tags Scores
// @Produce json
// @Param week_offset query int false "Weeks from the current one"
// @Success 200 {object} response.Envelope
// @Router /scores/productivity [get]
func (h *ScoreHandler) Productivity(c *gin.Context) {
	h.serve(c, h.service.Productivity)
}

// Statistics godoc
// @Summary Week statistics
// @Tags Scores
// @Produce json
// @Param week_offset query int false "Weeks from the current one"
// @Success 200 {object} response.Envelope
// @Router /statistics [get]
func (h *ScoreHandler) Statistics(c *gin.Context) {
	offset, ok := weekOffset(c)
	if !ok {
		return
	}
	stats, err := h.service.Statistics(c.Request.Context(), offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats)
}

func (h *ScoreHandler) serve(c *gin.Context, fn func(context.Context, int) (*dto.ScoreResponse, error)) {
	offset, ok := weekOffset(c)
	if !ok {
		return
	}
	report, err := fn(c.Request.Context(), offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report)
}

func weekOffset(c *gin.Context) (int, bool) {
	raw := strings.TrimSpace(c.Query("week_offset"))
	if raw == "" {
		return 0, true
	}
	offset, err := strconv.Atoi(raw)
	if err != nil || offset < -52 || offset > 52 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "week_offset must be an integer between -52 and 52"))
		return 0, false
	}
	return offset, true
}
