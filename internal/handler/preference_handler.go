package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/extraction017/temporav3/internal/dto"
	"github.com/extraction017/temporav3/internal/models"
	"github.com/extraction017/temporav3/pkg/response"
)

type preferenceService interface {
	Get(ctx context.Context) (*models.Preferences, error)
	Update(ctx context.Context, req dto.UpdatePreferencesRequest) (*models.Preferences, error)
}

// PreferenceHandler exposes the work, sleep and rounding settings.
type PreferenceHandler struct {
	service preferenceService
}

// NewPreferenceHandler constructs a PreferenceHandler.
func NewPreferenceHandler(service preferenceService) *PreferenceHandler {
	return &PreferenceHandler{service: service}
}

// Get godoc
// @Summary Get scheduling preferences
// @Tags Preferences
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /preferences [get]
func (h *PreferenceHandler) Get(c *gin.Context) {
	prefs, err := h.service.Get(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, prefs)
}

// Update godoc
// @Summary Replace scheduling preferences
// @Tags Preferences
// @Accept json
// @Produce json
// @Param payload body dto.UpdatePreferencesRequest true "Preferences"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /preferences [put]
func (h *PreferenceHandler) Update(c *gin.Context) {
	var req dto.UpdatePreferencesRequest
	if !bindJSON(c, &req, "invalid preferences payload") {
		return
	}
	prefs, err := h.service.Update(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, prefs)
}
