package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/extraction017/temporav3/internal/dto"
	"github.com/extraction017/temporav3/internal/models"
	appErrors "github.com/extraction017/temporav3/pkg/errors"
	"github.com/extraction017/temporav3/pkg/response"
)

type eventService interface {
	List(ctx context.Context, filter models.EventFilter) ([]models.Event, error)
	Get(ctx context.Context, id string) (*models.Event, error)
	CreateFixed(ctx context.Context, req dto.CreateEventRequest) (*models.Event, error)
	Validate(ctx context.Context, req dto.CreateEventRequest) (*dto.EventValidation, error)
	CreateRecurring(ctx context.Context, req dto.CreateRecurringRequest) (*dto.RecurringEventResponse, error)
	CreateFloating(ctx context.Context, req dto.CreateFloatingRequest) (*dto.FloatingEventResponse, error)
	Update(ctx context.Context, id string, req dto.UpdateEventRequest) (*models.Event, error)
	ToggleLock(ctx context.Context, id string) (*models.Event, error)
	Delete(ctx context.Context, id string, mode dto.DeleteMode) (*dto.DeleteEventResponse, error)
}

// EventHandler exposes calendar event endpoints.
type EventHandler struct {
	service eventService
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(service eventService) *EventHandler {
	return &EventHandler{service: service}
}

// List godoc
// @Summary List events
// @Tags Events
// @Produce json
// @Param from query string false "Only events ending after (RFC3339)"
// @Param to query string false "Only events starting before (RFC3339)"
// @Param category query string false "Category"
// @Param type query string false "Event type"
// @Param parent_id query string false "Recurring parent id"
// @Success 200 {object} response.Envelope
// @Router /events [get]
func (h *EventHandler) List(c *gin.Context) {
	filter := models.EventFilter{
		Category: models.Category(strings.TrimSpace(c.Query("category"))),
		Kind:     models.EventKind(strings.TrimSpace(c.Query("type"))),
		ParentID: strings.TrimSpace(c.Query("parent_id")),
	}
	var err error
	if filter.From, err = parseTimeQuery(c, "from"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.To, err = parseTimeQuery(c, "to"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.Category != "" && !filter.Category.Valid() {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown category"))
		return
	}
	if filter.Kind != "" && !filter.Kind.Valid() {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown type"))
		return
	}

	events, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, map[string]interface{}{"total": len(events)})
}

// Get godoc
// @Summary Get event
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /events/{id} [get]
func (h *EventHandler) Get(c *gin.Context) {
	event, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event)
}

// Create godoc
// @Summary Create fixed event
// @Tags Events
// @Accept json
// @Produce json
// @Param payload body dto.CreateEventRequest true "Event payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /events [post]
func (h *EventHandler) Create(c *gin.Context) {
	var req dto.CreateEventRequest
	if !bindJSON(c, &req, "invalid event payload") {
		return
	}
	event, err := h.service.CreateFixed(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, event)
}

// Validate godoc
// @Summary Dry-run a fixed event
// @Description Reports conflicts and soft warnings without storing anything.
// @Tags Events
// @Accept json
// @Produce json
// @Param payload body dto.CreateEventRequest true "Event payload"
// @Success 200 {object} response.Envelope
// @Router /events/validate [post]
func (h *EventHandler) Validate(c *gin.Context) {
	var req dto.CreateEventRequest
	if !bindJSON(c, &req, "invalid event payload") {
		return
	}
	result, err := h.service.Validate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// CreateRecurring godoc
// @Summary Create recurring event
// @Description Places every occurrence in the next 30 days around existing events.
// @Tags Events
// @Accept json
// @Produce json
// @Param payload body dto.CreateRecurringRequest true "Recurring payload"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /events/recurring [post]
func (h *EventHandler) CreateRecurring(c *gin.Context) {
	var req dto.CreateRecurringRequest
	if !bindJSON(c, &req, "invalid recurring event payload") {
		return
	}
	result, err := h.service.CreateRecurring(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// CreateFloating godoc
// @Summary Create floating task
// @Description Finds the best slot between earliest_start and deadline.
// @Tags Events
// @Accept json
// @Produce json
// @Param payload body dto.CreateFloatingRequest true "Floating payload"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /events/floating [post]
func (h *EventHandler) CreateFloating(c *gin.Context) {
	var req dto.CreateFloatingRequest
	if !bindJSON(c, &req, "invalid floating event payload") {
		return
	}
	result, err := h.service.CreateFloating(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Update godoc
// @Summary Update event
// @Tags Events
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body dto.UpdateEventRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /events/{id} [put]
func (h *EventHandler) Update(c *gin.Context) {
	var req dto.UpdateEventRequest
	if !bindJSON(c, &req, "invalid event payload") {
		return
	}
	event, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event)
}

// ToggleLock godoc
// @Summary Toggle event lock
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/lock [patch]
func (h *EventHandler) ToggleLock(c *gin.Context) {
	event, err := h.service.ToggleLock(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event)
}

// Delete godoc
// @Summary Delete event
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Param mode query string false "this_instance or all_future"
// @Success 200 {object} response.Envelope
// @Router /events/{id} [delete]
func (h *EventHandler) Delete(c *gin.Context) {
	mode := dto.DeleteMode(strings.TrimSpace(c.Query("mode")))
	result, err := h.service.Delete(c.Request.Context(), c.Param("id"), mode)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}

func parseTimeQuery(c *gin.Context, key string) (time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, key+" must be RFC3339")
	}
	return t, nil
}
