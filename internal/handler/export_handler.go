package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/extraction017/temporav3/internal/service"
	appErrors "github.com/extraction017/temporav3/pkg/errors"
	"github.com/extraction017/temporav3/pkg/export"
	"github.com/extraction017/temporav3/pkg/response"
)

type exportService interface {
	Week(ctx context.Context, weekOffset int, format export.Format) (*service.ExportResult, error)
}

// ExportHandler downloads a week agenda.
type ExportHandler struct {
	service exportService
}

// NewExportHandler constructs an ExportHandler.
func NewExportHandler(service exportService) *ExportHandler {
	return &ExportHandler{service: service}
}

// Week godoc
// @Summary Export week agenda
// @Tags Export
// @Produce text/csv
// @Produce application/pdf
// @Produce text/calendar
// @Param format query string false "csv, pdf or ics" default(csv)
// @Param week_offset query int false "Weeks from the current one"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /export [get]
func (h *ExportHandler) Week(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error()))
		return
	}
	offset, ok := weekOffset(c)
	if !ok {
		return
	}
	result, err := h.service.Week(c.Request.Context(), offset, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Body)
}
