package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/extraction017/temporav3/pkg/errors"
)

func newContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func TestJSONWithMeta(t *testing.T) {
	c, w := newContext()
	JSON(c, http.StatusOK, gin.H{"ok": true}, map[string]interface{}{"week_offset": 1})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	var body map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["data"]["ok"])
	assert.Equal(t, float64(1), body["meta"]["week_offset"])
}

func TestErrorUsesStatusAndRecordsServerErrors(t *testing.T) {
	c, w := newContext()
	Error(c, appErrors.ErrConflictOnCommit)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"retryable":true`)
	assert.Empty(t, c.Errors)

	c, w = newContext()
	Error(c, fmt.Errorf("db down"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Len(t, c.Errors, 1)
}

func TestAttachment(t *testing.T) {
	c, w := newContext()
	Attachment(c, "week.ics", "text/calendar", []byte("BEGIN:VCALENDAR"))
	assert.Equal(t, `attachment; filename="week.ics"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/calendar", w.Header().Get("Content-Type"))
	assert.Equal(t, "BEGIN:VCALENDAR", w.Body.String())
}
