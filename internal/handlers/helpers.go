package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pipecrm/internal/pipeline"
)

func tenantFrom(c *gin.Context) string {
	v, ok := c.Get("tenant_id")
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

var kindStatus = map[pipeline.Kind]int{
	pipeline.KindNotFound:            http.StatusNotFound,
	pipeline.KindInvalidStage:        http.StatusUnprocessableEntity,
	pipeline.KindDuplicateField:      http.StatusConflict,
	pipeline.KindFieldInUse:          http.StatusConflict,
	pipeline.KindStageInUse:          http.StatusConflict,
	pipeline.KindValidationFailed:    http.StatusUnprocessableEntity,
	pipeline.KindOperationInProgress: http.StatusConflict,
	pipeline.KindRejected:            http.StatusUnprocessableEntity,
	pipeline.KindUnreachable:         http.StatusBadGateway,
}

// writeError maps engine error kinds onto HTTP statuses; anything untyped
// is a plain 500.
func writeError(c *gin.Context, err error) {
	var e *pipeline.Error
	if errors.As(err, &e) {
		status, ok := kindStatus[e.Kind]
		if !ok {
			status = http.StatusInternalServerError
		}
		body := gin.H{"error": e.Message, "kind": e.Kind}
		if len(e.Fields) > 0 {
			body["fields"] = e.Fields
		}
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
