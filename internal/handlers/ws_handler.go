package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pipecrm/internal/realtime"
)

type WSHandler struct {
	Hub *realtime.Hub
}

func NewWSHandler(hub *realtime.Hub) *WSHandler {
	return &WSHandler{Hub: hub}
}

// Feed upgrades the request and streams change notifications for the
// caller's tenant until the peer disconnects.
func (h *WSHandler) Feed(c *gin.Context) {
	tenantID := tenantFrom(c)
	conn, err := realtime.Upgrade(c.Writer, c.Request)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.Hub.Register(tenantID, conn)
	defer h.Hub.Unregister(tenantID, conn)
	conn.Drain()
}
