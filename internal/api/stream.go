package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// streamEvents pushes committed facts to the client as server-sent events.
// The subscription lasts until the client disconnects or the bus shuts down.
func (h *Handler) streamEvents(c *gin.Context) {
	if h.bus == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "streaming not enabled",
		})
		return
	}

	id, ch := h.bus.Subscribe()
	defer h.bus.Unsubscribe(id)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case notice, ok := <-ch:
			if !ok {
				// Bus closed: the server is shutting down.
				return
			}
			c.SSEvent("fact", notice)
			c.Writer.Flush()
		}
	}
}
