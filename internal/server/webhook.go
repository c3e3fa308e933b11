package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	eventdomain "github.com/smallbiznis/hookrelay/internal/event/domain"
	"github.com/smallbiznis/hookrelay/pkg/db/pagination"
)

// Inbound payload ceiling. Platforms send webhooks far below this; anything
// bigger is hostile or misconfigured.
const maxWebhookBodyBytes = 1 << 20

func (s *Server) HandleReceiveWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.eventSvc.Ingest(c.Request.Context(), eventdomain.IngestRequest{
		Platform: c.Param("platform"),
		Body:     body,
		Headers:  c.Request.Header,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Webhook received",
		"id":      resp.Event.ID.String(),
	})
}

func (s *Server) ListWebhookEvents(c *gin.Context) {
	var query struct {
		Platform  string `form:"platform"`
		EventType string `form:"event_type"`

		pagination.Pagination
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	events, pageInfo, err := s.eventSvc.List(c.Request.Context(), eventdomain.ListEventRequest{
		Platform:   strings.TrimSpace(query.Platform),
		EventType:  strings.TrimSpace(query.EventType),
		Pagination: query.Pagination,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": events, "page_info": pageInfo})
}

func (s *Server) GetWebhookEventByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.eventSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListEventDeliveries(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.deliverySvc.ListByEvent(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
