package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	deliverydomain "github.com/smallbiznis/hookrelay/internal/delivery/domain"
	subscriptiondomain "github.com/smallbiznis/hookrelay/internal/subscription/domain"
	"github.com/smallbiznis/hookrelay/pkg/db/pagination"
)

type createSubscriptionRequest struct {
	Platform    string   `json:"platform"`
	CallbackURL string   `json:"callback_url"`
	Events      []string `json:"events"`
	Secret      string   `json:"secret"`
}

type updateSubscriptionRequest struct {
	CallbackURL *string   `json:"callback_url,omitempty"`
	Events      *[]string `json:"events,omitempty"`
	Secret      *string   `json:"secret,omitempty"`
	IsActive    *bool     `json:"is_active,omitempty"`
}

// subscriptionResponse exposes the signing secret only on create, where the
// caller has to store it.
type subscriptionResponse struct {
	subscriptiondomain.Subscription
	Secret string `json:"secret"`
}

func (s *Server) CreateSubscription(c *gin.Context) {
	var req createSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.subscriptionSvc.Create(c.Request.Context(), subscriptiondomain.CreateSubscriptionRequest{
		Platform:    strings.TrimSpace(req.Platform),
		CallbackURL: strings.TrimSpace(req.CallbackURL),
		Events:      req.Events,
		Secret:      strings.TrimSpace(req.Secret),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": subscriptionResponse{
		Subscription: resp,
		Secret:       resp.Secret,
	}})
}

func (s *Server) ListSubscriptions(c *gin.Context) {
	var query struct {
		Platform string `form:"platform"`
		Active   string `form:"active"`

		pagination.Pagination
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	active, err := parseOptionalBool(query.Active)
	if err != nil {
		AbortWithError(c, newValidationError("active", "invalid_active", "invalid active"))
		return
	}

	subscriptions, pageInfo, err := s.subscriptionSvc.List(c.Request.Context(), subscriptiondomain.ListSubscriptionRequest{
		Platform:   strings.TrimSpace(query.Platform),
		ActiveOnly: active != nil && *active,
		Pagination: query.Pagination,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": subscriptions, "page_info": pageInfo})
}

func (s *Server) GetSubscriptionByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.subscriptionSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateSubscription(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	var req updateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.subscriptionSvc.Update(c.Request.Context(), subscriptiondomain.UpdateSubscriptionRequest{
		ID:          id,
		CallbackURL: trimStringPtr(req.CallbackURL),
		Events:      req.Events,
		Secret:      trimStringPtr(req.Secret),
		IsActive:    req.IsActive,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteSubscription(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	if err := s.subscriptionSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) ListDeliveryLogs(c *gin.Context) {
	var query struct {
		SubscriptionID string `form:"subscription_id"`
		Status         string `form:"status"`

		pagination.Pagination
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	logs, pageInfo, err := s.deliverySvc.ListLogs(c.Request.Context(), deliverydomain.ListLogRequest{
		SubscriptionID: strings.TrimSpace(query.SubscriptionID),
		Status:         strings.TrimSpace(query.Status),
		Pagination:     query.Pagination,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": logs, "page_info": pageInfo})
}
