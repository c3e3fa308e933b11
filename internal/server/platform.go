package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	platformdomain "github.com/smallbiznis/hookrelay/internal/platform/domain"
)

type createPlatformRequest struct {
	Name            string `json:"name"`
	DisplayName     string `json:"display_name"`
	SignatureHeader string `json:"signature_header"`
	EventHeader     string `json:"event_header"`
	DocsURL         string `json:"docs_url"`
}

type updatePlatformRequest struct {
	DisplayName     *string `json:"display_name,omitempty"`
	SignatureHeader *string `json:"signature_header,omitempty"`
	EventHeader     *string `json:"event_header,omitempty"`
	DocsURL         *string `json:"docs_url,omitempty"`
	IsActive        *bool   `json:"is_active,omitempty"`
}

func (s *Server) CreatePlatform(c *gin.Context) {
	var req createPlatformRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.platformSvc.Create(c.Request.Context(), platformdomain.CreatePlatformRequest{
		Name:            strings.TrimSpace(req.Name),
		DisplayName:     strings.TrimSpace(req.DisplayName),
		SignatureHeader: strings.TrimSpace(req.SignatureHeader),
		EventHeader:     strings.TrimSpace(req.EventHeader),
		DocsURL:         strings.TrimSpace(req.DocsURL),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPlatforms(c *gin.Context) {
	var query struct {
		Active string `form:"active"`
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

	resp, err := s.platformSvc.List(c.Request.Context(), platformdomain.ListPlatformRequest{
		ActiveOnly: active != nil && *active,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdatePlatform(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	var req updatePlatformRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.platformSvc.Update(c.Request.Context(), platformdomain.UpdatePlatformRequest{
		ID:              id,
		DisplayName:     trimStringPtr(req.DisplayName),
		SignatureHeader: trimStringPtr(req.SignatureHeader),
		EventHeader:     trimStringPtr(req.EventHeader),
		DocsURL:         trimStringPtr(req.DocsURL),
		IsActive:        req.IsActive,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeletePlatform(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	if err := s.platformSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
