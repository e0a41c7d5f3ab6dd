package handler

import (
	"civic-document-service/internal/adapter/http/dto"
	"civic-document-service/internal/core/ports"
	"civic-document-service/pkg/response"

	"github.com/gin-gonic/gin"
)

// DirectoryHandler handles resident registration and announcements.
type DirectoryHandler struct {
	directory ports.DirectoryService
}

// NewDirectoryHandler creates a new DirectoryHandler.
func NewDirectoryHandler(directory ports.DirectoryService) *DirectoryHandler {
	return &DirectoryHandler{directory: directory}
}

// RegisterResident handles POST /api/v1/residents.
func (h *DirectoryHandler) RegisterResident(c *gin.Context) {
	var req dto.ResidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	dto.SanitizeStruct(&req)

	r, err := h.directory.RegisterResident(c.Request.Context(), ports.ResidentRegistration{
		FullName:      req.FullName,
		Address:       req.Address,
		BirthDate:     req.BirthDate,
		ContactNumber: req.ContactNumber,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, r)
}

// GetResident handles GET /api/v1/residents/:id.
func (h *DirectoryHandler) GetResident(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}
	r, err := h.directory.GetResident(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, r)
}

// ListResidents handles GET /api/v1/staff/residents.
func (h *DirectoryHandler) ListResidents(c *gin.Context) {
	residents, err := h.directory.ListResidents(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, residents)
}

// ListAnnouncements handles GET /api/v1/announcements.
func (h *DirectoryHandler) ListAnnouncements(c *gin.Context) {
	items, err := h.directory.ListAnnouncements(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}

// PublishAnnouncement handles POST /api/v1/staff/announcements.
func (h *DirectoryHandler) PublishAnnouncement(c *gin.Context) {
	var req dto.AnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	dto.SanitizeStruct(&req)

	a, err := h.directory.PublishAnnouncement(c.Request.Context(), req.Title, req.Body)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, a)
}
