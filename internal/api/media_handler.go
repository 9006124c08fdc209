package api

import (
	"net/http"

	"alcyxob/fitness-coach/internal/service"

	"github.com/gin-gonic/gin"
)

type MediaHandler struct {
	mediaService service.MediaService
}

func NewMediaHandler(mediaService service.MediaService) *MediaHandler {
	return &MediaHandler{mediaService: mediaService}
}

type UploadURLRequest struct {
	ContentType string `json:"contentType" binding:"required"`
}

type ConfirmUploadRequest struct {
	ObjectKey string `json:"objectKey" binding:"required"`
}

func (h *MediaHandler) AvatarUploadURL(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req UploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	ticket, err := h.mediaService.AvatarUploadURL(c.Request.Context(), userID, req.ContentType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

func (h *MediaHandler) ConfirmAvatar(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req ConfirmUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := h.mediaService.ConfirmAvatar(c.Request.Context(), userID, req.ObjectKey); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Avatar updated"})
}

func (h *MediaHandler) Avatar(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	url, err := h.mediaService.AvatarURL(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *MediaHandler) PlanCoverUploadURL(c *gin.Context) {
	trainerID, ok := mustUserID(c)
	if !ok {
		return
	}
	planID, ok := pathID(c, "planId")
	if !ok {
		return
	}
	var req UploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	ticket, err := h.mediaService.PlanCoverUploadURL(c.Request.Context(), trainerID, planID, req.ContentType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

func (h *MediaHandler) ConfirmPlanCover(c *gin.Context) {
	trainerID, ok := mustUserID(c)
	if !ok {
		return
	}
	planID, ok := pathID(c, "planId")
	if !ok {
		return
	}
	var req ConfirmUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := h.mediaService.ConfirmPlanCover(c.Request.Context(), trainerID, planID, req.ObjectKey); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cover updated"})
}

func (h *MediaHandler) PlanCover(c *gin.Context) {
	planID, ok := pathID(c, "planId")
	if !ok {
		return
	}
	url, err := h.mediaService.PlanCoverURL(c.Request.Context(), planID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}
