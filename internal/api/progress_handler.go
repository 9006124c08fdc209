package api

import (
	"errors"
	"net/http"

	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/service"

	"github.com/gin-gonic/gin"
)

// ProgressHandler serves catalog and trainer plan progress. One instance is
// bound to each plan kind.
type ProgressHandler struct {
	progressService service.ProgressService
	kind            domain.PlanKind
}

func NewProgressHandler(progressService service.ProgressService, kind domain.PlanKind) *ProgressHandler {
	return &ProgressHandler{progressService: progressService, kind: kind}
}

type CompleteDayRequest struct {
	// Pointer so a missing field is told apart from zero.
	CompletedDay *int `json:"completedDay" binding:"required"`
}

// progressError answers conflicts with 400 as the progress routes always have.
func progressError(c *gin.Context, err error) {
	var gated *service.GatedError
	if errors.As(err, &gated) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":           http.StatusText(http.StatusBadRequest),
			"message":         "Please wait until tomorrow to start your next workout",
			"nextWorkoutTime": gated.NextWorkoutTime,
		})
		return
	}
	respondErrorWithConflict(c, err, http.StatusBadRequest)
}

// StartPlan godoc
// @Summary Start a plan or return the existing progress
// @Tags Progress
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ID"
// @Success 201 {object} gin.H "New plan progress created"
// @Success 200 {object} gin.H "Plan progress found"
// @Failure 403 {object} gin.H "Not enrolled (trainer plans)"
// @Failure 404 {object} gin.H "Plan not found"
// @Router /plans/{planId}/start [post]
func (h *ProgressHandler) StartPlan(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	planID, ok := pathID(c, "planId")
	if !ok {
		return
	}

	progress, isNew, err := h.progressService.StartOrGet(c.Request.Context(), h.kind, userID, planID)
	if err != nil {
		progressError(c, err)
		return
	}
	if isNew {
		c.JSON(http.StatusCreated, gin.H{"message": "New plan progress created", "progress": progress, "isExisting": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Plan progress found", "progress": progress, "isExisting": true})
}

func (h *ProgressHandler) GetProgress(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	planID, ok := pathID(c, "planId")
	if !ok {
		return
	}
	progress, err := h.progressService.GetProgress(c.Request.Context(), h.kind, userID, planID)
	if err != nil {
		progressError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

// CompleteDay godoc
// @Summary Record a completed plan day
// @Description At most one completion per calendar day; each day completes once.
// @Tags Progress
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ID"
// @Param body body CompleteDayRequest true "Completed day"
// @Success 200 {object} gin.H "Progress updated successfully"
// @Failure 400 {object} gin.H "Invalid day, already completed, or already worked out today"
// @Router /plans/{planId}/progress [post]
func (h *ProgressHandler) CompleteDay(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	planID, ok := pathID(c, "planId")
	if !ok {
		return
	}
	var req CompleteDayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid completedDay value")
		return
	}

	summary, err := h.progressService.RecordCompletion(c.Request.Context(), h.kind, userID, planID, *req.CompletedDay)
	if err != nil {
		progressError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Progress updated successfully", "progress": summary})
}

func (h *ProgressHandler) ResetTimer(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	planID, ok := pathID(c, "planId")
	if !ok {
		return
	}
	if err := h.progressService.ResetTimer(c.Request.Context(), h.kind, userID, planID); err != nil {
		progressError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Timer reset successfully"})
}

// StudentsProgress lists every enrolled student's progress on a trainer plan.
func (h *ProgressHandler) StudentsProgress(c *gin.Context) {
	trainerID, ok := mustUserID(c)
	if !ok {
		return
	}
	planID, ok := pathID(c, "planId")
	if !ok {
		return
	}
	students, err := h.progressService.ListPlanProgress(c.Request.Context(), trainerID, planID)
	if err != nil {
		progressError(c, err)
		return
	}
	c.JSON(http.StatusOK, students)
}
