package api

import (
	"net/http"

	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PlanHandler struct {
	planService service.PlanService
}

func NewPlanHandler(planService service.PlanService) *PlanHandler {
	return &PlanHandler{planService: planService}
}

type PlanRequest struct {
	Title       string          `json:"title" binding:"required"`
	Subtitle    string          `json:"subtitle"`
	Description string          `json:"description"`
	IsPro       bool            `json:"isPro"`
	Duration    domain.Duration `json:"duration"`
	Weeks       []domain.Week   `json:"weeks"`
	Students    []string        `json:"students"`
}

func (r PlanRequest) toPlan(c *gin.Context) (*domain.Plan, bool) {
	plan := &domain.Plan{
		Title:       r.Title,
		Subtitle:    r.Subtitle,
		Description: r.Description,
		IsPro:       r.IsPro,
		Duration:    r.Duration,
		Weeks:       r.Weeks,
	}
	for _, s := range r.Students {
		id, err := primitive.ObjectIDFromHex(s)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "invalid student id "+s)
			return nil, false
		}
		plan.Students = append(plan.Students, id)
	}
	return plan, true
}

func (h *PlanHandler) ListCatalog(c *gin.Context) {
	plans, err := h.planService.ListCatalog(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plans)
}

func (h *PlanHandler) GetCatalogPlan(c *gin.Context) {
	planID, ok := pathID(c, "planId")
	if !ok {
		return
	}
	plan, err := h.planService.GetCatalogPlan(c.Request.Context(), planID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// CreateCatalogPlan is restricted to admins by the router.
func (h *PlanHandler) CreateCatalogPlan(c *gin.Context) {
	var req PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	plan, ok := req.toPlan(c)
	if !ok {
		return
	}
	created, err := h.planService.CreateCatalogPlan(c.Request.Context(), plan)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *PlanHandler) CreateTrainerPlan(c *gin.Context) {
	trainerID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	plan, ok := req.toPlan(c)
	if !ok {
		return
	}
	created, err := h.planService.CreateTrainerPlan(c.Request.Context(), trainerID, plan)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *PlanHandler) ListTrainerPlans(c *gin.Context) {
	trainerID, ok := mustUserID(c)
	if !ok {
		return
	}
	plans, err := h.planService.ListTrainerPlans(c.Request.Context(), trainerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plans)
}

func (h *PlanHandler) GetTrainerPlan(c *gin.Context) {
	trainerID, ok := mustUserID(c)
	if !ok {
		return
	}
	planID, ok := pathID(c, "planId")
	if !ok {
		return
	}
	plan, err := h.planService.GetTrainerPlan(c.Request.Context(), trainerID, planID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *PlanHandler) UpdateTrainerPlan(c *gin.Context) {
	trainerID, ok := mustUserID(c)
	if !ok {
		return
	}
	planID, ok := pathID(c, "planId")
	if !ok {
		return
	}
	var req PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	plan, ok := req.toPlan(c)
	if !ok {
		return
	}
	plan.ID = planID
	updated, err := h.planService.UpdateTrainerPlan(c.Request.Context(), trainerID, plan)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *PlanHandler) DeleteTrainerPlan(c *gin.Context) {
	trainerID, ok := mustUserID(c)
	if !ok {
		return
	}
	planID, ok := pathID(c, "planId")
	if !ok {
		return
	}
	if err := h.planService.DeleteTrainerPlan(c.Request.Context(), trainerID, planID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Plan deleted successfully"})
}

// EnrolledPlans lists the trainer plans the caller is a student of.
func (h *PlanHandler) EnrolledPlans(c *gin.Context) {
	studentID, ok := mustUserID(c)
	if !ok {
		return
	}
	plans, err := h.planService.ListEnrolledPlans(c.Request.Context(), studentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plans)
}

func (h *PlanHandler) GetEnrolledPlan(c *gin.Context) {
	studentID, ok := mustUserID(c)
	if !ok {
		return
	}
	planID, ok := pathID(c, "planId")
	if !ok {
		return
	}
	plan, err := h.planService.GetEnrolledPlan(c.Request.Context(), studentID, planID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}
