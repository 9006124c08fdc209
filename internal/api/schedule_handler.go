package api

import (
	"net/http"
	"time"

	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/pkg/timeutil"
	"alcyxob/fitness-coach/internal/service"

	"github.com/gin-gonic/gin"
)

type ScheduleHandler struct {
	scheduleService service.ScheduleService
}

func NewScheduleHandler(scheduleService service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{scheduleService: scheduleService}
}

type ScheduleRequest struct {
	StudentID string `json:"studentId"`
	Date      string `json:"date" binding:"required,ymd"`
	StartTime string `json:"startTime" binding:"required,hhmm"`
	EndTime   string `json:"endTime" binding:"required,hhmm"`
}

type ScheduleStatusRequest struct {
	Status domain.BookingStatus `json:"status" binding:"required,oneof=accepted rejected"`
}

// scheduleError answers conflicts with 400 as the schedule routes always have.
func scheduleError(c *gin.Context, err error) {
	respondErrorWithConflict(c, err, http.StatusBadRequest)
}

// input converts the request. requireStudent is false for updates, where an
// empty studentId keeps the booked student.
func (r ScheduleRequest) input(c *gin.Context, requireStudent bool) (service.BookingInput, bool) {
	in := service.BookingInput{StartTime: r.StartTime, EndTime: r.EndTime}
	if r.StudentID != "" || requireStudent {
		studentID, err := service.ParseID(r.StudentID)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "invalid studentId")
			return in, false
		}
		in.StudentID = studentID
	}
	date, err := timeutil.ParseDate(r.Date)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return in, false
	}
	in.Date = date
	return in, true
}

// CreateSchedule godoc
// @Summary Book a session with a premium student
// @Tags Schedules
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body ScheduleRequest true "Session"
// @Success 201 {object} gin.H "Schedule created successfully"
// @Failure 400 {object} gin.H "Invalid times or conflicting session"
// @Failure 403 {object} gin.H "Caller is not a PT or student is not premium"
// @Failure 404 {object} gin.H "Student not found"
// @Router /schedules [post]
func (h *ScheduleHandler) CreateSchedule(c *gin.Context) {
	trainerID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	in, ok := req.input(c, true)
	if !ok {
		return
	}
	booking, err := h.scheduleService.CreateBooking(c.Request.Context(), trainerID, in)
	if err != nil {
		scheduleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Schedule created successfully", "schedule": booking})
}

func (h *ScheduleHandler) UpdateSchedule(c *gin.Context) {
	trainerID, ok := mustUserID(c)
	if !ok {
		return
	}
	scheduleID, ok := pathID(c, "scheduleId")
	if !ok {
		return
	}
	var req ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	in, ok := req.input(c, false)
	if !ok {
		return
	}
	booking, err := h.scheduleService.UpdateBooking(c.Request.Context(), trainerID, scheduleID, in)
	if err != nil {
		scheduleError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

func (h *ScheduleHandler) DeleteSchedule(c *gin.Context) {
	trainerID, ok := mustUserID(c)
	if !ok {
		return
	}
	scheduleID, ok := pathID(c, "scheduleId")
	if !ok {
		return
	}
	if err := h.scheduleService.DeleteBooking(c.Request.Context(), trainerID, scheduleID); err != nil {
		scheduleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Schedule deleted successfully"})
}

// UpdateStatus lets the booked student accept or reject a pending session.
func (h *ScheduleHandler) UpdateStatus(c *gin.Context) {
	studentID, ok := mustUserID(c)
	if !ok {
		return
	}
	scheduleID, ok := pathID(c, "scheduleId")
	if !ok {
		return
	}
	var req ScheduleStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	booking, err := h.scheduleService.RespondToBooking(c.Request.Context(), studentID, scheduleID, req.Status)
	if err != nil {
		scheduleError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

func (h *ScheduleHandler) list(c *gin.Context, asTrainer bool, from, to *time.Time) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	bookings, err := h.scheduleService.List(c.Request.Context(), userID, asTrainer, from, to)
	if err != nil {
		scheduleError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

// asTrainer picks the trainer view for PT callers.
func asTrainer(c *gin.Context) bool {
	role, _ := roleFromContext(c)
	return role == domain.RoleTrainer
}

func (h *ScheduleHandler) TrainerSchedules(c *gin.Context) {
	h.list(c, true, nil, nil)
}

func (h *ScheduleHandler) StudentSchedules(c *gin.Context) {
	h.list(c, false, nil, nil)
}

func (h *ScheduleHandler) SchedulesByDate(c *gin.Context) {
	date, err := timeutil.ParseDate(c.Param("date"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	h.list(c, asTrainer(c), &date, &date)
}

func (h *ScheduleHandler) SchedulesByRange(c *gin.Context) {
	from, err := timeutil.ParseDate(c.Param("startDate"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	to, err := timeutil.ParseDate(c.Param("endDate"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	h.list(c, asTrainer(c), &from, &to)
}

// AvailableSlots reports the caller's working window and booked slots for a day.
func (h *ScheduleHandler) AvailableSlots(c *gin.Context) {
	trainerID, ok := mustUserID(c)
	if !ok {
		return
	}
	date, err := timeutil.ParseDate(c.Param("date"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	slots, err := h.scheduleService.AvailableSlots(c.Request.Context(), trainerID, date)
	if err != nil {
		scheduleError(c, err)
		return
	}
	c.JSON(http.StatusOK, slots)
}
