package api

import (
	"net/http"

	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/metrics"
	"alcyxob/fitness-coach/internal/pkg/logger"
	"alcyxob/fitness-coach/internal/service"

	"github.com/gin-gonic/gin"
)

// Services are the dependencies of the HTTP layer.
type Services struct {
	Auth          service.AuthService
	Premium       service.PremiumService
	Progress      service.ProgressService
	Plans         service.PlanService
	Schedule      service.ScheduleService
	Notifications service.NotificationService
	Media         service.MediaService
}

// NewRouter builds the engine with the global middleware chain and all routes.
func NewRouter(svc Services, log *logger.Logger, callbackLimiter *RateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(
		RequestIDMiddleware(),
		Recovery(log),
		RequestLogger(log),
		metrics.Middleware(),
	)
	SetupRoutes(router, svc, log, callbackLimiter)
	return router
}

func SetupRoutes(router *gin.Engine, svc Services, log *logger.Logger, callbackLimiter *RateLimiter) {
	RegisterValidators()

	authHandler := NewAuthHandler(svc.Auth)
	planHandler := NewPlanHandler(svc.Plans)
	catalogProgress := NewProgressHandler(svc.Progress, domain.PlanKindCatalog)
	trainerProgress := NewProgressHandler(svc.Progress, domain.PlanKindTrainer)
	paymentHandler := NewPaymentHandler(svc.Premium, log)
	scheduleHandler := NewScheduleHandler(svc.Schedule)
	notificationHandler := NewNotificationHandler(svc.Notifications)
	mediaHandler := NewMediaHandler(svc.Media)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	router.GET("/metrics", metrics.Handler())

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}

		// Gateway callbacks are authenticated by signature, not by token.
		callbacks := apiV1.Group("/payment")
		if callbackLimiter != nil {
			callbacks.Use(callbackLimiter.Middleware())
		}
		{
			callbacks.GET("/vnpay-ipn", paymentHandler.IPN)
			callbacks.GET("/vnpay-return", paymentHandler.Return)
		}

		apiV1.GET("/plans", planHandler.ListCatalog)
		apiV1.GET("/plans/:planId", planHandler.GetCatalogPlan)
	}

	protected := apiV1.Group("")
	protected.Use(AuthMiddleware(svc.Auth), PremiumExpirationMiddleware(svc.Premium))
	{
		protected.GET("/me", authHandler.Me)
		protected.POST("/me/avatar/upload-url", mediaHandler.AvatarUploadURL)
		protected.POST("/me/avatar/confirm", mediaHandler.ConfirmAvatar)
		protected.GET("/me/avatar", mediaHandler.Avatar)

		// --- Catalog plans ---
		protected.POST("/plans", RoleMiddleware(domain.RoleAdmin), planHandler.CreateCatalogPlan)
		protected.POST("/plans/:planId/start", catalogProgress.StartPlan)
		protected.GET("/plans/:planId/progress", catalogProgress.GetProgress)
		protected.POST("/plans/:planId/progress", catalogProgress.CompleteDay)
		protected.POST("/plans/:planId/reset-timer", catalogProgress.ResetTimer)

		// --- Trainer plans, student side ---
		ptPlans := protected.Group("/pt-plans")
		{
			ptPlans.GET("", planHandler.EnrolledPlans)
			ptPlans.GET("/:planId", planHandler.GetEnrolledPlan)
			ptPlans.GET("/:planId/cover", mediaHandler.PlanCover)
			ptPlans.POST("/:planId/start", trainerProgress.StartPlan)
			ptPlans.GET("/:planId/progress", trainerProgress.GetProgress)
			ptPlans.POST("/:planId/progress", trainerProgress.CompleteDay)
			ptPlans.POST("/:planId/reset-timer", trainerProgress.ResetTimer)
			ptPlans.GET("/:planId/students-progress", RoleMiddleware(domain.RoleTrainer), trainerProgress.StudentsProgress)
		}

		// --- Trainer plans, trainer side ---
		trainer := protected.Group("/trainer")
		trainer.Use(RoleMiddleware(domain.RoleTrainer))
		{
			trainer.POST("/plans", planHandler.CreateTrainerPlan)
			trainer.GET("/plans", planHandler.ListTrainerPlans)
			trainer.GET("/plans/:planId", planHandler.GetTrainerPlan)
			trainer.PUT("/plans/:planId", planHandler.UpdateTrainerPlan)
			trainer.DELETE("/plans/:planId", planHandler.DeleteTrainerPlan)
			trainer.GET("/plans/:planId/progress", trainerProgress.StudentsProgress)
			trainer.POST("/plans/:planId/cover/upload-url", mediaHandler.PlanCoverUploadURL)
			trainer.POST("/plans/:planId/cover/confirm", mediaHandler.ConfirmPlanCover)
		}

		payment := protected.Group("/payment")
		{
			payment.POST("/create-payment", paymentHandler.CreatePayment)
			payment.GET("/premium-status", paymentHandler.PremiumStatus)
		}

		// Trainer-only rules for writes are enforced by the schedule service
		// against the stored role.
		schedules := protected.Group("/schedules")
		{
			schedules.POST("", scheduleHandler.CreateSchedule)
			schedules.GET("", RoleMiddleware(domain.RoleTrainer), scheduleHandler.TrainerSchedules)
			schedules.GET("/student", scheduleHandler.StudentSchedules)
			schedules.GET("/date/:date", scheduleHandler.SchedulesByDate)
			schedules.GET("/range/:startDate/:endDate", scheduleHandler.SchedulesByRange)
			schedules.GET("/available-slots/:date", RoleMiddleware(domain.RoleTrainer), scheduleHandler.AvailableSlots)
			schedules.PUT("/:scheduleId", scheduleHandler.UpdateSchedule)
			schedules.PATCH("/:scheduleId/status", scheduleHandler.UpdateStatus)
			schedules.DELETE("/:scheduleId", scheduleHandler.DeleteSchedule)
		}

		notifications := protected.Group("/notifications")
		{
			notifications.GET("", notificationHandler.List)
			notifications.POST("/mark-as-read", notificationHandler.MarkAsRead)
		}
	}
}
