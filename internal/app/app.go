// Package app wires configuration, storage and services together for the
// server and the admin CLI.
package app

import (
	"context"
	"fmt"

	"alcyxob/fitness-coach/internal/api"
	"alcyxob/fitness-coach/internal/config"
	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/payment/vnpay"
	"alcyxob/fitness-coach/internal/pkg/logger"
	"alcyxob/fitness-coach/internal/pkg/timeutil"
	"alcyxob/fitness-coach/internal/repository"
	mongorepo "alcyxob/fitness-coach/internal/repository/mongo"
	"alcyxob/fitness-coach/internal/service"
	"alcyxob/fitness-coach/internal/storage"

	"go.mongodb.org/mongo-driver/mongo"
)

type Repositories struct {
	Users         repository.UserRepository
	CatalogPlans  repository.PlanRepository
	TrainerPlans  repository.PlanRepository
	Progress      repository.ProgressRepository
	Bookings      repository.BookingRepository
	Notifications repository.NotificationRepository
	Orders        repository.PaymentOrderRepository
}

func NewRepositories(db *mongo.Database) Repositories {
	return Repositories{
		Users:         mongorepo.NewMongoUserRepository(db),
		CatalogPlans:  mongorepo.NewMongoPlanRepository(db, domain.PlanKindCatalog),
		TrainerPlans:  mongorepo.NewMongoPlanRepository(db, domain.PlanKindTrainer),
		Progress:      mongorepo.NewMongoProgressRepository(db),
		Bookings:      mongorepo.NewMongoBookingRepository(db),
		Notifications: mongorepo.NewMongoNotificationRepository(db),
		Orders:        mongorepo.NewMongoPaymentOrderRepository(db),
	}
}

// NewServices builds every service on top of repos.
func NewServices(cfg config.Config, repos Repositories, store storage.MediaStore, clock timeutil.Clock, log *logger.Logger) (api.Services, error) {
	loc, err := cfg.Progress.Location()
	if err != nil {
		return api.Services{}, fmt.Errorf("progress timezone: %w", err)
	}

	premium := service.NewPremiumService(
		repos.Users, repos.Orders, repos.Notifications,
		vnpay.NewClient(cfg.VNPay), service.RandomTrainerSelector{},
		cfg.Premium, clock, log.With("component", "premium"),
	)
	plans := service.NewPlanService(repos.CatalogPlans, repos.TrainerPlans, repos.Users, log.With("component", "plans"))

	return api.Services{
		Auth:          service.NewAuthService(repos.Users, premium, cfg.JWT.Secret, cfg.JWT.Expiration, clock, log.With("component", "auth")),
		Premium:       premium,
		Progress:      service.NewProgressService(repos.Progress, repos.CatalogPlans, repos.TrainerPlans, clock, loc, log.With("component", "progress")),
		Plans:         plans,
		Schedule:      service.NewScheduleService(repos.Bookings, repos.Users, premium, cfg.Schedule, log.With("component", "schedule")),
		Notifications: service.NewNotificationService(repos.Notifications, repos.Users, log.With("component", "notifications")),
		Media:         service.NewMediaService(store, repos.Users, plans, repos.TrainerPlans, log.With("component", "media")),
	}, nil
}

// Database connects to the configured deployment. The returned func
// disconnects it.
func Database(cfg config.DatabaseConfig) (*mongo.Database, func() error, error) {
	client, err := mongorepo.ConnectDB(cfg.URI)
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongodb: %w", err)
	}
	return client.Database(cfg.Name), func() error { return mongorepo.DisconnectDB(client) }, nil
}

// EnsureIndexes is a thin alias so callers need not import the mongo
// repository package.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	return mongorepo.EnsureIndexes(ctx, db)
}
