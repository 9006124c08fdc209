package service

import (
	"context"

	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/pkg/logger"
	"alcyxob/fitness-coach/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationService interface {
	// ListUnread returns the caller's unread notifications, newest first.
	ListUnread(ctx context.Context, userID primitive.ObjectID) ([]domain.Notification, error)
	// MarkAllRead marks every notification read and clears the user's unread flag.
	MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error)
}

type notificationService struct {
	notificationRepo repository.NotificationRepository
	userRepo         repository.UserRepository
	log              *logger.Logger
}

func NewNotificationService(notificationRepo repository.NotificationRepository, userRepo repository.UserRepository, log *logger.Logger) NotificationService {
	return &notificationService{notificationRepo: notificationRepo, userRepo: userRepo, log: log}
}

func (s *notificationService) ListUnread(ctx context.Context, userID primitive.ObjectID) ([]domain.Notification, error) {
	return s.notificationRepo.ListUnread(ctx, userID)
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	n, err := s.notificationRepo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	if err := s.userRepo.SetUnreadNotification(ctx, userID, false); err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.With("userId", userID.Hex()).Debugf("marked %d notifications read", n)
	}
	return n, nil
}
