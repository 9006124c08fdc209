package service

import (
	"context"
	"errors"
	"time"

	"alcyxob/fitness-coach/internal/pkg/logger"
	"alcyxob/fitness-coach/internal/repository"
	"alcyxob/fitness-coach/internal/storage"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	avatarPrefix = "avatars"
	coverPrefix  = "plan-covers"
)

// UploadTicket lets a client PUT an image straight to object storage and
// then confirm the key.
type UploadTicket struct {
	UploadURL string `json:"uploadUrl"`
	ObjectKey string `json:"objectKey"`
	ExpiresIn int    `json:"expiresIn"` // Seconds
}

type MediaService interface {
	AvatarUploadURL(ctx context.Context, userID primitive.ObjectID, contentType string) (*UploadTicket, error)
	ConfirmAvatar(ctx context.Context, userID primitive.ObjectID, objectKey string) error
	AvatarURL(ctx context.Context, userID primitive.ObjectID) (string, error)

	PlanCoverUploadURL(ctx context.Context, trainerID, planID primitive.ObjectID, contentType string) (*UploadTicket, error)
	ConfirmPlanCover(ctx context.Context, trainerID, planID primitive.ObjectID, objectKey string) error
	PlanCoverURL(ctx context.Context, planID primitive.ObjectID) (string, error)
}

type mediaService struct {
	store    storage.MediaStore
	userRepo repository.UserRepository
	plans    PlanService
	planRepo repository.PlanRepository
	expiry   time.Duration
	log      *logger.Logger
}

func NewMediaService(
	store storage.MediaStore,
	userRepo repository.UserRepository,
	plans PlanService,
	trainerPlanRepo repository.PlanRepository,
	log *logger.Logger,
) MediaService {
	return &mediaService{
		store:    store,
		userRepo: userRepo,
		plans:    plans,
		planRepo: trainerPlanRepo,
		expiry:   storage.DefaultPresignedURLExpiry,
		log:      log,
	}
}

func (s *mediaService) ticket(ctx context.Context, prefix, owner, contentType string) (*UploadTicket, error) {
	key, err := storage.ObjectKey(prefix, owner, contentType)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedContentType) {
			return nil, ErrUnsupportedImage
		}
		return nil, err
	}
	url, err := s.store.GeneratePresignedUploadURL(ctx, key, contentType, s.expiry)
	if err != nil {
		return nil, err
	}
	return &UploadTicket{UploadURL: url, ObjectKey: key, ExpiresIn: int(s.expiry.Seconds())}, nil
}

// replaced removes a superseded object. Failure only leaves an orphan behind.
func (s *mediaService) replaced(ctx context.Context, oldKey, newKey string) {
	if oldKey == "" || oldKey == newKey {
		return
	}
	if err := s.store.DeleteObject(ctx, oldKey); err != nil {
		s.log.WithError(err).Warnf("could not delete replaced object %s", oldKey)
	}
}

func (s *mediaService) AvatarUploadURL(ctx context.Context, userID primitive.ObjectID, contentType string) (*UploadTicket, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.ticket(ctx, avatarPrefix, userID.Hex(), contentType)
}

func (s *mediaService) ConfirmAvatar(ctx context.Context, userID primitive.ObjectID, objectKey string) error {
	if !storage.OwnsKey(objectKey, avatarPrefix, userID.Hex()) {
		return ErrForeignObjectKey
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if err := s.userRepo.SetAvatarKey(ctx, userID, objectKey); err != nil {
		return err
	}
	s.replaced(ctx, user.AvatarKey, objectKey)
	return nil
}

func (s *mediaService) AvatarURL(ctx context.Context, userID primitive.ObjectID) (string, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}
	if user.AvatarKey == "" {
		return "", ErrMediaNotFound
	}
	return s.store.GeneratePresignedDownloadURL(ctx, user.AvatarKey, s.expiry)
}

func (s *mediaService) PlanCoverUploadURL(ctx context.Context, trainerID, planID primitive.ObjectID, contentType string) (*UploadTicket, error) {
	if _, err := s.plans.GetTrainerPlan(ctx, trainerID, planID); err != nil {
		return nil, err
	}
	return s.ticket(ctx, coverPrefix, planID.Hex(), contentType)
}

func (s *mediaService) ConfirmPlanCover(ctx context.Context, trainerID, planID primitive.ObjectID, objectKey string) error {
	plan, err := s.plans.GetTrainerPlan(ctx, trainerID, planID)
	if err != nil {
		return err
	}
	if !storage.OwnsKey(objectKey, coverPrefix, planID.Hex()) {
		return ErrForeignObjectKey
	}
	if err := s.planRepo.SetCoverKey(ctx, planID, objectKey); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrPlanNotFound
		}
		return err
	}
	s.replaced(ctx, plan.CoverKey, objectKey)
	return nil
}

func (s *mediaService) PlanCoverURL(ctx context.Context, planID primitive.ObjectID) (string, error) {
	plan, err := getPlan(ctx, s.planRepo, planID)
	if err != nil {
		return "", err
	}
	if plan.CoverKey == "" {
		return "", ErrMediaNotFound
	}
	return s.store.GeneratePresignedDownloadURL(ctx, plan.CoverKey, s.expiry)
}
