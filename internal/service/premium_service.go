package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"alcyxob/fitness-coach/internal/config"
	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/metrics"
	"alcyxob/fitness-coach/internal/payment/vnpay"
	"alcyxob/fitness-coach/internal/pkg/logger"
	"alcyxob/fitness-coach/internal/pkg/timeutil"
	"alcyxob/fitness-coach/internal/repository"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrPremiumNotApplicable = newError(ErrForbidden, "trainers and admins cannot buy premium")

// PaymentGateway is the part of the gateway client the lifecycle needs.
type PaymentGateway interface {
	PaymentURL(req vnpay.PaymentRequest) string
	Verify(p vnpay.Params) (bool, error)
}

// PaymentLink is returned to the client to redirect to the gateway.
type PaymentLink struct {
	PaymentURL     string `json:"paymentUrl"`
	TxnRef         string `json:"txnRef"`
	Amount         int64  `json:"amount"`
	DurationMonths int    `json:"durationMonths"`
}

// CallbackResult describes the user state after a successful callback.
type CallbackResult struct {
	UserID            primitive.ObjectID  `json:"userId"`
	Role              domain.Role         `json:"role"`
	PremiumExpireDate *time.Time          `json:"premiumExpireDate"`
	TrainerID         *primitive.ObjectID `json:"trainerId,omitempty"`
}

// PremiumService owns the free/premium state machine.
type PremiumService interface {
	// CheckAndNormalizeExpiration returns the user after reverting an
	// expired or dateless premium membership to free.
	CheckAndNormalizeExpiration(ctx context.Context, userID primitive.ObjectID) (*domain.User, error)
	GetStatus(ctx context.Context, userID primitive.ObjectID) (*domain.PremiumStatus, error)
	CreatePayment(ctx context.Context, userID primitive.ObjectID, months int, clientIP string) (*PaymentLink, error)
	HandlePaymentCallback(ctx context.Context, params vnpay.Params) (*CallbackResult, error)
	// SweepExpired downgrades every expired premium user at once.
	SweepExpired(ctx context.Context) (int64, error)
}

type premiumService struct {
	userRepo         repository.UserRepository
	orderRepo        repository.PaymentOrderRepository
	notificationRepo repository.NotificationRepository
	gateway          PaymentGateway
	selector         TrainerSelector
	cfg              config.PremiumConfig
	clock            timeutil.Clock
	log              *logger.Logger
}

func NewPremiumService(
	userRepo repository.UserRepository,
	orderRepo repository.PaymentOrderRepository,
	notificationRepo repository.NotificationRepository,
	gateway PaymentGateway,
	selector TrainerSelector,
	cfg config.PremiumConfig,
	clock timeutil.Clock,
	log *logger.Logger,
) PremiumService {
	if selector == nil {
		selector = RandomTrainerSelector{}
	}
	return &premiumService{
		userRepo:         userRepo,
		orderRepo:        orderRepo,
		notificationRepo: notificationRepo,
		gateway:          gateway,
		selector:         selector,
		cfg:              cfg,
		clock:            clock,
		log:              log,
	}
}

func (s *premiumService) getUser(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *premiumService) CheckAndNormalizeExpiration(ctx context.Context, userID primitive.ObjectID) (*domain.User, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if !user.PremiumExpired(now) {
		return user, nil
	}

	changed, err := s.userRepo.DowngradeExpired(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	if !changed {
		// A renewal landed between the read and the conditional downgrade.
		return s.getUser(ctx, userID)
	}
	metrics.RecordDowngrade("lazy", 1)
	s.log.With("userId", userID.Hex()).Info("premium expired, downgraded to free")
	user.Role = domain.RoleFree
	user.PremiumExpireDate = nil
	return user, nil
}

func (s *premiumService) GetStatus(ctx context.Context, userID primitive.ObjectID) (*domain.PremiumStatus, error) {
	user, err := s.CheckAndNormalizeExpiration(ctx, userID)
	if err != nil {
		return nil, err
	}
	status := &domain.PremiumStatus{Role: user.Role, PremiumExpireDate: user.PremiumExpireDate}
	if user.IsPremium() && user.PremiumExpireDate != nil {
		status.DaysRemaining = timeutil.WholeDaysUntil(s.clock.Now(), *user.PremiumExpireDate)
	}
	return status, nil
}

func (s *premiumService) CreatePayment(ctx context.Context, userID primitive.ObjectID, months int, clientIP string) (*PaymentLink, error) {
	if months < 1 || months > s.cfg.MaxMonths {
		return nil, ErrInvalidMonths
	}
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role == domain.RoleTrainer || user.Role == domain.RoleAdmin {
		return nil, ErrPremiumNotApplicable
	}

	now := s.clock.Now()
	order := &domain.PaymentOrder{
		TxnRef:         strings.ReplaceAll(uuid.NewString(), "-", ""),
		UserID:         userID,
		DurationMonths: months,
		Amount:         int64(months) * s.cfg.PricePerMonth,
		Status:         domain.OrderPending,
		CreatedAt:      now,
	}
	if _, err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, err
	}

	url := s.gateway.PaymentURL(vnpay.PaymentRequest{
		TxnRef:    order.TxnRef,
		OrderInfo: vnpay.FormatOrderInfo(months, userID.Hex()),
		Amount:    order.Amount,
		ClientIP:  clientIP,
		CreatedAt: now,
	})
	s.log.WithFields(map[string]interface{}{"userId": userID.Hex(), "txnRef": order.TxnRef, "amount": order.Amount}).Info("payment order created")
	return &PaymentLink{PaymentURL: url, TxnRef: order.TxnRef, Amount: order.Amount, DurationMonths: months}, nil
}

// HandlePaymentCallback verifies a gateway callback and applies a successful
// payment. When the transaction reference is in the order ledger the order
// drives the transition and a repeated callback is reported as
// ErrOrderAlreadyConfirmed. Otherwise the user and duration are parsed from
// the order info.
func (s *premiumService) HandlePaymentCallback(ctx context.Context, params vnpay.Params) (*CallbackResult, error) {
	ok, err := s.gateway.Verify(params)
	if err != nil || !ok {
		metrics.RecordPaymentCallback("invalid_signature")
		return nil, ErrInvalidSignature
	}
	code := params[vnpay.ParamResponseCode]

	order, err := s.orderRepo.GetByTxnRef(ctx, params[vnpay.ParamTxnRef])
	switch {
	case err == nil:
		return s.applyOrder(ctx, order, params, code)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	if code != vnpay.CodeSuccess {
		metrics.RecordPaymentCallback("declined")
		return nil, &PaymentDeclinedError{Code: code}
	}
	months, userHex, err := vnpay.ParseOrderInfo(params[vnpay.ParamOrderInfo])
	if err != nil {
		metrics.RecordPaymentCallback("malformed")
		return nil, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}
	userID, err := primitive.ObjectIDFromHex(userHex)
	if err != nil {
		metrics.RecordPaymentCallback("malformed")
		return nil, fmt.Errorf("%w: invalid user id %q", ErrMalformedCallback, userHex)
	}
	return s.applyPremium(ctx, userID, months)
}

func (s *premiumService) applyOrder(ctx context.Context, order *domain.PaymentOrder, params vnpay.Params, code string) (*CallbackResult, error) {
	amount, err := strconv.ParseInt(params[vnpay.ParamAmount], 10, 64)
	if err != nil || amount != order.Amount*100 {
		metrics.RecordPaymentCallback("invalid_amount")
		return nil, ErrInvalidAmount
	}
	if order.Status != domain.OrderPending {
		metrics.RecordPaymentCallback("duplicate")
		return nil, ErrOrderAlreadyConfirmed
	}

	now := s.clock.Now()
	if code != vnpay.CodeSuccess {
		if err := s.orderRepo.Transition(ctx, order.TxnRef, domain.OrderPending, domain.OrderFailed, code, now); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return nil, ErrOrderAlreadyConfirmed
			}
			return nil, err
		}
		metrics.RecordPaymentCallback("declined")
		return nil, &PaymentDeclinedError{Code: code}
	}

	// Claim the order first so concurrent deliveries apply it once.
	if err := s.orderRepo.Transition(ctx, order.TxnRef, domain.OrderPending, domain.OrderPaid, code, now); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			metrics.RecordPaymentCallback("duplicate")
			return nil, ErrOrderAlreadyConfirmed
		}
		return nil, err
	}
	result, err := s.applyPremium(ctx, order.UserID, order.DurationMonths)
	if err != nil {
		// Hand the order back so the gateway's retry can apply it.
		if rbErr := s.orderRepo.Transition(ctx, order.TxnRef, domain.OrderPaid, domain.OrderPending, "", now); rbErr != nil {
			s.log.WithError(rbErr).Errorf("failed to reopen order %s", order.TxnRef)
		}
		return nil, err
	}
	return result, nil
}

func (s *premiumService) applyPremium(ctx context.Context, userID primitive.ObjectID, months int) (*CallbackResult, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		metrics.RecordPaymentCallback("unknown_user")
		return nil, err
	}
	log := s.log.WithFields(map[string]interface{}{"userId": userID.Hex(), "months": months})

	result := &CallbackResult{UserID: userID, Role: user.Role, PremiumExpireDate: user.PremiumExpireDate, TrainerID: user.TrainerID}
	if user.Role == domain.RoleTrainer || user.Role == domain.RoleAdmin {
		log.Warnf("payment for %s account left role unchanged", user.Role)
		metrics.RecordPaymentCallback("ignored_role")
		return result, nil
	}

	expireAt := timeutil.AddMonths(s.clock.Now(), months)
	if err := s.userRepo.SetPremium(ctx, userID, expireAt); err != nil {
		return nil, err
	}
	result.Role = domain.RolePremium
	result.PremiumExpireDate = &expireAt
	log.Infof("premium active until %s", expireAt.Format(time.RFC3339))

	if s.cfg.AssignTrainer && user.TrainerID == nil {
		// The membership is already paid for; an assignment failure is logged
		// and left for manual follow-up.
		trainerID, err := s.assignTrainer(ctx, user)
		if err != nil {
			log.WithError(err).Errorf("trainer assignment failed")
		}
		result.TrainerID = trainerID
	}
	metrics.RecordPaymentCallback("success")
	return result, nil
}

// assignTrainer links the user to a trainer chosen by the selector and
// notifies that trainer. It returns nil when no trainer exists.
func (s *premiumService) assignTrainer(ctx context.Context, user *domain.User) (*primitive.ObjectID, error) {
	trainers, err := s.userRepo.ListByRole(ctx, domain.RoleTrainer)
	if err != nil {
		return nil, err
	}
	trainer, ok := s.selector.Pick(trainers)
	if !ok {
		s.log.With("userId", user.ID.Hex()).Warnf("no trainer available for assignment")
		return nil, nil
	}

	if err := s.userRepo.SetTrainer(ctx, user.ID, trainer.ID); err != nil {
		return nil, err
	}
	_, err = s.notificationRepo.Create(ctx, &domain.Notification{
		Recipient: trainer.ID,
		Student:   user.ID,
		Type:      domain.NotificationNewStudent,
		Message:   fmt.Sprintf("%s upgraded to premium and was assigned to you", user.Name),
		CreatedAt: s.clock.Now(),
	})
	if err != nil {
		return &trainer.ID, err
	}
	if err := s.userRepo.SetUnreadNotification(ctx, trainer.ID, true); err != nil {
		return &trainer.ID, err
	}
	return &trainer.ID, nil
}

func (s *premiumService) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.userRepo.DowngradeAllExpired(ctx, s.clock.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.RecordDowngrade("sweep", int(n))
		s.log.Infof("premium sweep downgraded %d users", n)
	}
	return n, nil
}
