package repository

import (
	"context"
	"time"

	"alcyxob/fitness-coach/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrConflict     = RepositoryError("conflict")
	ErrUpdateFailed = RepositoryError("update failed")
	ErrDeleteFailed = RepositoryError("delete failed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error)
	SetRole(ctx context.Context, id primitive.ObjectID, role domain.Role) error
	SetPremium(ctx context.Context, id primitive.ObjectID, expireAt time.Time) error
	// DowngradeExpired reverts the user to free only while it is still
	// premium with a missing or past expiry. Reports whether it changed.
	DowngradeExpired(ctx context.Context, id primitive.ObjectID, now time.Time) (bool, error)
	// DowngradeAllExpired is the bulk form used by the periodic sweep.
	DowngradeAllExpired(ctx context.Context, now time.Time) (int64, error)
	SetTrainer(ctx context.Context, userID, trainerID primitive.ObjectID) error
	SetUnreadNotification(ctx context.Context, id primitive.ObjectID, unread bool) error
	SetAvatarKey(ctx context.Context, id primitive.ObjectID, key string) error
}

// PlanFilter narrows plan listings. Nil fields are ignored.
type PlanFilter struct {
	TrainerID *primitive.ObjectID
	StudentID *primitive.ObjectID
}

// PlanRepository stores plans of a single kind.
type PlanRepository interface {
	Create(ctx context.Context, plan *domain.Plan) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Plan, error)
	List(ctx context.Context, filter PlanFilter) ([]domain.Plan, error)
	// Update replaces the editable fields of a plan owned by plan.TrainerID.
	Update(ctx context.Context, plan *domain.Plan) error
	Delete(ctx context.Context, id, trainerID primitive.ObjectID) error
	SetCoverKey(ctx context.Context, id primitive.ObjectID, key string) error
}

// ProgressRepository persists progress records, one per (subject, plan).
type ProgressRepository interface {
	GetBySubjectAndPlan(ctx context.Context, subjectID, planID primitive.ObjectID) (*domain.Progress, error)
	// Create returns ErrConflict when a record for the pair already exists.
	Create(ctx context.Context, progress *domain.Progress) error
	// AppendCompletion appends entry only if the stored version still equals
	// version and entry.DayNumber is not yet logged; ErrConflict otherwise.
	AppendCompletion(ctx context.Context, id primitive.ObjectID, version int64, entry domain.CompletedWorkout, currentDay int) error
	ResetTimer(ctx context.Context, subjectID, planID primitive.ObjectID) error
	ListByPlan(ctx context.Context, planID primitive.ObjectID) ([]domain.Progress, error)
}

// BookingFilter narrows booking listings. From and To are inclusive dates.
type BookingFilter struct {
	TrainerID *primitive.ObjectID
	StudentID *primitive.ObjectID
	From      *time.Time
	To        *time.Time
	ExcludeID *primitive.ObjectID
}

// BookingRepository defines the interface for interacting with schedule data.
type BookingRepository interface {
	Create(ctx context.Context, booking *domain.Booking) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Booking, error)
	List(ctx context.Context, filter BookingFilter) ([]domain.Booking, error)
	Update(ctx context.Context, booking *domain.Booking) error
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status domain.BookingStatus) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	// WithScheduleLock runs fn so that no other call for the same
	// (trainer, date) or (student, date) interleaves with it. fn must use
	// the context it is given for every store call.
	WithScheduleLock(ctx context.Context, trainerID, studentID primitive.ObjectID, date time.Time, fn func(ctx context.Context) error) error
}

// NotificationRepository defines the interface for in-app notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) (primitive.ObjectID, error)
	ListUnread(ctx context.Context, recipient primitive.ObjectID) ([]domain.Notification, error)
	MarkAllRead(ctx context.Context, recipient primitive.ObjectID) (int64, error)
}

// PaymentOrderRepository is the ledger correlating gateway transactions with users.
type PaymentOrderRepository interface {
	Create(ctx context.Context, order *domain.PaymentOrder) (primitive.ObjectID, error)
	GetByTxnRef(ctx context.Context, txnRef string) (*domain.PaymentOrder, error)
	// Transition moves an order from one status to another atomically.
	// ErrConflict means the order was not in the from status.
	Transition(ctx context.Context, txnRef string, from, to domain.PaymentOrderStatus, responseCode string, at time.Time) error
}
