package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MockUserRepository is an in-memory repository.UserRepository.
type MockUserRepository struct {
	mu          sync.Mutex
	Users       map[primitive.ObjectID]*domain.User
	CreateError error
	GetError    error
	UpdateError error
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{Users: make(map[primitive.ObjectID]*domain.User)}
}

// Add stores a copy of u, assigning an id when missing, and returns the id.
func (m *MockUserRepository) Add(u domain.User) primitive.ObjectID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	m.Users[u.ID] = &u
	return u.ID
}

// Get returns a copy of the stored user, or nil.
func (m *MockUserRepository) Get(id primitive.ObjectID) *domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Users[id]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

func (m *MockUserRepository) Create(ctx context.Context, u *domain.User) (primitive.ObjectID, error) {
	if m.CreateError != nil {
		return primitive.NilObjectID, m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.Users {
		if existing.Email == u.Email {
			return primitive.NilObjectID, repository.ErrConflict
		}
	}
	u.ID = primitive.NewObjectID()
	cp := *u
	m.Users[u.ID] = &cp
	return u.ID, nil
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.Users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockUserRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	u := m.Get(id)
	if u == nil {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (m *MockUserRepository) ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.User{}
	for _, u := range m.Users {
		if u.Role == role {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Hex() < out[j].ID.Hex() })
	return out, nil
}

func (m *MockUserRepository) update(id primitive.ObjectID, fn func(u *domain.User)) error {
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Users[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(u)
	return nil
}

func (m *MockUserRepository) SetRole(ctx context.Context, id primitive.ObjectID, role domain.Role) error {
	return m.update(id, func(u *domain.User) {
		u.Role = role
		if role != domain.RolePremium {
			u.PremiumExpireDate = nil
		}
	})
}

func (m *MockUserRepository) SetPremium(ctx context.Context, id primitive.ObjectID, expireAt time.Time) error {
	return m.update(id, func(u *domain.User) {
		u.Role = domain.RolePremium
		t := expireAt.UTC()
		u.PremiumExpireDate = &t
	})
}

func (m *MockUserRepository) DowngradeExpired(ctx context.Context, id primitive.ObjectID, now time.Time) (bool, error) {
	changed := false
	err := m.update(id, func(u *domain.User) {
		if u.PremiumExpired(now) {
			u.Role = domain.RoleFree
			u.PremiumExpireDate = nil
			changed = true
		}
	})
	if err == repository.ErrNotFound {
		return false, nil
	}
	return changed, err
}

func (m *MockUserRepository) DowngradeAllExpired(ctx context.Context, now time.Time) (int64, error) {
	if m.UpdateError != nil {
		return 0, m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, u := range m.Users {
		if u.PremiumExpired(now) {
			u.Role = domain.RoleFree
			u.PremiumExpireDate = nil
			n++
		}
	}
	return n, nil
}

func (m *MockUserRepository) SetTrainer(ctx context.Context, userID, trainerID primitive.ObjectID) error {
	return m.update(userID, func(u *domain.User) {
		id := trainerID
		u.TrainerID = &id
	})
}

func (m *MockUserRepository) SetUnreadNotification(ctx context.Context, id primitive.ObjectID, unread bool) error {
	return m.update(id, func(u *domain.User) { u.HasUnreadNotification = unread })
}

func (m *MockUserRepository) SetAvatarKey(ctx context.Context, id primitive.ObjectID, key string) error {
	return m.update(id, func(u *domain.User) { u.AvatarKey = key })
}

// MockPlanRepository is an in-memory repository.PlanRepository.
type MockPlanRepository struct {
	mu       sync.Mutex
	Kind     domain.PlanKind
	Plans    map[primitive.ObjectID]*domain.Plan
	GetError error
}

func NewMockPlanRepository(kind domain.PlanKind) *MockPlanRepository {
	return &MockPlanRepository{Kind: kind, Plans: make(map[primitive.ObjectID]*domain.Plan)}
}

// Add stores a copy of p and returns its id.
func (m *MockPlanRepository) Add(p domain.Plan) primitive.ObjectID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	p.Kind = m.Kind
	m.Plans[p.ID] = &p
	return p.ID
}

func (m *MockPlanRepository) Create(ctx context.Context, p *domain.Plan) (primitive.ObjectID, error) {
	return m.Add(*p), nil
}

func (m *MockPlanRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Plan, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Plans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPlanRepository) List(ctx context.Context, f repository.PlanFilter) ([]domain.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Plan{}
	for _, p := range m.Plans {
		if f.TrainerID != nil && (p.TrainerID == nil || *p.TrainerID != *f.TrainerID) {
			continue
		}
		if f.StudentID != nil && !p.HasStudent(*f.StudentID) {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MockPlanRepository) Update(ctx context.Context, p *domain.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.Plans[p.ID]
	if !ok || (p.TrainerID != nil && (cur.TrainerID == nil || *cur.TrainerID != *p.TrainerID)) {
		return repository.ErrNotFound
	}
	cp := *p
	cp.Kind, cp.TrainerID, cp.CreatedAt = cur.Kind, cur.TrainerID, cur.CreatedAt
	m.Plans[p.ID] = &cp
	return nil
}

func (m *MockPlanRepository) Delete(ctx context.Context, id, trainerID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Plans[id]
	if !ok || p.TrainerID == nil || *p.TrainerID != trainerID {
		return repository.ErrNotFound
	}
	delete(m.Plans, id)
	return nil
}

func (m *MockPlanRepository) SetCoverKey(ctx context.Context, id primitive.ObjectID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Plans[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.CoverKey = key
	return nil
}

type progressKey struct{ subject, plan primitive.ObjectID }

// MockProgressRepository is an in-memory repository.ProgressRepository that
// honours the same uniqueness and version guards as the Mongo one.
type MockProgressRepository struct {
	mu          sync.Mutex
	Records     map[progressKey]*domain.Progress
	CreateCalls int
	AppendError error
}

func NewMockProgressRepository() *MockProgressRepository {
	return &MockProgressRepository{Records: make(map[progressKey]*domain.Progress)}
}

// Count returns the number of stored records.
func (m *MockProgressRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Records)
}

func copyProgress(p *domain.Progress) *domain.Progress {
	cp := *p
	cp.CompletedWorkouts = append([]domain.CompletedWorkout{}, p.CompletedWorkouts...)
	if p.LastUnlockTime != nil {
		t := *p.LastUnlockTime
		cp.LastUnlockTime = &t
	}
	return &cp
}

func (m *MockProgressRepository) GetBySubjectAndPlan(ctx context.Context, subjectID, planID primitive.ObjectID) (*domain.Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Records[progressKey{subjectID, planID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyProgress(p), nil
}

func (m *MockProgressRepository) Create(ctx context.Context, p *domain.Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls++
	key := progressKey{p.SubjectID, p.PlanID}
	if _, exists := m.Records[key]; exists {
		return repository.ErrConflict
	}
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	m.Records[key] = copyProgress(p)
	return nil
}

func (m *MockProgressRepository) AppendCompletion(ctx context.Context, id primitive.ObjectID, version int64, entry domain.CompletedWorkout, currentDay int) error {
	if m.AppendError != nil {
		return m.AppendError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.Records {
		if p.ID != id {
			continue
		}
		if p.Version != version || p.HasCompleted(entry.DayNumber) {
			return repository.ErrConflict
		}
		p.CompletedWorkouts = append(p.CompletedWorkouts, entry)
		p.CurrentDay = currentDay
		t := entry.CompletedDate
		p.LastUnlockTime = &t
		p.Version++
		return nil
	}
	return repository.ErrConflict
}

func (m *MockProgressRepository) ResetTimer(ctx context.Context, subjectID, planID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Records[progressKey{subjectID, planID}]
	if !ok {
		return repository.ErrNotFound
	}
	p.LastUnlockTime = nil
	p.Version++
	return nil
}

func (m *MockProgressRepository) ListByPlan(ctx context.Context, planID primitive.ObjectID) ([]domain.Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Progress{}
	for k, p := range m.Records {
		if k.plan == planID {
			out = append(out, *copyProgress(p))
		}
	}
	return out, nil
}

// MockBookingRepository is an in-memory repository.BookingRepository.
// WithScheduleLock serializes callers with a single mutex.
type MockBookingRepository struct {
	mu          sync.Mutex
	lock        sync.Mutex
	Bookings    map[primitive.ObjectID]*domain.Booking
	CreateError error
}

func NewMockBookingRepository() *MockBookingRepository {
	return &MockBookingRepository{Bookings: make(map[primitive.ObjectID]*domain.Booking)}
}

func (m *MockBookingRepository) Create(ctx context.Context, b *domain.Booking) (primitive.ObjectID, error) {
	if m.CreateError != nil {
		return primitive.NilObjectID, m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b.ID = primitive.NewObjectID()
	if b.Status == "" {
		b.Status = domain.BookingPending
	}
	cp := *b
	m.Bookings[b.ID] = &cp
	return b.ID, nil
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.Bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *MockBookingRepository) List(ctx context.Context, f repository.BookingFilter) ([]domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Booking{}
	for _, b := range m.Bookings {
		switch {
		case f.TrainerID != nil && b.TrainerID != *f.TrainerID,
			f.StudentID != nil && b.StudentID != *f.StudentID,
			f.From != nil && b.Date.Before(*f.From),
			f.To != nil && b.Date.After(*f.To),
			f.ExcludeID != nil && b.ID == *f.ExcludeID:
			continue
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out, nil
}

func (m *MockBookingRepository) Update(ctx context.Context, b *domain.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.Bookings[b.ID]
	if !ok || cur.TrainerID != b.TrainerID {
		return repository.ErrNotFound
	}
	cp := *b
	m.Bookings[b.ID] = &cp
	return nil
}

func (m *MockBookingRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, status domain.BookingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.Bookings[id]
	if !ok {
		return repository.ErrNotFound
	}
	b.Status = status
	return nil
}

func (m *MockBookingRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Bookings[id]; !ok {
		return repository.ErrDeleteFailed
	}
	delete(m.Bookings, id)
	return nil
}

func (m *MockBookingRepository) WithScheduleLock(ctx context.Context, trainerID, studentID primitive.ObjectID, date time.Time, fn func(ctx context.Context) error) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	return fn(ctx)
}

// MockNotificationRepository is an in-memory repository.NotificationRepository.
type MockNotificationRepository struct {
	mu            sync.Mutex
	Notifications []domain.Notification
	CreateError   error
}

func NewMockNotificationRepository() *MockNotificationRepository {
	return &MockNotificationRepository{}
}

func (m *MockNotificationRepository) Create(ctx context.Context, n *domain.Notification) (primitive.ObjectID, error) {
	if m.CreateError != nil {
		return primitive.NilObjectID, m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = primitive.NewObjectID()
	m.Notifications = append(m.Notifications, *n)
	return n.ID, nil
}

func (m *MockNotificationRepository) ListUnread(ctx context.Context, recipient primitive.ObjectID) ([]domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Notification{}
	for _, n := range m.Notifications {
		if n.Recipient == recipient && !n.Read {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MockNotificationRepository) MarkAllRead(ctx context.Context, recipient primitive.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i := range m.Notifications {
		if m.Notifications[i].Recipient == recipient && !m.Notifications[i].Read {
			m.Notifications[i].Read = true
			n++
		}
	}
	return n, nil
}

// MockPaymentOrderRepository is an in-memory repository.PaymentOrderRepository.
type MockPaymentOrderRepository struct {
	mu          sync.Mutex
	Orders      map[string]*domain.PaymentOrder
	CreateError error
}

func NewMockPaymentOrderRepository() *MockPaymentOrderRepository {
	return &MockPaymentOrderRepository{Orders: make(map[string]*domain.PaymentOrder)}
}

// Get returns a copy of the order with txnRef, or nil.
func (m *MockPaymentOrderRepository) Get(txnRef string) *domain.PaymentOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.Orders[txnRef]
	if !ok {
		return nil
	}
	cp := *o
	return &cp
}

func (m *MockPaymentOrderRepository) Create(ctx context.Context, o *domain.PaymentOrder) (primitive.ObjectID, error) {
	if m.CreateError != nil {
		return primitive.NilObjectID, m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.Orders[o.TxnRef]; exists {
		return primitive.NilObjectID, repository.ErrConflict
	}
	o.ID = primitive.NewObjectID()
	if o.Status == "" {
		o.Status = domain.OrderPending
	}
	cp := *o
	m.Orders[o.TxnRef] = &cp
	return o.ID, nil
}

func (m *MockPaymentOrderRepository) GetByTxnRef(ctx context.Context, txnRef string) (*domain.PaymentOrder, error) {
	if o := m.Get(txnRef); o != nil {
		return o, nil
	}
	return nil, repository.ErrNotFound
}

func (m *MockPaymentOrderRepository) Transition(ctx context.Context, txnRef string, from, to domain.PaymentOrderStatus, responseCode string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.Orders[txnRef]
	if !ok || o.Status != from {
		return repository.ErrConflict
	}
	o.Status = to
	o.ResponseCode = responseCode
	if to == domain.OrderPending {
		o.ProcessedAt = nil
	} else {
		t := at
		o.ProcessedAt = &t
	}
	return nil
}
