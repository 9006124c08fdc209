package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"alcyxob/fitness-coach/internal/config"
	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/payment/vnpay"
	"alcyxob/fitness-coach/internal/pkg/logger"
	"alcyxob/fitness-coach/internal/service"
	"alcyxob/fitness-coach/internal/testutil"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testHashSecret = "TESTSECRET"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type firstTrainer struct{}

func (firstTrainer) Pick(trainers []domain.User) (domain.User, bool) {
	if len(trainers) == 0 {
		return domain.User{}, false
	}
	return trainers[0], true
}

type apiFixture struct {
	router   *gin.Engine
	users    *testutil.MockUserRepository
	catalog  *testutil.MockPlanRepository
	trainer  *testutil.MockPlanRepository
	orders   *testutil.MockPaymentOrderRepository
	bookings *testutil.MockBookingRepository
	notes    *testutil.MockNotificationRepository
	clock    *testutil.FakeClock
	auth     service.AuthService
}

func newAPIFixture(t *testing.T, limiter *RateLimiter) *apiFixture {
	t.Helper()
	log := logger.Nop()
	f := &apiFixture{
		users:    testutil.NewMockUserRepository(),
		catalog:  testutil.NewMockPlanRepository(domain.PlanKindCatalog),
		trainer:  testutil.NewMockPlanRepository(domain.PlanKindTrainer),
		orders:   testutil.NewMockPaymentOrderRepository(),
		bookings: testutil.NewMockBookingRepository(),
		notes:    testutil.NewMockNotificationRepository(),
		clock:    testutil.NewFakeClock(time.Now().UTC()),
	}
	notifications := f.notes
	gateway := vnpay.NewClient(config.VNPayConfig{
		TmnCode:    "TMN01",
		HashSecret: testHashSecret,
		PayURL:     "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:  "http://localhost/return",
	})
	premium := service.NewPremiumService(f.users, f.orders, notifications, gateway, firstTrainer{},
		config.PremiumConfig{PricePerMonth: 99000, MaxMonths: 12, AssignTrainer: true}, f.clock, log)
	f.auth = service.NewAuthService(f.users, premium, "api-test-secret", time.Hour, f.clock, log)
	plans := service.NewPlanService(f.catalog, f.trainer, f.users, log)

	svc := Services{
		Auth:          f.auth,
		Premium:       premium,
		Progress:      service.NewProgressService(testutil.NewMockProgressRepository(), f.catalog, f.trainer, f.clock, time.UTC, log),
		Plans:         plans,
		Schedule:      service.NewScheduleService(f.bookings, f.users, premium, config.ScheduleConfig{WorkStart: "09:00", WorkEnd: "17:00"}, log),
		Notifications: service.NewNotificationService(notifications, f.users, log),
		Media:         service.NewMediaService(testutil.NewMockMediaStore(), f.users, plans, f.trainer, log),
	}
	f.router = NewRouter(svc, log, limiter)
	return f
}

// login registers a user with the given role directly in the store and
// returns a token for it.
func (f *apiFixture) login(t *testing.T, email string, role domain.Role) (primitive.ObjectID, string) {
	t.Helper()
	ctx := context.Background()
	if _, err := f.auth.Register(ctx, "User "+email, email, "password123", domain.RoleFree); err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	u, err := f.users.GetByEmail(ctx, email)
	if err != nil {
		t.Fatal(err)
	}
	switch role {
	case domain.RolePremium:
		if err := f.users.SetPremium(ctx, u.ID, f.clock.Now().AddDate(0, 1, 0)); err != nil {
			t.Fatal(err)
		}
	case domain.RoleFree:
	default:
		if err := f.users.SetRole(ctx, u.ID, role); err != nil {
			t.Fatal(err)
		}
	}
	token, _, err := f.auth.Login(ctx, email, "password123")
	if err != nil {
		t.Fatalf("login %s: %v", email, err)
	}
	return u.ID, token
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestPing(t *testing.T) {
	f := newAPIFixture(t, nil)
	w := f.do(t, http.MethodGet, "/ping", "", nil)
	if w.Code != http.StatusOK || decode(t, w)["message"] != "pong" {
		t.Errorf("ping = %d %s", w.Code, w.Body.String())
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("missing request id header")
	}
}

func TestAuthFlow(t *testing.T) {
	f := newAPIFixture(t, nil)

	w := f.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "Lan", "email": "lan@x.io", "password": "password123",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register = %d %s", w.Code, w.Body.String())
	}
	if w := f.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "Lan", "email": "lan@x.io", "password": "password123",
	}); w.Code != http.StatusConflict {
		t.Errorf("duplicate register = %d", w.Code)
	}
	if w := f.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "Eve", "email": "eve@x.io", "password": "password123", "role": "premium",
	}); w.Code != http.StatusBadRequest {
		t.Errorf("premium signup = %d", w.Code)
	}

	if w := f.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "lan@x.io", "password": "nope-nope",
	}); w.Code != http.StatusUnauthorized {
		t.Errorf("bad login = %d", w.Code)
	}
	w = f.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "lan@x.io", "password": "password123",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login = %d %s", w.Code, w.Body.String())
	}
	token, _ := decode(t, w)["token"].(string)

	if w := f.do(t, http.MethodGet, "/api/v1/me", token, nil); w.Code != http.StatusOK || decode(t, w)["email"] != "lan@x.io" {
		t.Errorf("me = %d %s", w.Code, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("x-auth-token", token)
	legacy := httptest.NewRecorder()
	f.router.ServeHTTP(legacy, req)
	if legacy.Code != http.StatusOK {
		t.Errorf("legacy header = %d", legacy.Code)
	}

	if w := f.do(t, http.MethodGet, "/api/v1/me", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/api/v1/me", "garbage", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("bad token = %d", w.Code)
	}
}

func TestRoleMiddleware(t *testing.T) {
	f := newAPIFixture(t, nil)
	_, free := f.login(t, "free@x.io", domain.RoleFree)
	_, pt := f.login(t, "pt@x.io", domain.RoleTrainer)

	if w := f.do(t, http.MethodGet, "/api/v1/trainer/plans", free, nil); w.Code != http.StatusForbidden {
		t.Errorf("free on trainer route = %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/api/v1/trainer/plans", pt, nil); w.Code != http.StatusOK {
		t.Errorf("pt on trainer route = %d %s", w.Code, w.Body.String())
	}
}

func TestPremiumExpirationMiddleware_UsesStoredRole(t *testing.T) {
	f := newAPIFixture(t, nil)
	id, token := f.login(t, "pt@x.io", domain.RoleTrainer)
	// Demoted after the token was issued.
	if err := f.users.SetRole(context.Background(), id, domain.RoleFree); err != nil {
		t.Fatal(err)
	}
	if w := f.do(t, http.MethodGet, "/api/v1/trainer/plans", token, nil); w.Code != http.StatusForbidden {
		t.Errorf("stale trainer token = %d, want 403", w.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	f := newAPIFixture(t, NewRateLimiter(0.001, 1))
	first := f.do(t, http.MethodGet, "/api/v1/payment/vnpay-ipn", "", nil)
	if first.Code == http.StatusTooManyRequests {
		t.Fatal("first callback was limited")
	}
	if w := f.do(t, http.MethodGet, "/api/v1/payment/vnpay-ipn", "", nil); w.Code != http.StatusTooManyRequests {
		t.Errorf("second callback = %d, want 429", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/ping", "", nil); w.Code != http.StatusOK {
		t.Errorf("ping should not be limited: %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newAPIFixture(t, nil)
	f.do(t, http.MethodGet, "/ping", "", nil)
	w := f.do(t, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("fitness_http_requests_total")) {
		t.Errorf("metrics = %d", w.Code)
	}
}
