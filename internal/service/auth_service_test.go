package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/pkg/logger"
	"alcyxob/fitness-coach/internal/testutil"

	"github.com/golang-jwt/jwt/v4"
)

func newAuthFixture(t *testing.T) (AuthService, *premiumFixture) {
	t.Helper()
	pf := newPremiumFixture(t, false)
	// Tokens are validated against wall time, so issue them from it.
	pf.clock.Set(time.Now().UTC())
	svc := NewAuthService(pf.users, pf.svc, "jwt-test-secret", time.Hour, pf.clock, logger.Nop())
	return svc, pf
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newAuthFixture(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "Lan", "  Lan@Example.com ", "s3cret-pass", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Role != domain.RoleFree || user.Email != "lan@example.com" || user.PasswordHash != "" {
		t.Errorf("registered user = %+v", user)
	}

	if _, err := svc.Register(ctx, "Lan", "lan@example.com", "another", domain.RoleFree); !errors.Is(err, ErrUserAlreadyExists) {
		t.Errorf("duplicate register err = %v", err)
	}

	token, got, err := svc.Login(ctx, "LAN@example.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("login user = %s, want %s", got.ID.Hex(), user.ID.Hex())
	}
	claims, err := svc.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID != user.ID.Hex() || claims.Role != domain.RoleFree {
		t.Errorf("claims = %+v", claims)
	}

	if _, _, err := svc.Login(ctx, "lan@example.com", "wrong"); !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("wrong password err = %v", err)
	}
	if _, _, err := svc.Login(ctx, "nobody@example.com", "x"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("unknown email err = %v", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newAuthFixture(t)
	tests := []struct {
		name  string
		email string
		pass  string
		role  domain.Role
		want  error
	}{
		{"missing password", "a@x.io", "", domain.RoleFree, ErrMissingCredentials},
		{"premium by signup", "b@x.io", "pw", domain.RolePremium, ErrInvalidRole},
		{"admin by signup", "c@x.io", "pw", domain.RoleAdmin, ErrInvalidRole},
		{"trainer allowed", "d@x.io", "pw", domain.RoleTrainer, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), "Name", tt.email, tt.pass, tt.role)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLogin_NormalizesExpiredPremium(t *testing.T) {
	svc, pf := newAuthFixture(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "Lan", "lan@x.io", "pw", domain.RoleFree); err != nil {
		t.Fatal(err)
	}
	u, _ := pf.users.GetByEmail(ctx, "lan@x.io")
	past := pf.clock.Now().Add(-time.Minute)
	if err := pf.users.SetPremium(ctx, u.ID, past); err != nil {
		t.Fatal(err)
	}

	token, got, err := svc.Login(ctx, "lan@x.io", "pw")
	if err != nil {
		t.Fatal(err)
	}
	if got.Role != domain.RoleFree {
		t.Errorf("role = %q, want free", got.Role)
	}
	claims, err := svc.ParseToken(token)
	if err != nil || claims.Role != domain.RoleFree {
		t.Errorf("token role = %v, %v", claims, err)
	}

	me, err := svc.Me(ctx, u.ID)
	if err != nil || me.Role != domain.RoleFree || me.PasswordHash != "" {
		t.Errorf("Me = %+v, %v", me, err)
	}
}

func TestParseToken_Rejects(t *testing.T) {
	svc, pf := newAuthFixture(t)
	now := pf.clock.Now()

	sign := func(secret string, method jwt.SigningMethod, exp time.Time) string {
		claims := &Claims{
			UserID:           "65f000000000000000000001",
			Role:             domain.RoleFree,
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)},
		}
		s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
		if err != nil {
			t.Fatal(err)
		}
		return s
	}

	tests := map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": sign("other", jwt.SigningMethodHS256, now.Add(time.Hour)),
		"expired":      sign("jwt-test-secret", jwt.SigningMethodHS256, now.Add(-time.Hour)),
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.ParseToken(token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("err = %v, want ErrInvalidToken", err)
			}
		})
	}

	if _, err := svc.ParseToken(sign("jwt-test-secret", jwt.SigningMethodHS512, now.Add(time.Hour))); err != nil {
		t.Errorf("HS512 with the right secret should parse: %v", err)
	}
}

func TestNewAuthService_PanicsWithoutSecret(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for empty secret")
		}
	}()
	NewAuthService(testutil.NewMockUserRepository(), nil, "", time.Hour, testutil.NewFakeClock(time.Now()), logger.Nop())
}
