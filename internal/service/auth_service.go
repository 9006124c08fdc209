package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/pkg/logger"
	"alcyxob/fitness-coach/internal/pkg/timeutil"
	"alcyxob/fitness-coach/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrHashingFailed   = errors.New("failed to hash password")
	ErrTokenGeneration = errors.New("failed to generate authentication token")
	ErrInvalidToken    = newError(ErrUnauthorized, "invalid token")
)

// Claims is the JWT payload issued at login.
type Claims struct {
	UserID string      `json:"uid"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

type AuthService interface {
	Register(ctx context.Context, name, email, password string, role domain.Role) (*domain.User, error)
	Login(ctx context.Context, email, password string) (token string, user *domain.User, err error)
	// ParseToken validates a bearer token and returns its claims.
	ParseToken(token string) (*Claims, error)
	// Me returns the caller's account with premium state normalized.
	Me(ctx context.Context, userID primitive.ObjectID) (*domain.User, error)
}

type authService struct {
	userRepo      repository.UserRepository
	premium       ExpirationChecker
	jwtSecret     string
	jwtExpiration time.Duration
	clock         timeutil.Clock
	log           *logger.Logger
}

func NewAuthService(
	userRepo repository.UserRepository,
	premium ExpirationChecker,
	jwtSecret string,
	jwtExpiration time.Duration,
	clock timeutil.Clock,
	log *logger.Logger,
) AuthService {
	if jwtSecret == "" {
		panic("JWT secret cannot be empty")
	}
	if jwtExpiration <= 0 {
		jwtExpiration = time.Hour
	}
	return &authService{
		userRepo:      userRepo,
		premium:       premium,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
		clock:         clock,
		log:           log,
	}
}

// Register creates a free or PT account. Premium is only reachable through payment.
func (s *authService) Register(ctx context.Context, name, email, password string, role domain.Role) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	if role == "" {
		role = domain.RoleFree
	}
	if role != domain.RoleFree && role != domain.RoleTrainer {
		return nil, ErrInvalidRole
	}

	_, err := s.userRepo.GetByEmail(ctx, email)
	if err == nil {
		return nil, ErrUserAlreadyExists
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, ErrHashingFailed
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hashed),
		Role:         role,
	}
	userID, err := s.userRepo.Create(ctx, user)
	if err != nil {
		// Lost a race with a concurrent registration; the unique index caught it.
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}
	user.ID = userID
	user.PasswordHash = ""
	s.log.With("userId", userID.Hex()).Infof("registered %s account", role)
	return user, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", nil, ErrMissingCredentials
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil, ErrAuthenticationFailed
		}
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrAuthenticationFailed
	}

	user, err = s.premium.CheckAndNormalizeExpiration(ctx, user.ID)
	if err != nil {
		return "", nil, err
	}

	token, err := s.generateJWT(user)
	if err != nil {
		s.log.ErrorWithErr(err, "signing token")
		return "", nil, ErrTokenGeneration
	}
	user.PasswordHash = ""
	return token, user, nil
}

func (s *authService) generateJWT(user *domain.User) (string, error) {
	now := s.clock.Now()
	claims := &Claims{
		UserID: user.ID.Hex(),
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.Hex(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtExpiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "fitness-coach",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

func (s *authService) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.Parser{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" || claims.Role == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *authService) Me(ctx context.Context, userID primitive.ObjectID) (*domain.User, error) {
	user, err := s.premium.CheckAndNormalizeExpiration(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = ""
	return user, nil
}
