package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/pkg/logger"
	"alcyxob/fitness-coach/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/time/rate"
)

// Constants for context keys
const (
	ContextUserIDKey    = "userID"
	ContextUserRoleKey  = "userRole"
	ContextRequestIDKey = "requestID"

	RequestIDHeader   = "X-Request-ID"
	legacyTokenHeader = "x-auth-token"
)

// bearerToken accepts "Authorization: Bearer <t>" and the older x-auth-token header.
func bearerToken(c *gin.Context) (string, error) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return "", errors.New("Authorization header format must be Bearer {token}")
		}
		return parts[1], nil
	}
	if token := c.GetHeader(legacyTokenHeader); token != "" {
		return token, nil
	}
	return "", errors.New("Authorization header is missing")
}

// AuthMiddleware creates a Gin middleware for JWT authentication.
func AuthMiddleware(auth service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := bearerToken(c)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, err.Error())
			return
		}
		claims, err := auth.ParseToken(tokenString)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		userID, err := primitive.ObjectIDFromHex(claims.UserID)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "Invalid token or missing claims")
			return
		}

		c.Set(ContextUserIDKey, userID)
		c.Set(ContextUserRoleKey, claims.Role)
		c.Next()
	}
}

// PremiumExpirationMiddleware replaces the role from the token with the
// stored one after expiry normalization, so a lapsed premium token cannot
// reach premium-only behavior. Must run AFTER AuthMiddleware.
func PremiumExpirationMiddleware(premium service.ExpirationChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := userIDFromContext(c)
		if !ok {
			abortWithError(c, http.StatusInternalServerError, "User ID not found in context")
			return
		}
		user, err := premium.CheckAndNormalizeExpiration(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				abortWithError(c, http.StatusUnauthorized, "Account no longer exists")
				return
			}
			respondError(c, err)
			return
		}
		c.Set(ContextUserRoleKey, user.Role)
		c.Next()
	}
}

// RoleMiddleware creates middleware to check if user has the required role(s).
// Must run AFTER AuthMiddleware.
func RoleMiddleware(allowedRoles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole, ok := roleFromContext(c)
		if !ok {
			abortWithError(c, http.StatusInternalServerError, "User role not found in context")
			return
		}
		for _, allowedRole := range allowedRoles {
			if userRole == allowedRole {
				c.Next()
				return
			}
		}
		abortWithError(c, http.StatusForbidden, fmt.Sprintf("Access denied: Role '%s' does not have permission", userRole))
	}
}

// RequestIDMiddleware propagates or assigns an X-Request-ID.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(ContextRequestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)
		c.Next()
	}
}

// RequestLogger logs one line per request.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).Milliseconds(),
			"ip":         c.ClientIP(),
			"request_id": c.GetString(ContextRequestIDKey),
		}
		if userID, ok := userIDFromContext(c); ok {
			fields["user_id"] = userID.Hex()
		}
		entry := log.WithFields(fields)
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			if len(c.Errors) > 0 {
				entry = entry.WithError(c.Errors.Last())
			}
			entry.Errorf("HTTP request")
		case status >= http.StatusBadRequest:
			entry.Warnf("HTTP request")
		default:
			entry.Info("HTTP request")
		}
	}
}

// Recovery turns panics into a 500 JSON body and logs them.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.With("request_id", c.GetString(ContextRequestIDKey)).Errorf("panic recovered: %v", recovered)
		abortWithError(c, http.StatusInternalServerError, "Internal server error")
	})
}

// RateLimiter hands out one token bucket per client key.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
}

func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	limiter, exists := rl.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = limiter
	}
	return limiter
}

// Cleanup drops limiters whose bucket has refilled.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, limiter := range rl.limiters {
		if limiter.Tokens() >= float64(rl.burst) {
			delete(rl.limiters, key)
		}
	}
}

// Middleware limits by client IP. A non-positive rate disables limiting.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.rate <= 0 {
			c.Next()
			return
		}
		if !rl.getLimiter(c.ClientIP()).Allow() {
			abortWithError(c, http.StatusTooManyRequests, "Too many requests. Please try again later.")
			return
		}
		c.Next()
	}
}

func userIDFromContext(c *gin.Context) (primitive.ObjectID, bool) {
	raw, exists := c.Get(ContextUserIDKey)
	if !exists {
		return primitive.NilObjectID, false
	}
	id, ok := raw.(primitive.ObjectID)
	return id, ok
}

func roleFromContext(c *gin.Context) (domain.Role, bool) {
	raw, exists := c.Get(ContextUserRoleKey)
	if !exists {
		return "", false
	}
	role, ok := raw.(domain.Role)
	return role, ok
}

// mustUserID reads the authenticated user id or aborts with 401.
func mustUserID(c *gin.Context) (primitive.ObjectID, bool) {
	id, ok := userIDFromContext(c)
	if !ok {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token")
	}
	return id, ok
}
