package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nutrilog/billing-service/pkg/logger"
	"github.com/nutrilog/billing-service/pkg/res"
)

// ContextKey is the type for gin context keys to avoid collisions
type ContextKey string

const (
	// ContextUserIDKey holds the authenticated user's uuid in the gin context
	ContextUserIDKey ContextKey = "userID"
	// ContextUserEmailKey holds the authenticated user's email
	ContextUserEmailKey ContextKey = "userEmail"
	authHeaderPrefix               = "Bearer "
)

type TokenValidator interface {
	Validate(tokenString string) (*TokenClaims, error)
}

type TokenClaims struct {
	UserEmail string `json:"email"`
	jwt.RegisteredClaims
}

type JWTMiddleware struct {
	log       *logger.Logger
	validator TokenValidator
}

func NewJWTMiddleware(log *logger.Logger, validator TokenValidator) *JWTMiddleware {
	return &JWTMiddleware{log: log, validator: validator}
}

// RequireAuth validates the bearer token and stores the user id and
// email in the request context.
func (m *JWTMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			m.handleAuthError(c, "Missing authorization token")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, authHeaderPrefix)
		claims, err := m.validator.Validate(tokenString)
		if err != nil {
			m.handleAuthError(c, fmt.Sprintf("Token validation failed: %v", err))
			return
		}

		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			m.handleAuthError(c, "User ID (sub) missing or invalid in token")
			return
		}

		c.Set(string(ContextUserIDKey), userID)
		c.Set(string(ContextUserEmailKey), claims.UserEmail)
		c.Next()
	}
}

func (m *JWTMiddleware) handleAuthError(c *gin.Context, message string) {
	m.log.Warnw("Authentication failed", "path", c.Request.URL.Path, "reason", message)
	res.JsonResponse(c.Writer, res.ErrorResponse{
		Error:     message,
		ErrorCode: http.StatusUnauthorized,
	}, http.StatusUnauthorized)
	c.Abort()
}

// UserIDFromContext extracts the authenticated user id set by RequireAuth
func UserIDFromContext(c *gin.Context) (uuid.UUID, bool) {
	value, ok := c.Get(string(ContextUserIDKey))
	if !ok {
		return uuid.Nil, false
	}
	userID, ok := value.(uuid.UUID)
	return userID, ok
}

// UserEmailFromContext extracts the authenticated user email, may be empty
func UserEmailFromContext(c *gin.Context) string {
	value, ok := c.Get(string(ContextUserEmailKey))
	if !ok {
		return ""
	}
	email, _ := value.(string)
	return email
}

// DefaultTokenValidator validates HMAC-signed tokens with a shared secret
type DefaultTokenValidator struct {
	Secret []byte
}

func (v *DefaultTokenValidator) Validate(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.Secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, errors.New("malformed token")
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, errors.New("invalid token signature")
		case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, errors.New("token expired")
		default:
			return nil, fmt.Errorf("invalid token: %w", err)
		}
	}

	if claims, ok := token.Claims.(*TokenClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token claims")
}
