package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"NutriScan/internal/utility"
)

const (
	AccessTokenDuration = 15 * time.Minute
	Issuer              = "nutriscan"
)

var secret []byte

// JwtCustomClaims accepts the identity provider's subject in either "sub" or "user_id".
type JwtCustomClaims struct {
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

func (c *JwtCustomClaims) subject() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}

// InitAuth sets the HS256 secret used to verify bearer tokens.
func InitAuth(jwtSecret string) error {
	if strings.TrimSpace(jwtSecret) == "" {
		return errors.New("AUTH_JWT_SECRET is not set")
	}
	secret = []byte(jwtSecret)
	return nil
}

// JwtAuthMiddleware reads the token from the Authorization header, the access-token cookie or
// the access_token query parameter (websocket clients), and stores the subject as user_id.
func JwtAuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		logger := utility.LoggerFromContext(c)

		tokenString := tokenFromRequest(c)
		if tokenString == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Missing access token"})
		}

		claims := &JwtCustomClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			// Verify signing method
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			logger.Warn().Err(err).Msg("Token validation error")
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid or expired token"})
		}

		userID := claims.subject()
		if userID == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid user ID"})
		}

		c.Set("user_id", userID)
		sub := logger.With().Str("user_id", userID).Logger()
		c.Set("logger", &sub)
		c.SetRequest(c.Request().WithContext(sub.WithContext(c.Request().Context())))
		return next(c)
	}
}

func tokenFromRequest(c echo.Context) string {
	if h := c.Request().Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if cookie, err := c.Cookie("access-token"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return c.QueryParam("access_token")
}

// GenerateAccessToken signs a short-lived token for userID.
func GenerateAccessToken(userID, email string) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("auth is not initialized")
	}
	now := time.Now()
	claims := &JwtCustomClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(AccessTokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
