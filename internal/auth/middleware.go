package auth

import (
	"fmt"
	"strings"

	"github.com/TheVenters/VentApp/internal/sync"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// JWTMiddleware authenticates the request and stores user_id in locals.
// The token arrives as a bearer header, or as a ?token= query param on
// websocket upgrades, where browsers cannot set headers.
func JWTMiddleware(secret string) fiber.Handler {
	secretBytes := []byte(secret)
	return func(c *fiber.Ctx) error {
		token := bearerFromHeader(c.Get("Authorization"))
		if token == "" {
			token = c.Query("token")
		}

		userID, err := verifyToken(secretBytes, token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}

		c.Locals("user_id", userID)
		return c.Next()
	}
}

var parseMiddlewareClaimsFn = jwt.ParseWithClaims

// verifyToken checks signature and claims, folding every failure into
// the unauthorized class so callers never branch on jwt internals.
func verifyToken(secret []byte, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: missing token", sync.ErrUnauthorized)
	}

	parsed, err := parseMiddlewareClaimsFn(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", sync.ErrUnauthorized, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return "", fmt.Errorf("%w: token invalid", sync.ErrUnauthorized)
	}
	return claims.UserID, nil
}

func bearerFromHeader(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
