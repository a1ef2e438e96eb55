package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"meridian/internal/auth"
)

// AuthMiddleware validates the bearer token on every request against
// verifier and injects the authenticated user ID into the request
// context as "userID".
func AuthMiddleware(verifier auth.JWTVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing authorization header")
		}
		token := strings.TrimPrefix(header, "Bearer ")
		if token == header {
			return fiber.NewError(fiber.StatusUnauthorized, "authorization header must be a bearer token")
		}

		claims, err := verifier.VerifyToken(token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		c.Locals("userID", claims.GetUserID())
		return c.Next()
	}
}

