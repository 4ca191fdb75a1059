package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Middleware authenticates requests from the access-token cookie, falling
// back to an Authorization bearer header for non-browser callers. The user
// id lands in c.Locals("user_id").
func Middleware(tokens *TokenService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Cookies(AccessTokenCookie)
		if raw == "" {
			header := c.Get("Authorization")
			parts := strings.SplitN(header, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
				raw = parts[1]
			}
		}
		if raw == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing token")
		}

		claims, err := tokens.Validate(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		c.Locals("user_id", claims.UserID)
		return c.Next()
	}
}

// UserID extracts the authenticated user id set by Middleware.
func UserID(c *fiber.Ctx) (string, error) {
	if uid, ok := c.Locals("user_id").(string); ok && strings.TrimSpace(uid) != "" {
		return uid, nil
	}
	return "", fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
}

// UserContext returns the request context for repository calls.
func UserContext(c *fiber.Ctx) context.Context {
	if ctx := c.UserContext(); ctx != nil {
		return ctx
	}
	return context.Background()
}
