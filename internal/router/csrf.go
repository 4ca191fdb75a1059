package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
)

const csrfContextKey = "csrf"

// CSRFMiddleware issues a csrf_token cookie and validates the X-CSRF-Token
// header on mutating requests. Safe methods pass through but still receive
// the cookie.
func CSRFMiddleware(secure bool) fiber.Handler {
	return csrf.New(csrf.Config{
		KeyLookup:      "header:X-CSRF-Token",
		CookieName:     "csrf_token",
		CookieSameSite: "Lax",
		CookieSecure:   secure,
		CookieHTTPOnly: false,
		Expiration:     1 * time.Hour,
		ContextKey:     csrfContextKey,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "CSRF validation failed"})
		},
	})
}

// CSRFToken hands the current token to the frontend.
func CSRFToken(c *fiber.Ctx) error {
	token, _ := c.Locals(csrfContextKey).(string)
	return c.JSON(fiber.Map{"csrftoken": token})
}
