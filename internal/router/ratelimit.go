package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// Throttle scopes. Each bucket matches a quota from the API contract:
// login 10/min, registration 5/min, expense 60/min, moderator 200/day,
// general user traffic 1000/day.

func limitReached(c *fiber.Ctx) error {
	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "too_many_requests"})
}

func byIP(c *fiber.Ctx) string {
	return c.IP()
}

// byUser keys on the authenticated user when available, falling back to IP.
func byUser(c *fiber.Ctx) string {
	if uid, ok := c.Locals("user_id").(string); ok && uid != "" {
		return uid
	}
	return c.IP()
}

func RateLimitLogin() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:          10,
		Expiration:   time.Minute,
		KeyGenerator: byIP,
		LimitReached: limitReached,
	})
}

func RateLimitRegistration() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:          5,
		Expiration:   time.Minute,
		KeyGenerator: byIP,
		LimitReached: limitReached,
	})
}

func RateLimitExpense() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:          60,
		Expiration:   time.Minute,
		KeyGenerator: byUser,
		LimitReached: limitReached,
	})
}

func RateLimitModerator() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:          200,
		Expiration:   24 * time.Hour,
		KeyGenerator: byUser,
		LimitReached: limitReached,
	})
}

func RateLimitUser() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:          1000,
		Expiration:   24 * time.Hour,
		KeyGenerator: byUser,
		LimitReached: limitReached,
	})
}
