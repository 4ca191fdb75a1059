package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
)

// Cookies writes and clears the http-only auth cookies. Tokens never appear
// in response bodies.
type Cookies struct {
	Secure bool
}

func (h Cookies) SetAuthCookies(c *fiber.Ctx, access, refresh string, accessExpiry, refreshExpiry time.Duration) {
	h.set(c, AccessTokenCookie, access, accessExpiry)
	h.set(c, RefreshTokenCookie, refresh, refreshExpiry)
}

func (h Cookies) ClearAuthCookies(c *fiber.Ctx) {
	h.set(c, AccessTokenCookie, "", -time.Hour)
	h.set(c, RefreshTokenCookie, "", -time.Hour)
}

func (h Cookies) set(c *fiber.Ctx, name, value string, maxAge time.Duration) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  time.Now().Add(maxAge),
		Secure:   h.Secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
