package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/spendwise-app/spendwise-backend/internal/audit"
	"github.com/spendwise-app/spendwise-backend/internal/mailer"
	"github.com/spendwise-app/spendwise-backend/internal/users"
)

// UserStore is the slice of the users repository the auth flows need.
type UserStore interface {
	Create(ctx context.Context, u *users.User) (string, error)
	FindByID(ctx context.Context, id string) (*users.User, error)
	FindByUsername(ctx context.Context, username string) (*users.User, error)
	FindByEmail(ctx context.Context, email string) (*users.User, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
	Activate(ctx context.Context, id string) error
	UpdateLastLogin(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	IsModerator(ctx context.Context, id string) (bool, error)
}

type Handler struct {
	Users      UserStore
	Tokens     *TokenService
	Activation *ActivationTokens
	Throttle   *LoginThrottle
	Refresh    *RefreshStore
	Resets     *ResetStore
	Mailer     mailer.Mailer
	Audit      audit.Recorder
	Cookies    Cookies

	FrontendURL string

	// Sleep is swapped out in tests; nil means time.Sleep.
	Sleep func(time.Duration)
}

func (h *Handler) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	if h.Sleep != nil {
		h.Sleep(d)
		return
	}
	time.Sleep(d)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login validates credentials and sets the auth cookies. Tokens are never
// returned in the body. Failed attempts are counted per identifier and the
// response is delayed linearly with the failure count.
func (h *Handler) Login(c *fiber.Ctx) error {
	var body loginRequest
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if body.Username == "" || body.Password == "" {
		return fiber.NewError(fiber.StatusBadRequest, "username and password required")
	}

	ctx := UserContext(c)
	identifier := body.Username

	user, err := h.Users.FindByUsername(ctx, body.Username)
	if err != nil && !errors.Is(err, users.ErrNotFound) {
		return fiber.NewError(fiber.StatusInternalServerError, "internal error")
	}

	// Inactive accounts are reported before any credential check so the
	// client can offer to resend the activation link.
	if user != nil && !user.IsActive {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":  "Account has not been activated. Please activate it or resend the activation link.",
			"action": "resend_activation",
		})
	}

	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)) != nil {
		delay, terr := h.Throttle.Fail(ctx, identifier)
		if terr != nil {
			log.Printf("login throttle: %v", terr)
		}
		h.sleep(delay)
		return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
	}

	if err := h.Throttle.Reset(ctx, identifier); err != nil {
		log.Printf("login throttle reset: %v", err)
	}
	if err := h.Users.UpdateLastLogin(ctx, user.ID); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "internal error")
	}

	if err := h.issueTokens(c, ctx, user.ID); err != nil {
		return err
	}

	if err := h.Audit.Record(ctx, audit.Entry{
		UserID:     &user.ID,
		Action:     "user.login",
		EntityType: "user",
		EntityID:   &user.ID,
		IP:         strPtr(c.IP()),
	}); err != nil {
		log.Printf("audit login: %v", err)
	}

	return c.JSON(fiber.Map{"message": "logged in"})
}

func (h *Handler) issueTokens(c *fiber.Ctx, ctx context.Context, userID string) error {
	access, err := h.Tokens.GenerateAccessToken(userID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "could not create token")
	}
	refresh, err := h.Tokens.GenerateRefreshToken(userID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "could not create token")
	}
	if err := h.Refresh.Save(ctx, userID, refresh, h.Tokens.RefreshExpiry()); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "could not store token")
	}
	h.Cookies.SetAuthCookies(c, access, refresh, h.Tokens.AccessExpiry(), h.Tokens.RefreshExpiry())
	return nil
}

// RefreshToken rotates both tokens from the refresh cookie.
func (h *Handler) RefreshToken(c *fiber.Ctx) error {
	raw := c.Cookies(RefreshTokenCookie)
	if raw == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "missing refresh token")
	}

	claims, err := h.Tokens.Validate(raw)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid refresh token")
	}

	ctx := UserContext(c)
	ok, err := h.Refresh.Matches(ctx, claims.UserID, raw)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "internal error")
	}
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid refresh token")
	}

	if err := h.issueTokens(c, ctx, claims.UserID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "token refreshed"})
}

// Logout drops the stored refresh token and clears both cookies.
func (h *Handler) Logout(c *fiber.Ctx) error {
	if raw := c.Cookies(AccessTokenCookie); raw != "" {
		if claims, err := h.Tokens.Validate(raw); err == nil {
			if err := h.Refresh.Delete(UserContext(c), claims.UserID); err != nil {
				log.Printf("logout refresh delete: %v", err)
			}
		}
	}
	h.Cookies.ClearAuthCookies(c)
	return c.JSON(fiber.Map{"message": "logged out"})
}

// IsLoggedIn reports the session and moderator flags for the frontend.
func (h *Handler) IsLoggedIn(c *fiber.Ctx) error {
	userID, err := UserID(c)
	if err != nil {
		return err
	}
	isMod, err := h.Users.IsModerator(UserContext(c), userID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "internal error")
	}
	return c.JSON(fiber.Map{"isLoggedIn": true, "isModerator": isMod})
}

// Register creates an inactive account and mails the activation link.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}

	errs := validateRegister(&req)
	ctx := UserContext(c)

	if _, ok := errs["username"]; !ok {
		taken, err := h.Users.UsernameTaken(ctx, req.Username)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "internal error")
		}
		if taken {
			errs["username"] = "A user with that username already exists."
		}
	}
	if _, ok := errs["email"]; !ok {
		taken, err := h.Users.EmailTaken(ctx, req.Email)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "internal error")
		}
		if taken {
			errs["email"] = "A user with that email address already exists."
		}
	}
	if _, ok := errs["password"]; !ok {
		if msg := CheckPasswordStrength(req.Password); msg != "" {
			errs["password"] = msg
		} else if req.Password != req.Password2 {
			errs["password"] = "Passwords do not match."
		}
	}
	if len(errs) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": errs})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "internal error")
	}

	user := &users.User{
		Username:     req.Username,
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: string(hashed),
	}
	id, err := h.Users.Create(ctx, user)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "could not create user")
	}
	user.ID = id

	if err := h.sendActivationEmail(user); err != nil {
		// Fail loudly: the account exists but the client must know the
		// mail did not go out.
		log.Printf("activation email for %s: %v", user.Username, err)
		return fiber.NewError(fiber.StatusInternalServerError, "could not send activation email")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id, "username": user.Username})
}

func (h *Handler) sendActivationEmail(u *users.User) error {
	token := h.Activation.Make(u)
	link := fmt.Sprintf("%s/activate?uid=%s&token=%s", h.FrontendURL, u.ID, token)
	body := fmt.Sprintf("To activate your account, open the following link: %s", link)
	return h.Mailer.Send(u.Email, "Account activation", body)
}

// Activate flips the account active when uid and token check out. Expired
// tokens get a distinct message so the client can offer a resend.
func (h *Handler) Activate(c *fiber.Ctx) error {
	uid := c.Query("uid")
	token := c.Query("token")
	if _, err := uuid.Parse(uid); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user."})
	}

	ctx := UserContext(c)
	user, err := h.Users.FindByID(ctx, uid)
	if errors.Is(err, users.ErrNotFound) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user."})
	}
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "internal error")
	}

	switch err := h.Activation.Check(user, token); {
	case errors.Is(err, ErrActivationExpired):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Activation token expired. Please request a new activation link.",
		})
	case err != nil:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid activation token."})
	}

	if err := h.Users.Activate(ctx, user.ID); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "internal error")
	}
	return c.JSON(fiber.Map{"message": "Account activated."})
}

type resendActivationRequest struct {
	Username string `json:"username"`
}

// ResendActivation re-issues the activation email for an inactive account.
func (h *Handler) ResendActivation(c *fiber.Ctx) error {
	var req resendActivationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if req.Username == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Username is required."})
	}

	ctx := UserContext(c)
	user, err := h.Users.FindByUsername(ctx, req.Username)
	if errors.Is(err, users.ErrNotFound) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No user with that username."})
	}
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "internal error")
	}
	if user.IsActive {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Account is already active."})
	}

	if err := h.sendActivationEmail(user); err != nil {
		log.Printf("resend activation email for %s: %v", user.Username, err)
		return fiber.NewError(fiber.StatusInternalServerError, "could not send activation email")
	}
	return c.JSON(fiber.Map{"message": "A new activation link has been sent."})
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

// PasswordReset always answers 200 so the endpoint cannot be used to probe
// which addresses have accounts.
func (h *Handler) PasswordReset(c *fiber.Ctx) error {
	var req passwordResetRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if req.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Email is required."})
	}

	ctx := UserContext(c)
	user, err := h.Users.FindByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, users.ErrNotFound) {
		return fiber.NewError(fiber.StatusInternalServerError, "internal error")
	}

	if user != nil && user.IsActive {
		token, err := h.Resets.Create(ctx, user.ID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "internal error")
		}
		link := fmt.Sprintf("%s/reset-password/confirm?token=%s", h.FrontendURL, token)
		body := fmt.Sprintf("Use the following link to reset your password: %s", link)
		if err := h.Mailer.Send(user.Email, "Password reset", body); err != nil {
			log.Printf("password reset email for %s: %v", user.Username, err)
			return fiber.NewError(fiber.StatusInternalServerError, "could not send password reset email")
		}
	}

	return c.JSON(fiber.Map{"message": "If the address exists, a reset link has been sent."})
}

type passwordResetConfirmRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// PasswordResetConfirm consumes a reset token and sets the new password.
func (h *Handler) PasswordResetConfirm(c *fiber.Ctx) error {
	var req passwordResetConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if req.Token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Token is required."})
	}
	if msg := CheckPasswordStrength(req.Password); msg != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": fiber.Map{"password": msg}})
	}

	ctx := UserContext(c)
	userID, err := h.Resets.Consume(ctx, req.Token)
	if errors.Is(err, ErrResetTokenInvalid) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid or expired reset token."})
	}
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "internal error")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "internal error")
	}
	if err := h.Users.UpdatePassword(ctx, userID, string(hashed)); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "internal error")
	}
	// Old sessions cannot refresh after a reset.
	if err := h.Refresh.Delete(ctx, userID); err != nil {
		log.Printf("password reset refresh delete: %v", err)
	}

	return c.JSON(fiber.Map{"message": "Password has been reset."})
}

func strPtr(s string) *string { return &s }
