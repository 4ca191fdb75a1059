package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spendwise-app/spendwise-backend/internal/audit"
	"github.com/spendwise-app/spendwise-backend/internal/users"
)

// fakeUserStore implements UserStore with overridable behavior per test.
type fakeUserStore struct {
	createFunc          func(ctx context.Context, u *users.User) (string, error)
	findByIDFunc        func(ctx context.Context, id string) (*users.User, error)
	findByUsernameFunc  func(ctx context.Context, username string) (*users.User, error)
	findByEmailFunc     func(ctx context.Context, email string) (*users.User, error)
	usernameTakenFunc   func(ctx context.Context, username string) (bool, error)
	emailTakenFunc      func(ctx context.Context, email string) (bool, error)
	activateFunc        func(ctx context.Context, id string) error
	updateLastLoginFunc func(ctx context.Context, id string) error
	updatePasswordFunc  func(ctx context.Context, id, hash string) error
	isModeratorFunc     func(ctx context.Context, id string) (bool, error)
}

func (f *fakeUserStore) Create(ctx context.Context, u *users.User) (string, error) {
	if f.createFunc != nil {
		return f.createFunc(ctx, u)
	}
	return "", errors.New("unexpected Create")
}

func (f *fakeUserStore) FindByID(ctx context.Context, id string) (*users.User, error) {
	if f.findByIDFunc != nil {
		return f.findByIDFunc(ctx, id)
	}
	return nil, users.ErrNotFound
}

func (f *fakeUserStore) FindByUsername(ctx context.Context, username string) (*users.User, error) {
	if f.findByUsernameFunc != nil {
		return f.findByUsernameFunc(ctx, username)
	}
	return nil, users.ErrNotFound
}

func (f *fakeUserStore) FindByEmail(ctx context.Context, email string) (*users.User, error) {
	if f.findByEmailFunc != nil {
		return f.findByEmailFunc(ctx, email)
	}
	return nil, users.ErrNotFound
}

func (f *fakeUserStore) UsernameTaken(ctx context.Context, username string) (bool, error) {
	if f.usernameTakenFunc != nil {
		return f.usernameTakenFunc(ctx, username)
	}
	return false, nil
}

func (f *fakeUserStore) EmailTaken(ctx context.Context, email string) (bool, error) {
	if f.emailTakenFunc != nil {
		return f.emailTakenFunc(ctx, email)
	}
	return false, nil
}

func (f *fakeUserStore) Activate(ctx context.Context, id string) error {
	if f.activateFunc != nil {
		return f.activateFunc(ctx, id)
	}
	return errors.New("unexpected Activate")
}

func (f *fakeUserStore) UpdateLastLogin(ctx context.Context, id string) error {
	if f.updateLastLoginFunc != nil {
		return f.updateLastLoginFunc(ctx, id)
	}
	return nil
}

func (f *fakeUserStore) UpdatePassword(ctx context.Context, id, hash string) error {
	if f.updatePasswordFunc != nil {
		return f.updatePasswordFunc(ctx, id, hash)
	}
	return errors.New("unexpected UpdatePassword")
}

func (f *fakeUserStore) IsModerator(ctx context.Context, id string) (bool, error) {
	if f.isModeratorFunc != nil {
		return f.isModeratorFunc(ctx, id)
	}
	return false, nil
}

type sentMail struct {
	To, Subject, Body string
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

type testEnv struct {
	handler *Handler
	store   *fakeUserStore
	mailer  *fakeMailer
	slept   []time.Duration
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	rdb := setupTestRedis(t)
	env := &testEnv{
		store:  &fakeUserStore{},
		mailer: &fakeMailer{},
	}
	env.handler = &Handler{
		Users:       env.store,
		Tokens:      NewTokenService(testSecret, 15*time.Minute, 24*time.Hour),
		Activation:  NewActivationTokens(testSecret, 72*time.Hour),
		Throttle:    &LoginThrottle{RDB: rdb, TTL: 15 * time.Minute},
		Refresh:     &RefreshStore{RDB: rdb},
		Resets:      &ResetStore{RDB: rdb, TTL: time.Hour},
		Mailer:      env.mailer,
		Audit:       audit.Nop{},
		Cookies:     Cookies{},
		FrontendURL: "http://localhost:3000",
		Sleep:       func(d time.Duration) { env.slept = append(env.slept, d) },
	}
	return env
}

func newTestApp(h *Handler) *fiber.App {
	// Same error shape as the api binary's central handler.
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := "internal server error"
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				code = fiberErr.Code
				message = fiberErr.Message
			}
			return c.Status(code).JSON(fiber.Map{"error": message})
		},
	})
	app.Post("/api/register", h.Register)
	app.Get("/api/activate", h.Activate)
	app.Post("/api/resend-activation", h.ResendActivation)
	app.Post("/api/auth/token", h.Login)
	app.Post("/api/auth/token/refresh", h.RefreshToken)
	app.Post("/api/auth/password_reset", h.PasswordReset)
	app.Post("/api/auth/password_reset/confirm", h.PasswordResetConfirm)
	app.Post("/api/logout", h.Logout)
	app.Get("/api/is-logged-in", Middleware(h.Tokens), h.IsLoggedIn)
	return app
}

func jsonReq(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func cookieByName(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func hashFor(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func activeUser(t *testing.T, password string) *users.User {
	return &users.User{
		ID:           "11111111-1111-1111-1111-111111111111",
		Username:     "jan",
		Email:        "jan@example.com",
		PasswordHash: hashFor(t, password),
		IsActive:     true,
	}
}

const registerBody = `{
	"username": "jan",
	"email": "jan@example.com",
	"first_name": "Jan",
	"last_name": "Kowalski",
	"password": "%s",
	"password2": "%s"
}`

func TestRegisterPasswordMismatch(t *testing.T) {
	env := newTestEnv(t)
	created := false
	env.store.createFunc = func(ctx context.Context, u *users.User) (string, error) {
		created = true
		return "id", nil
	}
	app := newTestApp(env.handler)

	body := fmt.Sprintf(registerBody, "str0ng!pass", "different!pass")
	resp, err := app.Test(jsonReq("POST", "/api/register", body))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	out := decodeBody(t, resp)
	errs := out["errors"].(map[string]interface{})
	assert.Equal(t, "Passwords do not match.", errs["password"])
	assert.False(t, created, "no account may be created on mismatch")
}

func TestRegisterPasswordRules(t *testing.T) {
	cases := map[string]string{
		"short!+":     "Password must be at least 8 characters long.",
		"12345678901": "Password cannot be entirely numeric.",
		"password123": "Password is too common.",
		"longenoughpass": "Password must contain at least one special character: " + passwordSpecials,
	}
	for password, want := range cases {
		env := newTestEnv(t)
		app := newTestApp(env.handler)

		body := fmt.Sprintf(registerBody, password, password)
		resp, err := app.Test(jsonReq("POST", "/api/register", body))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, password)

		out := decodeBody(t, resp)
		errs := out["errors"].(map[string]interface{})
		assert.Equal(t, want, errs["password"], password)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	env := newTestEnv(t)
	env.store.usernameTakenFunc = func(ctx context.Context, username string) (bool, error) {
		return true, nil
	}
	app := newTestApp(env.handler)

	body := fmt.Sprintf(registerBody, "str0ng!pass", "str0ng!pass")
	resp, err := app.Test(jsonReq("POST", "/api/register", body))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	out := decodeBody(t, resp)
	errs := out["errors"].(map[string]interface{})
	assert.Equal(t, "A user with that username already exists.", errs["username"])
}

func TestRegisterMissingFields(t *testing.T) {
	env := newTestEnv(t)
	app := newTestApp(env.handler)

	resp, err := app.Test(jsonReq("POST", "/api/register", `{"username": "jan"}`))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	out := decodeBody(t, resp)
	errs := out["errors"].(map[string]interface{})
	for _, field := range []string{"email", "first_name", "last_name", "password", "password2"} {
		assert.Equal(t, "This field is required.", errs[field], field)
	}
}

func TestRegisterCreatesInactiveAndMailsToken(t *testing.T) {
	env := newTestEnv(t)
	var created *users.User
	env.store.createFunc = func(ctx context.Context, u *users.User) (string, error) {
		created = u
		return "22222222-2222-2222-2222-222222222222", nil
	}
	app := newTestApp(env.handler)

	body := fmt.Sprintf(registerBody, "str0ng!pass", "str0ng!pass")
	resp, err := app.Test(jsonReq("POST", "/api/register", body))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	out := decodeBody(t, resp)
	assert.Equal(t, "22222222-2222-2222-2222-222222222222", out["id"])
	assert.Equal(t, "jan", out["username"])

	require.NotNil(t, created)
	assert.False(t, created.IsActive)
	assert.NotEqual(t, "str0ng!pass", created.PasswordHash)

	require.Len(t, env.mailer.sent, 1)
	assert.Equal(t, "jan@example.com", env.mailer.sent[0].To)
	assert.Contains(t, env.mailer.sent[0].Body, "uid=22222222-2222-2222-2222-222222222222")
	assert.Contains(t, env.mailer.sent[0].Body, "token=")
}

func TestRegisterMailFailureSurfaces(t *testing.T) {
	env := newTestEnv(t)
	env.store.createFunc = func(ctx context.Context, u *users.User) (string, error) {
		return "22222222-2222-2222-2222-222222222222", nil
	}
	env.mailer.err = errors.New("smtp down")
	app := newTestApp(env.handler)

	body := fmt.Sprintf(registerBody, "str0ng!pass", "str0ng!pass")
	resp, err := app.Test(jsonReq("POST", "/api/register", body))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestLoginInactiveAccount(t *testing.T) {
	env := newTestEnv(t)
	u := activeUser(t, "str0ng!pass")
	u.IsActive = false
	env.store.findByUsernameFunc = func(ctx context.Context, username string) (*users.User, error) {
		return u, nil
	}
	app := newTestApp(env.handler)

	// Even the correct password must not yield tokens for an inactive account.
	resp, err := app.Test(jsonReq("POST", "/api/auth/token", `{"username":"jan","password":"str0ng!pass"}`))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	out := decodeBody(t, resp)
	assert.Equal(t, "resend_activation", out["action"])
	assert.Nil(t, cookieByName(resp, AccessTokenCookie))
	assert.Nil(t, cookieByName(resp, RefreshTokenCookie))
}

func TestLoginWrongPasswordBacksOff(t *testing.T) {
	env := newTestEnv(t)
	u := activeUser(t, "str0ng!pass")
	env.store.findByUsernameFunc = func(ctx context.Context, username string) (*users.User, error) {
		return u, nil
	}
	app := newTestApp(env.handler)

	for i := 0; i < 3; i++ {
		resp, err := app.Test(jsonReq("POST", "/api/auth/token", `{"username":"jan","password":"wrong"}`))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		assert.Nil(t, cookieByName(resp, AccessTokenCookie))
	}

	// The first failure carries no delay; the second and third back off
	// linearly.
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, env.slept)
}

func TestLoginUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	app := newTestApp(env.handler)

	resp, err := app.Test(jsonReq("POST", "/api/auth/token", `{"username":"ghost","password":"whatever"}`))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	out := decodeBody(t, resp)
	assert.Equal(t, "invalid credentials", out["error"])
}

func TestLoginSuccessSetsCookiesOnly(t *testing.T) {
	env := newTestEnv(t)
	u := activeUser(t, "str0ng!pass")
	lastLoginUpdated := false
	env.store.findByUsernameFunc = func(ctx context.Context, username string) (*users.User, error) {
		return u, nil
	}
	env.store.updateLastLoginFunc = func(ctx context.Context, id string) error {
		lastLoginUpdated = true
		return nil
	}
	app := newTestApp(env.handler)

	// A prior failure must be cleared by the successful login.
	_, err := env.handler.Throttle.Fail(context.Background(), "jan")
	require.NoError(t, err)

	resp, err := app.Test(jsonReq("POST", "/api/auth/token", `{"username":"jan","password":"str0ng!pass"}`))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, lastLoginUpdated)

	access := cookieByName(resp, AccessTokenCookie)
	refresh := cookieByName(resp, RefreshTokenCookie)
	require.NotNil(t, access)
	require.NotNil(t, refresh)
	assert.True(t, access.HttpOnly)
	assert.True(t, refresh.HttpOnly)

	// Tokens never appear in the response body.
	out := decodeBody(t, resp)
	assert.NotContains(t, out, "access_token")
	assert.NotContains(t, out, "refresh_token")

	// Counter was reset: the next failure starts from zero delay.
	d, err := env.handler.Throttle.Fail(context.Background(), "jan")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), d)

	claims, err := env.handler.Tokens.Validate(access.Value)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
}

func TestRefreshRotatesAndInvalidatesOldToken(t *testing.T) {
	env := newTestEnv(t)
	u := activeUser(t, "str0ng!pass")
	env.store.findByUsernameFunc = func(ctx context.Context, username string) (*users.User, error) {
		return u, nil
	}
	app := newTestApp(env.handler)

	resp, err := app.Test(jsonReq("POST", "/api/auth/token", `{"username":"jan","password":"str0ng!pass"}`))
	require.NoError(t, err)
	oldRefresh := cookieByName(resp, RefreshTokenCookie)
	require.NotNil(t, oldRefresh)

	// JWT IssuedAt has second resolution; without this the rotated token
	// can be byte-identical to the old one.
	time.Sleep(1100 * time.Millisecond)

	req := jsonReq("POST", "/api/auth/token/refresh", "")
	req.AddCookie(&http.Cookie{Name: RefreshTokenCookie, Value: oldRefresh.Value})
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	newRefresh := cookieByName(resp, RefreshTokenCookie)
	require.NotNil(t, newRefresh)
	assert.NotEqual(t, oldRefresh.Value, newRefresh.Value)

	// Replaying the rotated-out token fails.
	req = jsonReq("POST", "/api/auth/token/refresh", "")
	req.AddCookie(&http.Cookie{Name: RefreshTokenCookie, Value: oldRefresh.Value})
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRefreshWithoutCookie(t *testing.T) {
	env := newTestEnv(t)
	app := newTestApp(env.handler)

	resp, err := app.Test(jsonReq("POST", "/api/auth/token/refresh", ""))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestLogoutClearsCookies(t *testing.T) {
	env := newTestEnv(t)
	app := newTestApp(env.handler)

	resp, err := app.Test(jsonReq("POST", "/api/logout", ""))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	access := cookieByName(resp, AccessTokenCookie)
	require.NotNil(t, access)
	assert.Empty(t, access.Value)
	assert.True(t, access.Expires.Before(time.Now()))
}

func TestActivateHappyPath(t *testing.T) {
	env := newTestEnv(t)
	u := activeUser(t, "str0ng!pass")
	u.IsActive = false
	activated := false
	env.store.findByIDFunc = func(ctx context.Context, id string) (*users.User, error) {
		return u, nil
	}
	env.store.activateFunc = func(ctx context.Context, id string) error {
		activated = true
		return nil
	}
	app := newTestApp(env.handler)

	token := env.handler.Activation.Make(u)
	resp, err := app.Test(httptest.NewRequest("GET",
		fmt.Sprintf("/api/activate?uid=%s&token=%s", u.ID, token), nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, activated)
}

func TestActivateTamperedToken(t *testing.T) {
	env := newTestEnv(t)
	u := activeUser(t, "str0ng!pass")
	u.IsActive = false
	env.store.findByIDFunc = func(ctx context.Context, id string) (*users.User, error) {
		return u, nil
	}
	env.store.activateFunc = func(ctx context.Context, id string) error {
		t.Fatal("activate must not be called for a tampered token")
		return nil
	}
	app := newTestApp(env.handler)

	token := env.handler.Activation.Make(u) + "x"
	resp, err := app.Test(httptest.NewRequest("GET",
		fmt.Sprintf("/api/activate?uid=%s&token=%s", u.ID, token), nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	out := decodeBody(t, resp)
	assert.Equal(t, "Invalid activation token.", out["error"])
}

func TestActivateExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	env.handler.Activation = NewActivationTokens(testSecret, 0)
	u := activeUser(t, "str0ng!pass")
	u.IsActive = false
	env.store.findByIDFunc = func(ctx context.Context, id string) (*users.User, error) {
		return u, nil
	}
	app := newTestApp(env.handler)

	token := env.handler.Activation.Make(u)
	time.Sleep(10 * time.Millisecond)
	resp, err := app.Test(httptest.NewRequest("GET",
		fmt.Sprintf("/api/activate?uid=%s&token=%s", u.ID, token), nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	out := decodeBody(t, resp)
	assert.Contains(t, out["error"], "expired")
}

func TestResendActivationAlreadyActive(t *testing.T) {
	env := newTestEnv(t)
	env.store.findByUsernameFunc = func(ctx context.Context, username string) (*users.User, error) {
		return activeUser(t, "str0ng!pass"), nil
	}
	app := newTestApp(env.handler)

	resp, err := app.Test(jsonReq("POST", "/api/resend-activation", `{"username":"jan"}`))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	out := decodeBody(t, resp)
	assert.Equal(t, "Account is already active.", out["error"])
	assert.Empty(t, env.mailer.sent)
}

func TestIsLoggedInReportsModeratorFlag(t *testing.T) {
	env := newTestEnv(t)
	env.store.isModeratorFunc = func(ctx context.Context, id string) (bool, error) {
		return true, nil
	}
	app := newTestApp(env.handler)

	access, err := env.handler.Tokens.GenerateAccessToken("user-1")
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/api/is-logged-in", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: access})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	out := decodeBody(t, resp)
	assert.Equal(t, true, out["isLoggedIn"])
	assert.Equal(t, true, out["isModerator"])
}

func TestIsLoggedInWithoutToken(t *testing.T) {
	env := newTestEnv(t)
	app := newTestApp(env.handler)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/is-logged-in", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestPasswordResetConfirmHappyPath(t *testing.T) {
	env := newTestEnv(t)
	var newHash string
	env.store.updatePasswordFunc = func(ctx context.Context, id, hash string) error {
		require.Equal(t, "user-1", id)
		newHash = hash
		return nil
	}
	app := newTestApp(env.handler)

	token, err := env.handler.Resets.Create(context.Background(), "user-1")
	require.NoError(t, err)

	body := fmt.Sprintf(`{"token":%q,"password":"n3w!secret"}`, token)
	resp, err := app.Test(jsonReq("POST", "/api/auth/password_reset/confirm", body))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NotEmpty(t, newHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(newHash), []byte("n3w!secret")))

	// Second use of the same token fails.
	resp, err = app.Test(jsonReq("POST", "/api/auth/password_reset/confirm", body))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestPasswordResetConfirmWeakPassword(t *testing.T) {
	env := newTestEnv(t)
	app := newTestApp(env.handler)

	resp, err := app.Test(jsonReq("POST", "/api/auth/password_reset/confirm",
		`{"token":"whatever","password":"short"}`))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestPasswordResetUnknownEmailStaysQuiet(t *testing.T) {
	env := newTestEnv(t)
	app := newTestApp(env.handler)

	resp, err := app.Test(jsonReq("POST", "/api/auth/password_reset", `{"email":"ghost@example.com"}`))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Empty(t, env.mailer.sent)
}
