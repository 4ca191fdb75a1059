package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spendwise-app/spendwise-backend/internal/users"
)

var (
	ErrActivationInvalid = errors.New("invalid activation token")
	ErrActivationExpired = errors.New("activation token expired")
)

// ActivationTokens issues and checks the signed tokens mailed on registration.
//
// A token is "<base36 timestamp>-<mac>" where the MAC covers the user id,
// the issue timestamp, and account state (password hash, active flag, last
// login). Activating the account or logging in changes that state, so a
// token stops verifying once used — no server-side storage needed.
type ActivationTokens struct {
	secret  []byte
	timeout time.Duration
}

func NewActivationTokens(secret string, timeout time.Duration) *ActivationTokens {
	return &ActivationTokens{secret: []byte(secret), timeout: timeout}
}

func (a *ActivationTokens) Make(u *users.User) string {
	ts := time.Now().Unix()
	return fmt.Sprintf("%s-%s", strconv.FormatInt(ts, 36), a.mac(u, ts))
}

// Check verifies the token against the user's current state. Expired and
// tampered tokens fail with distinct errors so the client can offer a resend.
func (a *ActivationTokens) Check(u *users.User, token string) error {
	tsPart, macPart, ok := strings.Cut(token, "-")
	if !ok || macPart == "" {
		return ErrActivationInvalid
	}
	ts, err := strconv.ParseInt(tsPart, 36, 64)
	if err != nil {
		return ErrActivationInvalid
	}
	if !hmac.Equal([]byte(a.mac(u, ts)), []byte(macPart)) {
		return ErrActivationInvalid
	}
	if time.Since(time.Unix(ts, 0)) > a.timeout {
		return ErrActivationExpired
	}
	return nil
}

func (a *ActivationTokens) mac(u *users.User, ts int64) string {
	var lastLogin int64
	if u.LastLogin != nil {
		lastLogin = u.LastLogin.Unix()
	}
	state := fmt.Sprintf("%s|%d|%s|%t|%d", u.ID, ts, u.PasswordHash, u.IsActive, lastLogin)
	h := hmac.New(sha256.New, a.secret)
	h.Write([]byte(state))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
