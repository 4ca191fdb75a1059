// Package moderator exposes user administration for members of the
// Moderator group. Privileged accounts are invisible to it: reads answer
// not-found and deletes are forbidden.
package moderator

import (
	"context"
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spendwise-app/spendwise-backend/internal/audit"
	"github.com/spendwise-app/spendwise-backend/internal/auth"
	"github.com/spendwise-app/spendwise-backend/internal/users"
)

// UserStore is the slice of the users repository moderation needs.
type UserStore interface {
	FindByID(ctx context.Context, id string) (*users.User, error)
	IsModerator(ctx context.Context, id string) (bool, error)
	ListOrdinary(ctx context.Context, requesterID string) ([]users.User, error)
	Delete(ctx context.Context, id string) error
}

type Handler struct {
	Users UserStore
	Audit audit.Recorder
}

func NewHandler(store UserStore, rec audit.Recorder) *Handler {
	return &Handler{Users: store, Audit: rec}
}

// RequireModerator gates routes on Moderator group membership.
func (h *Handler) RequireModerator() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := auth.UserID(c)
		if err != nil {
			return err
		}
		isMod, err := h.Users.IsModerator(auth.UserContext(c), userID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "internal error")
		}
		if !isMod {
			return fiber.NewError(fiber.StatusForbidden, "moderator access required")
		}
		return c.Next()
	}
}

func userListJSON(u *users.User) fiber.Map {
	return fiber.Map{
		"id":         u.ID,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
		"username":   u.Username,
	}
}

// ListUsers returns ordinary active accounts: no staff, no superusers, no
// moderators, and never the requester.
func (h *Handler) ListUsers(c *fiber.Ctx) error {
	requesterID, err := auth.UserID(c)
	if err != nil {
		return err
	}

	list, err := h.Users.ListOrdinary(auth.UserContext(c), requesterID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to list users")
	}

	out := make([]fiber.Map, 0, len(list))
	for i := range list {
		out = append(out, userListJSON(&list[i]))
	}
	return c.JSON(out)
}

// protected reports whether the target is off-limits to moderators.
func (h *Handler) protected(ctx context.Context, requesterID string, target *users.User) (bool, error) {
	if target.ID == requesterID || target.IsStaff || target.IsSuperuser {
		return true, nil
	}
	return h.Users.IsModerator(ctx, target.ID)
}

func (h *Handler) getTarget(c *fiber.Ctx) (*users.User, bool, error) {
	requesterID, err := auth.UserID(c)
	if err != nil {
		return nil, false, err
	}
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return nil, false, fiber.NewError(fiber.StatusNotFound, "user not found")
	}

	ctx := auth.UserContext(c)
	target, err := h.Users.FindByID(ctx, id)
	if errors.Is(err, users.ErrNotFound) {
		return nil, false, fiber.NewError(fiber.StatusNotFound, "user not found")
	}
	if err != nil {
		return nil, false, fiber.NewError(fiber.StatusInternalServerError, "internal error")
	}

	prot, err := h.protected(ctx, requesterID, target)
	if err != nil {
		return nil, false, fiber.NewError(fiber.StatusInternalServerError, "internal error")
	}
	return target, prot, nil
}

// GetUser returns account details; protected targets are indistinguishable
// from missing ones.
func (h *Handler) GetUser(c *fiber.Ctx) error {
	target, prot, err := h.getTarget(c)
	if err != nil {
		return err
	}
	if prot {
		return fiber.NewError(fiber.StatusNotFound, "user not found")
	}
	detail := userListJSON(target)
	detail["email"] = target.Email
	return c.JSON(detail)
}

// DeleteUser removes an ordinary account. Protected targets are forbidden
// rather than hidden: the moderator already knows they exist.
func (h *Handler) DeleteUser(c *fiber.Ctx) error {
	target, prot, err := h.getTarget(c)
	if err != nil {
		return err
	}
	if prot {
		return fiber.NewError(fiber.StatusForbidden, "cannot delete this user")
	}

	ctx := auth.UserContext(c)
	if err := h.Users.Delete(ctx, target.ID); err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to delete user")
	}

	requesterID, _ := auth.UserID(c)
	if err := h.Audit.Record(ctx, audit.Entry{
		UserID:     &requesterID,
		Action:     "user.delete",
		EntityType: "user",
		EntityID:   &target.ID,
		IP:         ipPtr(c.IP()),
	}); err != nil {
		log.Printf("audit user delete: %v", err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func ipPtr(s string) *string { return &s }
