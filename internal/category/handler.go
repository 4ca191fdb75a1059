package category

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spendwise-app/spendwise-backend/internal/auth"
)

// Store is the category access the handler needs; categories are seeded out
// of band and read-only here.
type Store interface {
	List(ctx context.Context) ([]Category, error)
}

type Handler struct {
	Repo Store
}

func NewHandler(repo Store) *Handler {
	return &Handler{Repo: repo}
}

func (h *Handler) ListCategories(c *fiber.Ctx) error {
	items, err := h.Repo.List(auth.UserContext(c))
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to list categories")
	}
	return c.JSON(items)
}
