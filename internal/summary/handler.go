package summary

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spendwise-app/spendwise-backend/internal/auth"
	"github.com/spendwise-app/spendwise-backend/internal/money"
)

const noCategoryLabel = "No category"

type Store interface {
	MonthToDate(ctx context.Context, userID string, today time.Time) ([]CategoryTotal, error)
}

type Handler struct {
	Repo Store

	// Now is swapped out in tests; nil means time.Now.
	Now func() time.Time
}

// GetSummary returns this month's per-category totals for the requester.
func (h *Handler) GetSummary(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}

	now := time.Now()
	if h.Now != nil {
		now = h.Now()
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	totals, err := h.Repo.MonthToDate(auth.UserContext(c), userID, today)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch summary")
	}

	out := make([]fiber.Map, 0, len(totals))
	for _, t := range totals {
		name := t.Category
		if name == "" {
			name = noCategoryLabel
		}
		out = append(out, fiber.Map{
			"category": name,
			"total":    money.FormatCents(t.Cents),
		})
	}
	return c.JSON(out)
}
