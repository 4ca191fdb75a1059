package expense

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spendwise-app/spendwise-backend/internal/auth"
	"github.com/spendwise-app/spendwise-backend/internal/money"
)

const dateLayout = "2006-01-02"

// Store is the expense persistence the handler needs.
type Store interface {
	Insert(ctx context.Context, e *Expense) (string, error)
	ListByUser(ctx context.Context, userID string) ([]Expense, error)
	FindForUser(ctx context.Context, id, userID string) (*Expense, error)
	Update(ctx context.Context, e *Expense) error
	Delete(ctx context.Context, id, userID string) error
}

// CategoryChecker validates category references on writes.
type CategoryChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

type Handler struct {
	Repo       Store
	Categories CategoryChecker

	// Now is swapped out in tests; nil means time.Now.
	Now func() time.Time
}

func NewHandler(repo Store, categories CategoryChecker) *Handler {
	return &Handler{Repo: repo, Categories: categories}
}

func (h *Handler) today() time.Time {
	now := time.Now()
	if h.Now != nil {
		now = h.Now()
	}
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func expenseJSON(e *Expense) fiber.Map {
	var category interface{}
	if e.CategoryID != nil {
		category = *e.CategoryID
	}
	return fiber.Map{
		"id":       e.ID,
		"category": category,
		"amount":   money.FormatCents(e.AmountCents),
		"date":     e.SpentOn.Format(dateLayout),
	}
}

// ListExpenses groups the owner's expenses by date, newest date first; the
// date appears once per group, not on the items.
func (h *Handler) ListExpenses(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}

	items, err := h.Repo.ListByUser(auth.UserContext(c), userID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to list expenses")
	}

	groups := make([]fiber.Map, 0)
	var current []fiber.Map
	var currentDate string
	flush := func() {
		if current != nil {
			groups = append(groups, fiber.Map{"date": currentDate, "expenses": current})
		}
	}
	for i := range items {
		e := &items[i]
		d := e.SpentOn.Format(dateLayout)
		if d != currentDate {
			flush()
			currentDate = d
			current = make([]fiber.Map, 0, 1)
		}
		item := expenseJSON(e)
		delete(item, "date")
		current = append(current, item)
	}
	flush()

	return c.JSON(groups)
}

// parseWrite validates a create/update payload against the given base
// expense and returns field-keyed messages on failure.
func (h *Handler) parseWrite(c *fiber.Ctx, base *Expense, partial bool) (map[string]string, error) {
	var req writeRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}

	errs := make(map[string]string)
	ctx := auth.UserContext(c)

	if req.Amount != "" {
		cents, err := money.ParseAmount(string(req.Amount))
		switch {
		case errors.Is(err, money.ErrAmountNegative):
			errs["amount"] = "Amount must be greater than 0."
		case err != nil:
			errs["amount"] = "Enter a valid amount with at most two decimal places."
		default:
			base.AmountCents = cents
		}
	} else if !partial {
		errs["amount"] = "This field is required."
	}

	if req.Date != nil {
		parsed, err := time.Parse(dateLayout, *req.Date)
		if err != nil {
			errs["date"] = "Enter a valid date in YYYY-MM-DD format."
		} else if parsed.After(h.today()) {
			errs["date"] = "Date cannot be in the future."
		} else {
			base.SpentOn = parsed
		}
	} else if base.SpentOn.IsZero() {
		// Date defaults to today on create.
		base.SpentOn = h.today()
	}

	if req.Category != nil {
		if *req.Category == "" {
			base.CategoryID = nil
		} else if _, err := uuid.Parse(*req.Category); err != nil {
			errs["category"] = "Invalid category."
		} else {
			exists, err := h.Categories.Exists(ctx, *req.Category)
			if err != nil {
				return nil, fiber.NewError(fiber.StatusInternalServerError, "internal error")
			}
			if !exists {
				errs["category"] = "Invalid category."
			} else {
				base.CategoryID = req.Category
			}
		}
	}

	return errs, nil
}

// CreateExpense stores a new expense owned by the requester; any
// client-supplied owner is ignored.
func (h *Handler) CreateExpense(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}

	e := &Expense{UserID: userID}
	errs, err := h.parseWrite(c, e, false)
	if err != nil {
		return err
	}
	if len(errs) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": errs})
	}

	id, err := h.Repo.Insert(auth.UserContext(c), e)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to add expense")
	}
	e.ID = id

	return c.Status(fiber.StatusCreated).JSON(expenseJSON(e))
}

func (h *Handler) getOwned(c *fiber.Ctx) (*Expense, error) {
	userID, err := auth.UserID(c)
	if err != nil {
		return nil, err
	}
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return nil, fiber.NewError(fiber.StatusNotFound, "expense not found")
	}
	e, err := h.Repo.FindForUser(auth.UserContext(c), id, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, fiber.NewError(fiber.StatusNotFound, "expense not found")
	}
	if err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "internal error")
	}
	return e, nil
}

func (h *Handler) GetExpense(c *fiber.Ctx) error {
	e, err := h.getOwned(c)
	if err != nil {
		return err
	}
	return c.JSON(expenseJSON(e))
}

// UpdateExpense applies a partial update; untouched fields keep their
// stored values.
func (h *Handler) UpdateExpense(c *fiber.Ctx) error {
	e, err := h.getOwned(c)
	if err != nil {
		return err
	}

	errs, err := h.parseWrite(c, e, true)
	if err != nil {
		return err
	}
	if len(errs) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": errs})
	}

	if err := h.Repo.Update(auth.UserContext(c), e); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "expense not found")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to update expense")
	}
	return c.JSON(expenseJSON(e))
}

func (h *Handler) DeleteExpense(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return fiber.NewError(fiber.StatusNotFound, "expense not found")
	}

	err = h.Repo.Delete(auth.UserContext(c), id, userID)
	if errors.Is(err, ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "expense not found")
	}
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to delete expense")
	}
	return c.SendStatus(fiber.StatusNoContent)
}
