package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spendwise-app/spendwise-backend/internal/auth"
	"github.com/spendwise-app/spendwise-backend/internal/category"
	"github.com/spendwise-app/spendwise-backend/internal/expense"
	"github.com/spendwise-app/spendwise-backend/internal/moderator"
	"github.com/spendwise-app/spendwise-backend/internal/summary"
)

type Router struct {
	AuthHandler      *auth.Handler
	CategoryHandler  *category.Handler
	ExpenseHandler   *expense.Handler
	SummaryHandler   *summary.Handler
	ModeratorHandler *moderator.Handler
	AuthMW           fiber.Handler
}

func (r *Router) RegisterRoutes(app *fiber.App) {
	api := app.Group("/api")

	api.Get("/get-csrf-token", CSRFToken)

	api.Post("/auth/token", RateLimitLogin(), r.AuthHandler.Login)
	api.Post("/auth/token/refresh", r.AuthHandler.RefreshToken)
	api.Post("/auth/password_reset", RateLimitLogin(), r.AuthHandler.PasswordReset)
	api.Post("/auth/password_reset/confirm", RateLimitLogin(), r.AuthHandler.PasswordResetConfirm)

	api.Post("/register", RateLimitRegistration(), r.AuthHandler.Register)
	api.Get("/activate", r.AuthHandler.Activate)
	api.Post("/resend-activation", RateLimitRegistration(), r.AuthHandler.ResendActivation)

	api.Post("/logout", r.AuthHandler.Logout)
	api.Get("/is-logged-in", r.AuthMW, RateLimitUser(), r.AuthHandler.IsLoggedIn)

	api.Get("/categories", r.AuthMW, RateLimitUser(), r.CategoryHandler.ListCategories)

	expenses := api.Group("/expenses", r.AuthMW, RateLimitExpense())
	// The summary route must precede the id parameter.
	expenses.Get("/summary", r.SummaryHandler.GetSummary)
	expenses.Get("/", r.ExpenseHandler.ListExpenses)
	expenses.Post("/", r.ExpenseHandler.CreateExpense)
	expenses.Get("/:id", r.ExpenseHandler.GetExpense)
	expenses.Put("/:id", r.ExpenseHandler.UpdateExpense)
	expenses.Delete("/:id", r.ExpenseHandler.DeleteExpense)

	mod := api.Group("/moderator", r.AuthMW, r.ModeratorHandler.RequireModerator(), RateLimitModerator())
	mod.Get("/users", r.ModeratorHandler.ListUsers)
	mod.Get("/users/:id", r.ModeratorHandler.GetUser)
	mod.Delete("/users/:id", r.ModeratorHandler.DeleteUser)
}
