package main

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/spendwise-app/spendwise-backend/internal/audit"
	"github.com/spendwise-app/spendwise-backend/internal/auth"
	"github.com/spendwise-app/spendwise-backend/internal/category"
	"github.com/spendwise-app/spendwise-backend/internal/config"
	"github.com/spendwise-app/spendwise-backend/internal/expense"
	"github.com/spendwise-app/spendwise-backend/internal/mailer"
	"github.com/spendwise-app/spendwise-backend/internal/moderator"
	"github.com/spendwise-app/spendwise-backend/internal/router"
	"github.com/spendwise-app/spendwise-backend/internal/summary"
	"github.com/spendwise-app/spendwise-backend/internal/users"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("error creating pgx pool: %v", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("error pinging database: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("error pinging redis: %v", err)
	}

	var mail mailer.Mailer = mailer.Log{}
	if cfg.SMTPHost != "" {
		mail = &mailer.SMTP{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			From: cfg.MailFrom,
		}
	}

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

	app.Use(router.CorsMiddleware(cfg.FrontendURL))
	app.Use(requestLogger())
	app.Use(router.CSRFMiddleware(cfg.CookieSecure))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	userRepo := users.NewRepository(pool)
	auditRec := &audit.PG{Pool: pool}
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.AccessExpiry, cfg.RefreshExpiry)

	authHandler := &auth.Handler{
		Users:       userRepo,
		Tokens:      tokens,
		Activation:  auth.NewActivationTokens(cfg.JWTSecret, cfg.ActivationTimeout),
		Throttle:    &auth.LoginThrottle{RDB: rdb, TTL: cfg.LoginFailureTTL},
		Refresh:     &auth.RefreshStore{RDB: rdb},
		Resets:      &auth.ResetStore{RDB: rdb, TTL: cfg.ResetTimeout},
		Mailer:      mail,
		Audit:       auditRec,
		Cookies:     auth.Cookies{Secure: cfg.CookieSecure},
		FrontendURL: cfg.FrontendURL,
	}

	categoryRepo := category.NewRepository(pool)
	expenseRepo := expense.NewRepository(pool)

	r := &router.Router{
		AuthHandler:      authHandler,
		CategoryHandler:  category.NewHandler(categoryRepo),
		ExpenseHandler:   expense.NewHandler(expenseRepo, categoryRepo),
		SummaryHandler:   &summary.Handler{Repo: summary.Repo{DB: pool}},
		ModeratorHandler: moderator.NewHandler(userRepo, auditRec),
		AuthMW:           auth.Middleware(tokens),
	}
	r.RegisterRoutes(app)

	log.Println("Listening on port", cfg.Port)
	log.Fatal(app.Listen(":" + cfg.Port))
}

func requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		log.Printf("%s %s %d %s", c.Method(), c.Path(), status, time.Since(start))
		return err
	}
}
