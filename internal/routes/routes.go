package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/isoapp/iso_server/internal/config"
	"github.com/isoapp/iso_server/internal/market"
	"github.com/isoapp/iso_server/internal/middleware"
	"github.com/isoapp/iso_server/internal/notification"
)

// Deps aggregates shared dependencies required to wire routes. DB and Cache
// are optional.
type Deps struct {
	Cfg      config.Config
	Store    *market.Store
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Notifier notification.Notifier
	Logger   *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Store == nil {
		return fmt.Errorf("routes: store is required")
	}
	if d.Notifier == nil {
		d.Notifier = notification.NewLoggerNotifier(d.Logger)
	}

	app.Use(recover.New())
	// Any origin may call the API. Requested headers are echoed back and
	// preflights are cached for an hour.
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH,OPTIONS",
		MaxAge:       3600,
	}))
	app.Use(compress.New())
	app.Use(middleware.RequestID())
	if d.Cfg.IsDev() {
		// Plain text access log: [HH:MM:SS] 200 -  145ms METHOD /path
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	} else {
		app.Use(middleware.Audit(d.Logger))
	}
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterHealthRoutes(app, d)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.GetRequestID(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	h := market.NewHandler(d.Store, d.Notifier, d.Logger)
	RegisterPostRoutes(api, h)
	RegisterUserRoutes(api, h, middleware.VerificationRateLimit(d.Cache, d.Cfg.VerifyLimit, d.Logger))

	return nil
}

// RegisterPostRoutes mounts the feed and listing endpoints.
func RegisterPostRoutes(api fiber.Router, h *market.Handler) {
	posts := api.Group("/posts")
	posts.Get("/feedPage/:index", h.FeedPage)
	posts.Get("/single/:id", h.SinglePost)
	posts.Post("/new", h.NewPost)
	posts.Post("/claim", h.ClaimPost)
}

// RegisterUserRoutes mounts account and verification endpoints. limiter
// guards the endpoint that sends SMS.
func RegisterUserRoutes(api fiber.Router, h *market.Handler, limiter fiber.Handler) {
	users := api.Group("/users")
	users.Post("/userInfo", h.UserInfo)
	users.Post("/startVerification", limiter, h.StartVerification)
	users.Post("/checkVerification", h.CheckVerification)
}
