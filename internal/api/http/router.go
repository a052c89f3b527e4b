package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/citizenhub/complaint-service/internal/api/http/handlers"
	"github.com/citizenhub/complaint-service/internal/auth"
	apperrors "github.com/citizenhub/complaint-service/pkg/util/errorutil"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health          *handlers.HealthHandler
	Users           *handlers.UsersHandler
	Complaints      *handlers.ComplaintsHandler
	AdminComplaints *handlers.AdminComplaintsHandler
	Announcements   *handlers.AnnouncementsHandler
	Chat            *handlers.ChatHandler
	WS              *handlers.WSHandler
	AuthMiddleware  *auth.AuthMiddleware

	CORSOrigin string
	// AuthRateLimit and ChatRateLimit are requests per minute per client IP.
	AuthRateLimit int
	ChatRateLimit int
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigin,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	}))

	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", perMinute(cfg.AuthRateLimit), cfg.Users.Register)
	authGroup.Post("/login", perMinute(cfg.AuthRateLimit), cfg.Users.Login)

	session := authGroup.Group("", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	session.Post("/logout", cfg.Users.Logout)
	session.Get("/me", cfg.Users.Me)
	session.Patch("/me", cfg.Users.UpdateMe)

	complaints := app.Group("/complaints", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	complaints.Post("", cfg.Complaints.Create)
	complaints.Get("", cfg.Complaints.List)
	complaints.Get("/:id", cfg.Complaints.Get)

	app.Get("/announcements", cfg.Announcements.ListActive)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireAdmin())
	admin.Get("/complaints", cfg.AdminComplaints.Query)
	admin.Get("/complaints/stats", cfg.AdminComplaints.Stats)
	admin.Get("/complaints/report.pdf", cfg.AdminComplaints.Report)
	admin.Post("/complaints/refresh", cfg.AdminComplaints.Refresh)
	admin.Patch("/complaints/:id/status", cfg.AdminComplaints.UpdateStatus)
	admin.Delete("/complaints/:id", cfg.AdminComplaints.Delete)

	admin.Get("/announcements", cfg.Announcements.ListAll)
	admin.Post("/announcements", cfg.Announcements.Create)
	admin.Put("/announcements/:id", cfg.Announcements.Update)
	admin.Post("/announcements/:id/toggle", cfg.Announcements.Toggle)
	admin.Delete("/announcements/:id", cfg.Announcements.Delete)

	app.Post("/api/chat", perMinute(cfg.ChatRateLimit), cfg.Chat.Chat)

	if cfg.WS != nil {
		app.Get("/ws", cfg.WS.Upgrade, cfg.WS.Serve())
	}
}

func perMinute(max int) fiber.Handler {
	if max <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			return apperrors.NewDomainError("RATE_LIMITED", "too many requests", fiber.StatusTooManyRequests, nil)
		},
	})
}
