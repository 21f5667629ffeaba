package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	fiberSwagger "github.com/swaggo/fiber-swagger"
	"go.uber.org/zap"

	"github.com/droszt-service/internal/config"
	"github.com/droszt-service/internal/delivery/http/handler"
	"github.com/droszt-service/internal/delivery/http/middleware"
	"github.com/droszt-service/internal/pkg/errors"
	"github.com/droszt-service/internal/pkg/utils"
)

// Handlers - все обработчики API
type Handlers struct {
	Session *handler.SessionHandler
	Queue   *handler.QueueHandler
	Admin   *handler.AdminHandler
	Notes   *handler.NotesHandler
	Device  *handler.DeviceHandler
}

// Server - HTTP сервер на основе Fiber
type Server struct {
	app         *fiber.App
	config      *config.Config
	logger      *zap.Logger
	handlers    Handlers
	revocations middleware.RevocationChecker
}

func NewServer(cfg *config.Config, logger *zap.Logger, handlers Handlers, revocations middleware.RevocationChecker) *Server {
	app := fiber.New(fiber.Config{
		AppName:      "Droszt Queue Service",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
		// имена очередей с диакритикой: Reptér, Akadémia
		UnescapePath: true,
		ErrorHandler: customErrorHandler(logger),
	})

	s := &Server{
		app:         app,
		config:      cfg,
		logger:      logger,
		handlers:    handlers,
		revocations: revocations,
	}

	s.setupMiddlewares()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddlewares() {
	s.app.Use(middleware.Recovery(s.logger))
	s.app.Use(middleware.Logger(s.logger))
	s.app.Use(middleware.CORS(s.config.Server.CORSOrigins))
	s.app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
}

func (s *Server) setupRoutes() {
	s.app.Get("/swagger/*", fiberSwagger.WrapHandler)

	api := s.app.Group("/api/v1")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now(),
		})
	})

	authed := api.Group("", middleware.Auth(s.config.Auth.JWTSecret, s.revocations, s.logger))

	// Session
	authed.Post("/session", s.handlers.Session.BeginSession)
	authed.Delete("/session", s.handlers.Session.SignOut)

	// Queues
	authed.Get("/queues/:queue", s.handlers.Queue.GetQueue)
	authed.Post("/queues/:queue/checkin", s.handlers.Queue.CheckIn)
	authed.Post("/queues/:queue/checkout", s.handlers.Queue.CheckOut)
	authed.Post("/queues/:queue/flame", s.handlers.Queue.Flame)
	authed.Post("/queues/:queue/marker", s.handlers.Queue.ToggleMarker)
	authed.Post("/checkout-all", s.handlers.Queue.CheckoutAll)
	authed.Put("/profile", s.handlers.Queue.UpdateProfile)

	// Airport orders
	repter := handler.RepterOnly()
	authed.Get("/queues/:queue/notes", repter, s.handlers.Notes.List)
	authed.Post("/queues/:queue/notes", repter, middleware.AdminOnly(), s.handlers.Notes.Add)
	authed.Post("/queues/:queue/notes/move", repter, middleware.AdminOnly(), s.handlers.Notes.Move)
	authed.Put("/queues/:queue/notes/:index", repter, middleware.AdminOnly(), s.handlers.Notes.Update)
	authed.Delete("/queues/:queue/notes/:index", repter, middleware.AdminOnly(), s.handlers.Notes.Delete)

	// Admin
	admin := authed.Group("/admin", middleware.AdminOnly())
	admin.Put("/queues/:queue/order", s.handlers.Admin.Reorder)
	admin.Delete("/queues/:queue/members/:uid", s.handlers.Admin.Kick)
	admin.Delete("/drivers/:uid/queues", s.handlers.Admin.KickEverywhere)

	// Device
	authed.Post("/location/samples", s.handlers.Device.Samples)
	authed.Post("/location/region-events", s.handlers.Device.RegionEvent)
	authed.Post("/tracking/start", s.handlers.Device.StartTracking)
	authed.Post("/tracking/stop", s.handlers.Device.StopTracking)
	authed.Post("/geofence/start", s.handlers.Device.StartGeofence)
	authed.Post("/geofence/stop", s.handlers.Device.StopGeofence)
	authed.Get("/geofence/status", s.handlers.Device.GeofenceStatus)
	authed.Put("/device/state", s.handlers.Device.DeviceState)
	authed.Post("/heartbeat/respond", s.handlers.Device.HeartbeatRespond)
}

// App - для тестов через app.Test
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Start() error {
	addr := s.config.GetServerAddr()
	s.logger.Info("Starting HTTP server", zap.String("address", addr))
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.app.ShutdownWithContext(ctx)
}

// customErrorHandler - ошибки, вернувшиеся из обработчиков мимо utils.SendError
func customErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		if e, ok := err.(*fiber.Error); ok {
			appErr := errors.New("HTTP_ERROR", e.Message, e.Code)
			if e.Code == fiber.StatusNotFound {
				appErr = errors.New("NOT_FOUND", "Route not found", e.Code)
			}
			return c.Status(e.Code).JSON(utils.ErrorResponse{Error: appErr})
		}

		logger.Error("HTTP Error",
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return utils.SendError(c, err)
	}
}
