// Package main provides the Atlas management API server.
package main

import (
	"log/slog"
	"strconv"

	"github.com/atlasfit/automation/pkg/persistence"
	"github.com/atlasfit/automation/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger   *slog.Logger
	store    persistence.Persistence
	validate *validator.Validate
}

func NewAPI(logger *slog.Logger, store persistence.Persistence) *API {
	return &API{
		logger:   logger,
		store:    store,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.store, a.validate, a.logger)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Atlas Automation API")
	})

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Post("/validate", handlers.ValidateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Delete("/:id", handlers.ArchiveWorkflow)
	w.Get("/:id/executions", handlers.GetWorkflowExecutions)

	wh := app.Group("/webhooks")
	wh.Post("/", handlers.CreateWebhook)
	wh.Get("/:id", handlers.GetWebhook)

	app.Get("/executions/:id", handlers.GetExecution)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
