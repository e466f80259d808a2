package main

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/dukex/lexflow/pkg/backend"
	"github.com/dukex/lexflow/pkg/eventbus"
	"github.com/dukex/lexflow/pkg/flows"
	"github.com/dukex/lexflow/pkg/persistence"
	"github.com/dukex/lexflow/pkg/services"
	"github.com/dukex/lexflow/pkg/validation"
	"github.com/dukex/lexflow/pkg/walkthrough"
	"github.com/dukex/lexflow/pkg/web"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"
)

const shutdownTimeout = 10 * time.Second

type API struct {
	logger *slog.Logger
	store  persistence.Persistence
	audit  persistence.AuditRepository

	sessions     *services.Session
	flows        *services.Flow
	walkthroughs *services.Walkthrough
}

func NewAPI(
	logger *slog.Logger,
	store persistence.Persistence,
	audit persistence.AuditRepository,
	eventBus eventbus.EventBus,
	backendClient *backend.Client,
	tracer trace.Tracer,
) *API {
	opts := []services.Option{services.WithLogger(logger), services.WithTracer(tracer)}
	catalog := flows.NewCatalog()

	flowService := services.NewFlow(
		catalog,
		validation.New(validation.NewValidate()),
		store.FlowRepository(),
		backendClient,
		eventBus,
		opts...,
	)
	walkthroughs := services.NewWalkthrough(catalog, walkthrough.DefaultConfig(), opts...)

	return &API{
		logger:       logger,
		store:        store,
		audit:        audit,
		flows:        flowService,
		walkthroughs: walkthroughs,
		sessions:     services.NewSession(store.SessionRepository(), flowService, walkthroughs, backendClient, opts...),
	}
}

// Sweepers lists the services the janitor discards idle records from.
func (a *API) Sweepers() []services.Sweeper {
	return []services.Sweeper{a.sessions, a.flows, a.walkthroughs}
}

func (a *API) App() *fiber.App {
	checkers := map[string]web.HealthChecker{"store": a.store}
	if a.audit != nil {
		checkers["audit"] = a.audit
	}

	handlers := web.NewAPIHandlers(a.sessions, a.flows, a.walkthroughs, validation.NewValidate(), checkers)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("LexFlow API")
	})

	handlers.Register(app)

	return app
}

// Start serves the API until ctx is cancelled, then drains in-flight
// requests, submissions and walkthroughs.
func (a *API) Start(ctx context.Context, port int) error {
	app := a.App()
	errCh := make(chan error, 1)

	go func() {
		errCh <- app.Listen(":"+strconv.Itoa(port), fiber.ListenConfig{DisableStartupMessage: true})
	}()

	a.logger.InfoContext(ctx, "LexFlow API listening", "port", port)

	select {
	case err := <-errCh:
		a.Shutdown(context.WithoutCancel(ctx))

		return err
	case <-ctx.Done():
	}

	a.logger.InfoContext(ctx, "Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	err := app.ShutdownWithContext(shutdownCtx)
	a.Shutdown(shutdownCtx)

	return errors.Join(err, <-errCh)
}

// Shutdown stops every walkthrough and waits for pending submissions to settle.
func (a *API) Shutdown(ctx context.Context) {
	a.walkthroughs.Shutdown()

	if err := a.flows.Shutdown(ctx); err != nil {
		a.logger.ErrorContext(ctx, "Pending submissions did not settle", "error", err)
	}
}
