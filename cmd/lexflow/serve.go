package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukex/lexflow/pkg/backend"
	"github.com/dukex/lexflow/pkg/cmd"
	"github.com/dukex/lexflow/pkg/eventbus"
	"github.com/dukex/lexflow/pkg/log"
	"github.com/dukex/lexflow/pkg/otelhelper"
	"github.com/dukex/lexflow/pkg/persistence"
	"github.com/dukex/lexflow/pkg/services"
	"github.com/urfave/cli/v3"
)

const (
	defaultPort        = 9091
	defaultIdleTimeout = 30 * time.Minute
	defaultSchedule    = "@every 1m"
)

func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:     "backend-url",
				Usage:    "Base URL of the product backend serving /api routes",
				Required: true,
				Sources:  cli.EnvVars("LEXFLOW_BACKEND_URL"),
			},
			&cli.StringFlag{
				Name:    "session-store-url",
				Usage:   "Session and flow store (file://<dir> or redis://...)",
				Value:   "file://./data",
				Sources: cli.EnvVars("SESSION_STORE_URL"),
			},
			&cli.StringFlag{
				Name:    "audit-database-url",
				Usage:   "PostgreSQL URL for the flow audit log; empty disables auditing",
				Sources: cli.EnvVars("AUDIT_DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.DurationFlag{
				Name:    "session-idle-timeout",
				Usage:   "Sessions and flows untouched for this long are discarded",
				Value:   defaultIdleTimeout,
				Sources: cli.EnvVars("SESSION_IDLE_TIMEOUT"),
			},
			&cli.StringFlag{
				Name:    "janitor-schedule",
				Usage:   "Cron schedule of the idle sweep",
				Value:   defaultSchedule,
				Sources: cli.EnvVars("JANITOR_SCHEDULE"),
			},
			&cli.BoolFlag{
				Name:    "tracing-enabled",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("lexflow")
			logger.InfoContext(ctx, "Initializing LexFlow API")

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			tracer := otelhelper.NoopTracer()

			if command.Bool("tracing-enabled") {
				var (
					shutdown otelhelper.ShutdownFunc
					err      error
				)

				tracer, shutdown, err = otelhelper.NewTracer(ctx, "lexflow")
				if err != nil {
					return fmt.Errorf("failed to initialize tracer: %w", err)
				}

				defer func() {
					if err := shutdown(context.WithoutCancel(ctx)); err != nil {
						logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
					}
				}()
			}

			idle := command.Duration("session-idle-timeout")

			store, err := cmd.NewPersistence(ctx, logger, command.String("session-store-url"), idle)
			if err != nil {
				return fmt.Errorf("failed to open session store: %w", err)
			}

			defer func() {
				if err := store.Close(context.WithoutCancel(ctx)); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			audit, err := cmd.NewAuditRepository(ctx, logger, command.String("audit-database-url"))
			if err != nil {
				return fmt.Errorf("failed to open audit log: %w", err)
			}

			if audit != nil {
				defer func() {
					if err := audit.Close(context.WithoutCancel(ctx)); err != nil {
						logger.ErrorContext(ctx, "Failed to close audit log", "error", err)
					}
				}()

				if err := startAuditRecorder(ctx, logger, audit, eventBus); err != nil {
					return err
				}
			}

			api := NewAPI(
				logger,
				store,
				audit,
				eventBus,
				backend.NewClient(command.String("backend-url"), logger),
				tracer,
			)

			janitor, err := services.NewJanitor(
				command.String("janitor-schedule"),
				idle,
				api.Sweepers(),
				services.WithLogger(logger),
			)
			if err != nil {
				return err
			}

			if err := janitor.Start(ctx); err != nil {
				return err
			}
			defer janitor.Stop()

			return api.Start(ctx, command.Int("port"))
		},
	}
}

// startAuditRecorder writes every flow event to the audit log.
func startAuditRecorder(ctx context.Context, logger *slog.Logger, audit persistence.AuditRepository, subscriber eventbus.EventSubscriber) error {
	recorder := services.NewAuditRecorder(audit, services.WithLogger(logger))

	if err := recorder.Register(subscriber); err != nil {
		return fmt.Errorf("failed to register audit recorder: %w", err)
	}

	return subscriber.Subscribe(ctx)
}
