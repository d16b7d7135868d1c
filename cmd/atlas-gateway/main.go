package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atlasfit/automation/pkg/cmd"
	"github.com/atlasfit/automation/pkg/config"
	"github.com/atlasfit/automation/pkg/gateway"
	"github.com/atlasfit/automation/pkg/log"
	"github.com/atlasfit/automation/pkg/otelhelper"
	"github.com/atlasfit/automation/pkg/ratelimit"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "atlas-gateway",
		EnableShellCompletion: true,
		Usage:                 "Start the inbound webhook gateway",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Usage:   "Port for the webhook endpoint",
				Value:   8085,
				Sources: cli.EnvVars("GATEWAY_PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for shared rate limiting (in-memory when empty)",
				Value:   "",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.IntFlag{
				Name:    "rate-limit",
				Usage:   "Max webhook requests per window per webhook",
				Value:   ratelimit.DefaultMaxRequests,
				Sources: cli.EnvVars("RATE_LIMIT_MAX_REQUESTS"),
			},
			&cli.DurationFlag{
				Name:    "rate-limit-window",
				Usage:   "Rate limit window",
				Value:   ratelimit.DefaultWindow,
				Sources: cli.EnvVars("RATE_LIMIT_WINDOW"),
			},
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to a YAML limits file (overrides rate limit flags)",
				Value:   "",
				Sources: cli.EnvVars("GATEWAY_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))
			logger := log.WithModule("atlas-gateway")

			logger.InfoContext(ctx, "Initializing Atlas webhook gateway")

			tracerProvider, err := otelhelper.InitTracer(ctx, "atlas-gateway")
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}

			defer func() {
				if err := tracerProvider.Shutdown(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
				}
			}()

			store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			limiterConfig := ratelimit.Config{
				MaxRequests: int64(command.Int("rate-limit")),
				Window:      command.Duration("rate-limit-window"),
			}

			var gateLimits gateway.Limits

			if configPath := command.String("config"); configPath != "" {
				limits, err := config.LoadGatewayLimits(configPath)
				if err != nil {
					return err
				}

				limiterConfig = limits.RateLimiterConfig()
				gateLimits = gateway.Limits{
					MaxPayloadBytes:    limits.MaxPayloadBytes,
					TimestampTolerance: limits.TimestampTolerance(),
				}
				logger.InfoContext(ctx, "Loaded gateway limits", "path", configPath)
			}

			var limiter ratelimit.Limiter

			if redisURL := command.String("redis-url"); redisURL != "" {
				redisLimiter, err := ratelimit.NewRedisLimiter(limiterConfig, redisURL)
				if err != nil {
					return err
				}

				defer func() {
					if err := redisLimiter.Close(); err != nil {
						logger.ErrorContext(ctx, "Failed to close rate limiter", "error", err)
					}
				}()

				limiter = redisLimiter
			} else {
				limiter = ratelimit.NewMemoryLimiter(limiterConfig)
			}

			gate := gateway.NewGate(store, limiter, eventBus, gateLimits, logger)
			server := gateway.NewServer(command.Int("port"), gate, store.HealthCheck, logger)

			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()

			if err := server.Start(runCtx); err != nil {
				return err
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			<-sigChan
			logger.InfoContext(ctx, "Shutting down gateway...")
			cancel()

			select {
			case <-server.Done():
			case <-time.After(10 * time.Second):
				logger.WarnContext(ctx, "Timed out waiting for gateway shutdown")
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
