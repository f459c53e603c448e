// Command broker-serve runs the broker core as a long-lived process:
// the queue engine, its reaper, and the event bus's LISTEN connection,
// fronted only by the operational HTTP endpoints (health check, OpenAPI
// spec, profiling) per spec.md §1's "HTTP/REST surface ... treated as a
// thin adapter [kept out of scope]" — the domain routes themselves are
// an external adapter's job, not this binary's.
package main

import (
	"context"
	"log/slog"

	"github.com/eser/relayq/pkg/ajan/httpfx"
	"github.com/eser/relayq/pkg/ajan/httpfx/modules/healthcheck"
	"github.com/eser/relayq/pkg/ajan/httpfx/modules/openapi"
	"github.com/eser/relayq/pkg/ajan/httpfx/modules/profiling"
	"github.com/eser/relayq/pkg/ajan/processfx"
	"github.com/eser/relayq/pkg/broker/appcontext"
)

func main() {
	baseCtx := context.Background()

	appCtx := appcontext.New()

	err := appCtx.Init(baseCtx)
	if err != nil {
		panic(err)
	}

	process := processfx.New(baseCtx, appCtx.Logger)

	process.StartGoroutine("event-bus", func(ctx context.Context) error {
		if err := appCtx.StartEventBus(ctx); err != nil {
			appCtx.Logger.ErrorContext(
				ctx,
				"[Main] event bus failed to start",
				slog.String("module", "main"),
				slog.Any("error", err),
			)
		}

		<-ctx.Done()

		return nil
	})

	process.StartGoroutine("reaper", func(ctx context.Context) error {
		return appCtx.Engine.RunReaper(ctx)
	})

	process.StartGoroutine("http-ops-server", func(ctx context.Context) error {
		router := httpfx.NewRouter("/")

		healthcheck.RegisterHTTPRoutes(router, &appCtx.Config.HTTP)
		openapi.RegisterHTTPRoutes(router, &appCtx.Config.HTTP)
		profiling.RegisterHTTPRoutes(router, &appCtx.Config.HTTP)

		service := httpfx.NewHTTPService(&appCtx.Config.HTTP, router, appCtx.Logger)

		cleanup, err := service.Start(ctx)
		if err != nil {
			appCtx.Logger.ErrorContext(
				ctx,
				"[Main] HTTP ops server run failed",
				slog.String("module", "main"),
				slog.Any("error", err),
			)

			return nil
		}

		defer cleanup()

		<-ctx.Done()

		return nil
	})

	process.Wait()
	process.Shutdown()

	appCtx.Engine.Close()

	if err := appCtx.Close(context.Background()); err != nil {
		appCtx.Logger.ErrorContext(baseCtx, "[Main] shutdown cleanup failed", slog.Any("error", err))
	}
}
