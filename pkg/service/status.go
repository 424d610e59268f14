package service

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v3"

	"github.com/theapemachine/mem0-go/pkg/dispatch"
	"github.com/theapemachine/mem0-go/pkg/loop"
)

/*
StatusServer is a small HTTP sidecar reporting process health, loop state,
and operation counters. It is optional and only started when a status address
is configured; the MCP transport itself stays on stdio.
*/
type StatusServer struct {
	app        *fiber.App
	loop       *loop.Manager
	dispatcher *dispatch.Dispatcher
	logger     *log.Logger
}

// NewStatusServer wires the status routes over the loop and dispatcher.
func NewStatusServer(mgr *loop.Manager, d *dispatch.Dispatcher) *StatusServer {
	srv := &StatusServer{
		app:        fiber.New(fiber.Config{AppName: serverName}),
		loop:       mgr,
		dispatcher: d,
		logger:     log.Default().WithPrefix("status"),
	}

	srv.app.Get("/health", func(ctx fiber.Ctx) error {
		healthy := mgr.State() == loop.StateRunning || mgr.State() == loop.StateUnstarted

		code := fiber.StatusOK
		if !healthy {
			code = fiber.StatusServiceUnavailable
		}

		return ctx.Status(code).JSON(fiber.Map{
			"status": map[bool]string{true: "ok", false: "unavailable"}[healthy],
			"loop":   mgr.State().String(),
		})
	})

	srv.app.Get("/stats", func(ctx fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"loop":       mgr.Stats(),
			"operations": d.Metrics().Snapshot(),
			"time":       time.Now().UTC().Format(time.RFC3339),
		})
	})

	return srv
}

// Listen serves the status endpoint until Shutdown is called. Meant to run
// on its own goroutine.
func (s *StatusServer) Listen(addr string) error {
	s.logger.Info("status endpoint listening", "addr", addr)

	return s.app.Listen(addr, fiber.ListenConfig{
		DisableStartupMessage: true,
	})
}

// Shutdown stops the HTTP listener, bounded by ctx.
func (s *StatusServer) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
