package handlers

import (
	"context"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/account-service/internal/api/dto"
	"github.com/spec-kit/account-service/internal/observability"
)

// Pinger is a dependency that can report its reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	serviceName string
	version     string
	metrics     *observability.Metrics
	checks      map[string]Pinger
	timeout     time.Duration
}

// NewHealthHandler returns a new handler instance. checks holds only the
// dependencies this process was configured with.
func NewHealthHandler(serviceName, version string, metrics *observability.Metrics, checks map[string]Pinger) *HealthHandler {
	if checks == nil {
		checks = map[string]Pinger{}
	}
	return &HealthHandler{
		serviceName: serviceName,
		version:     version,
		metrics:     metrics,
		checks:      checks,
		timeout:     2 * time.Second,
	}
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(dto.OK(fiber.Map{
		"status":        "alive",
		"service":       h.serviceName,
		"version":       h.version,
		"uptimeSeconds": int64(h.metrics.Uptime() / time.Second),
	}))
}

// Ready reports service readiness by checking dependencies.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	depStatus := fiber.Map{}
	ready := true
	for _, name := range names {
		if err := h.checks[name].Ping(ctx); err != nil {
			depStatus[name] = err.Error()
			ready = false
			continue
		}
		depStatus[name] = "ok"
	}

	if ready {
		return c.JSON(dto.OK(fiber.Map{
			"status":       "ready",
			"dependencies": depStatus,
		}))
	}

	return c.Status(fiber.StatusServiceUnavailable).JSON(dto.Envelope{
		Code:    fiber.StatusServiceUnavailable,
		Message: "one or more dependencies unavailable",
		Data:    fiber.Map{"status": "not_ready", "dependencies": depStatus},
	})
}

// Metrics returns the in-memory counters.
func (h *HealthHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(dto.OK(h.metrics.Snapshot()))
}
