package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"brick/pkg/platform/httputil"
	"brick/pkg/platform/middleware/requestmeta"
)

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(ctx context.Context) error

// OpsHandler serves /healthz and /metrics.
type OpsHandler struct {
	gatherer prometheus.Gatherer
	checks   map[string]HealthCheck
	timeout  time.Duration
	logger   *slog.Logger
}

func NewOpsHandler(gatherer prometheus.Gatherer, checks map[string]HealthCheck, logger *slog.Logger) *OpsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpsHandler{gatherer: gatherer, checks: checks, timeout: 2 * time.Second, logger: logger}
}

// Register mounts the ops endpoints on r.
func (h *OpsHandler) Register(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
}

// NewOpsRouter returns a router with the request metadata middleware and the
// ops endpoints mounted.
func NewOpsRouter(h *OpsHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(requestmeta.Middleware)
	h.Register(r)
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *OpsHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(names))}
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.logger.WarnContext(ctx, "health check failed", "check", name, "error", err)
			resp.Status = "degraded"
			resp.Checks[name] = err.Error()
			continue
		}
		resp.Checks[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, resp)
}
