package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/outreachhq/sendpipe/internal/api/handler"
	apimw "github.com/outreachhq/sendpipe/internal/api/middleware"
	"github.com/outreachhq/sendpipe/internal/repository"
	"github.com/outreachhq/sendpipe/internal/service"
	"github.com/outreachhq/sendpipe/internal/worker"
)

// Deps carries the constructed collaborators the router needs.
type Deps struct {
	Worker     *worker.Worker
	Populator  *service.Populator
	Recovery   *service.Recovery
	Queue      repository.SendQueueRepository
	PollSecret string
	Registry   prometheus.Gatherer
	Logger     *zap.Logger
}

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)          // recover panics, return 500
	r.Use(chimw.RealIP)             // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1<<20)) // 1 MB max request body
	r.Use(apimw.CorrelationID)      // X-Correlation-ID inject / echo
	r.Use(apimw.RequestLogger(d.Logger))

	// --- handler instances ---
	th := handler.NewTaskHandler(d.Worker, d.Logger)
	ph := handler.NewPollHandler(d.Populator, d.PollSecret, d.Logger)
	rh := handler.NewRecoveryHandler(d.Recovery, d.Logger)
	sh := handler.NewPipelineHandler(d.Queue)
	hh := handler.NewHealthHandler()

	// --- routes ---
	r.Get("/health", hh.Health)

	// Raw Prometheus scrape endpoint (for Prometheus server / Grafana)
	r.Handle("/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))

	// Push-transport delivery endpoint: one task per POST, ack-always.
	r.Post("/tasks", th.Deliver)

	// External scheduler ingestion, shared-secret guarded.
	r.Get("/poll-pending", ph.PollPending)

	r.Route("/campaigns/{id}", func(r chi.Router) {
		// Immediate activation, same shared-secret guard as /poll-pending.
		r.Post("/populate", ph.PopulateCampaign)
		r.Get("/failed-prospects-csv", rh.ExportCSV)
		// GET renders an HTML confirmation for operator-facing links in
		// email or chat; POST is the JSON API.
		r.Get("/reset-failed", rh.ResetPage)
		r.Post("/reset-failed", rh.Reset)
	})

	r.Get("/api/v1/pipeline", sh.Snapshot)

	return r
}
