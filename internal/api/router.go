package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/loomlabs/loom/internal/api/handlers"
	mw "github.com/loomlabs/loom/internal/api/middleware"
	"github.com/loomlabs/loom/internal/config"
	"github.com/loomlabs/loom/internal/domain"
	"github.com/loomlabs/loom/internal/embedding"
	"github.com/loomlabs/loom/internal/index"
	"github.com/loomlabs/loom/internal/service"
	"github.com/loomlabs/loom/internal/store"
)

// App holds the router and background services for lifecycle management.
type App struct {
	Router       *chi.Mux
	Calibrator   *service.CalibratorService
	Capabilities *service.CapabilityService
	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(db *pgxpool.Pool, logger *zap.Logger) (*App, error) {
	// Stores
	capabilityStore := store.NewCapabilityStore(db)
	needStore := store.NewNeedStore(db)
	matchStore := store.NewMatchStore(db)
	outcomeStore := store.NewOutcomeStore(db)

	// External clients via provider factory
	embeddingProvider := config.EmbeddingProvider()
	embeddingClient, err := embedding.NewClient(embeddingProvider, config.EmbeddingAPIKey(), config.EmbeddingDim())
	if err != nil {
		return nil, fmt.Errorf("embedding client: %w", err)
	}
	logger.Info("embedding client initialized", zap.String("provider", embeddingProvider))

	// Candidate index
	idx := index.New(config.EmbeddingDim(), logger)

	// Services
	calibratorSvc := service.NewCalibratorService(outcomeStore, logger)
	calibratorSvc.SetInterval(config.CalibratorInterval())

	scorer, err := service.NewScorer(config.ScoreWeights(), calibratorSvc.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("scorer: %w", err)
	}

	synergySvc := service.NewSynergyDetector(needStore, capabilityStore, scorer, config.SynergyThreshold(), logger)
	matchSvc := service.NewMatchService(idx, scorer, synergySvc, needStore, matchStore, config.MatchConfig(), logger)
	capabilitySvc := service.NewCapabilityService(capabilityStore, idx, embeddingClient, logger)
	outcomeSvc := service.NewOutcomeService(matchStore, outcomeStore, needStore, capabilityStore, calibratorSvc, logger)

	// Handlers
	capabilityHandler := handlers.NewCapabilityHandler(capabilitySvc, capabilityStore)
	needHandler := handlers.NewNeedHandler(matchSvc, embeddingClient, needStore, matchStore, capabilityStore)
	matchHandler := handlers.NewMatchHandler(outcomeSvc, matchStore)

	r := chi.NewRouter()

	app := &App{
		Router:       r,
		Calibrator:   calibratorSvc,
		Capabilities: capabilitySvc,
		startTime:    time.Now(),
	}

	// Metrics collector for middleware
	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	r.Get("/health", healthHandler(db))
	r.Get("/metrics", app.metricsHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/capabilities", func(r chi.Router) {
			r.Post("/", capabilityHandler.Upsert)
			r.Get("/", capabilityHandler.ListByOwner)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", capabilityHandler.GetByID)
				r.Delete("/", capabilityHandler.Delete)
			})
		})

		r.Route("/needs", func(r chi.Router) {
			r.Post("/", needHandler.Submit)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", needHandler.GetByID)
				r.Get("/matches", needHandler.ListMatches)
			})
		})

		r.Route("/matches", func(r chi.Router) {
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", matchHandler.GetByID)
				r.Post("/status", matchHandler.Transition)
				r.Post("/outcome", matchHandler.ReportOutcome)
			})
		})
	})

	return app, nil
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores and clients satisfy interfaces at compile time.
var (
	_ domain.CapabilityStore = (*store.CapabilityStore)(nil)
	_ domain.NeedStore       = (*store.NeedStore)(nil)
	_ domain.MatchStore      = (*store.MatchStore)(nil)
	_ domain.OutcomeStore    = (*store.OutcomeStore)(nil)
	_ domain.EmbeddingClient = (*embedding.OpenAIClient)(nil)
	_ domain.EmbeddingClient = (*embedding.MockClient)(nil)
)
