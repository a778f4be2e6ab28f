package routes

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"loyaltywallet/gateway/middleware"
)

type Config struct {
	Cards            CardService
	// ErrorStatusCodes maps failures to 4xx/5xx instead of 200 + error field.
	ErrorStatusCodes bool
	Authenticator    *middleware.Authenticator
	Observability    *middleware.Observability
	// ExposeMetrics mounts the Prometheus handler at /metrics.
	ExposeMetrics    bool
	CORS             middleware.CORSConfig
	Logger           *slog.Logger
}

func New(cfg Config) (http.Handler, error) {
	if cfg.Cards == nil {
		return nil, errors.New("card service required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cards := &cardRoutes{
		svc: cfg.Cards,
		writer: &responder{
			statusCodes: cfg.ErrorStatusCodes,
			obs:         cfg.Observability,
			logger:      logger.With("component", "routes"),
		},
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(cfg.CORS))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	obs := cfg.Observability
	r.Group(func(gr chi.Router) {
		if cfg.Authenticator != nil {
			gr.Use(cfg.Authenticator.Middleware)
		}
		mount := func(path string, h http.HandlerFunc) {
			if obs != nil {
				gr.With(obs.Middleware(path[1:])).Get(path, h)
				return
			}
			gr.Get(path, h)
		}
		mount("/create-card", cards.createCard)
		mount("/get-class-info", cards.classInfo)
		mount("/update-bonus", cards.updateBonus)
		mount("/get-wallet-token", cards.walletToken)
		mount("/delete-card", cards.deleteCard)
	})

	if obs != nil && cfg.ExposeMetrics {
		r.Handle("/metrics", obs.MetricsHandler())
	}

	return r, nil
}
