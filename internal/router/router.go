package router

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/antonminaichev/zion-orders/internal/entrega"
	"github.com/antonminaichev/zion-orders/internal/fulfillment"
	"github.com/antonminaichev/zion-orders/internal/httpx"
	"github.com/antonminaichev/zion-orders/internal/ingest"
	"github.com/antonminaichev/zion-orders/internal/logger"
	"github.com/antonminaichev/zion-orders/internal/metrics"
	"github.com/antonminaichev/zion-orders/internal/middleware"
	"github.com/antonminaichev/zion-orders/internal/operator"
	"github.com/antonminaichev/zion-orders/internal/pedido"
	"github.com/antonminaichev/zion-orders/internal/signature"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Pedidos     *pedido.Handler
	Ingest      *ingest.Handler
	Fulfillment *fulfillment.Handler
	Entregas    *entrega.Handler
	Operators   *operator.Handler

	StorefrontVerifier *signature.Verifier
	EngineVerifier     *signature.Verifier

	JWTSecret     []byte
	OperatorLogin string
	CORSOrigins   []string
	DB            Pinger
}

func NewRouter(d Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(logger.WithLogging)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", health(d.DB))
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.VerifySignature(d.StorefrontVerifier))
		r.Post("/yampi/webhook", d.Ingest.Webhook)
	})
	r.Group(func(r chi.Router) {
		r.Use(middleware.VerifySignature(d.EngineVerifier))
		r.Post("/fulfillment/status", d.Fulfillment.Status)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.GzipHandler)
		r.Post("/api/auth/login", d.Operators.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.JWTMiddleware(d.JWTSecret, d.OperatorLogin))
			d.Pedidos.Register(r)
			r.Post("/entregas", d.Entregas.Entregar)
			r.Post("/fulfillment/create", d.Fulfillment.Create)
		})
	})

	return r
}

func health(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.Ping(r.Context()); err != nil {
				logger.Log.ErrorContext(r.Context(), "health check failed", "error", err)
				httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
