package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/antonminaichev/zion-orders/internal/entrega"
	"github.com/antonminaichev/zion-orders/internal/events"
	"github.com/antonminaichev/zion-orders/internal/fulfillment"
	"github.com/antonminaichev/zion-orders/internal/idempotency"
	"github.com/antonminaichev/zion-orders/internal/ingest"
	"github.com/antonminaichev/zion-orders/internal/logger"
	"github.com/antonminaichev/zion-orders/internal/operator"
	"github.com/antonminaichev/zion-orders/internal/pedido"
	"github.com/antonminaichev/zion-orders/internal/router"
	"github.com/antonminaichev/zion-orders/internal/signature"
	"github.com/antonminaichev/zion-orders/internal/storage/sqlstore"
	typesOperator "github.com/antonminaichev/zion-orders/internal/types/operator"
	typesPedido "github.com/antonminaichev/zion-orders/internal/types/pedido"
)

const serviceName = "zion-orders"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := NewConfig()
	if err != nil {
		return err
	}
	if cfg.HashPassword != "" {
		hash, err := operator.HashPassword(cfg.HashPassword)
		if err != nil {
			return err
		}
		fmt.Println(hash)
		return nil
	}
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := sqlstore.New(cfg.DatabaseDriver, cfg.DatabaseConnection)
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	defer cancelPing()
	if err := store.Ping(pingCtx); err != nil {
		return fmt.Errorf("unable to ping database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Log.Warn("failed to close storage", "error", err)
		}
	}()

	idemStore, closeIdem, err := newIdempotencyStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeIdem()

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		publisher = kp
	}

	storefrontVerifier := &signature.Verifier{
		Name:          "yampi",
		Secret:        []byte(cfg.YampiSecret),
		Header:        cfg.YampiSignatureHeader,
		Enc:           signature.Base64,
		AllowUnsigned: cfg.YampiAllowUnsigned,
	}
	engineVerifier := &signature.Verifier{
		Name:          "n8n",
		Secret:        []byte(cfg.N8NSecret),
		Header:        "X-Signature",
		Enc:           signature.Hex,
		AllowUnsigned: cfg.N8NAllowUnsigned,
	}

	pedidoSvc := pedido.NewService(store)

	dispatcher := fulfillment.NewDispatcher(
		pedidoSvc,
		fulfillment.NewHTTPEngineClient(cfg.N8NWebhookURL, cfg.N8NTimeout),
		idempotency.NewGuard(idemStore),
		engineVerifier,
		fulfillment.DispatcherConfig{URL: cfg.N8NWebhookURL, Channel: cfg.SaleChannel},
	)
	deliveries := fulfillment.NewDeliveryQueue(cfg.DeliveryWorkers * 32)
	storefront := &fulfillment.HTTPStorefrontClient{
		Client:     &http.Client{Timeout: 15 * time.Second},
		BaseURL:    cfg.YampiAPIURL,
		UserToken:  cfg.YampiUserToken,
		UserSecret: cfg.YampiUserSecret,
	}

	translator := ingest.NewTranslator(ingest.DefaultPlatformTable(typesPedido.Plataforma(cfg.DefaultPlatform)))
	ingestSvc := ingest.NewService(pedidoSvc, translator, dispatcher, publisher, cfg.SaleChannel)

	operatorSvc := operator.NewService(
		operator.NewStaticRepository(typesOperator.Operator{Login: cfg.OperatorLogin, PasswordHash: cfg.OperatorPasswordHash}),
		[]byte(cfg.JWTSecret),
		cfg.JWTTTL,
	)

	r := router.NewRouter(router.Deps{
		Pedidos:            pedido.NewHandler(pedidoSvc),
		Ingest:             ingest.NewHandler(ingestSvc),
		Fulfillment:        fulfillment.NewHandler(dispatcher, pedidoSvc, deliveries, publisher),
		Entregas:           entrega.NewHandler(pedidoSvc, publisher),
		Operators:          operator.NewHandler(operatorSvc),
		StorefrontVerifier: storefrontVerifier,
		EngineVerifier:     engineVerifier,
		JWTSecret:          []byte(cfg.JWTSecret),
		OperatorLogin:      cfg.OperatorLogin,
		CORSOrigins:        cfg.CORSOrigins,
		DB:                 store,
	})

	srv := &http.Server{
		Addr:         cfg.Address,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.N8NTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	if !storefrontVerifier.Configured() {
		logger.Log.Warn("YAMPI_WEBHOOK_SECRET not set", "allow_unsigned", cfg.YampiAllowUnsigned)
	}
	if !dispatcher.Configured() {
		logger.Log.Warn("fulfillment dispatch disabled: N8N_WEBHOOK_URL / N8N_HMAC_SECRET missing")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fulfillment.DeliveryLoop(gctx, storefront, deliveries, cfg.DeliveryWorkers)
		return nil
	})
	g.Go(func() error {
		logger.Log.Info("starting server", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ListenAndServe(): %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Log.Info("shutting down server")
		ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Log.Info("server stopped gracefully")
	return nil
}

func newIdempotencyStore(ctx context.Context, cfg *Config) (idempotency.Store, func(), error) {
	if cfg.IdempotencyBackend == "redis" {
		rs := idempotency.NewRedisStore(cfg.RedisAddr, serviceName, cfg.IdempotencyTTL, cfg.N8NTimeout*2)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rs.Ping(pingCtx); err != nil {
			rs.Close()
			return nil, nil, fmt.Errorf("unable to ping redis: %w", err)
		}
		return rs, func() { rs.Close() }, nil
	}
	ms := idempotency.NewMemoryStore(cfg.IdempotencyTTL, cfg.IdempotencyMaxKeys)
	return ms, ms.Stop, nil
}
