// Package fulfillment sends paid orders to the automation engine and
// handles its status callbacks.
package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/antonminaichev/zion-orders/internal/idempotency"
	"github.com/antonminaichev/zion-orders/internal/logger"
	"github.com/antonminaichev/zion-orders/internal/metrics"
	"github.com/antonminaichev/zion-orders/internal/signature"
	"github.com/antonminaichev/zion-orders/internal/types/pedido"
)

var (
	ErrNotConfigured = errors.New("fulfillment not configured")
	ErrUpstream      = errors.New("automation engine unreachable")
)

const DefaultChannel = "yampi"

type Result struct {
	OK             bool        `json:"ok"`
	Status         int         `json:"status"`
	Data           interface{} `json:"data"`
	IdempotencyKey string      `json:"idempotency_key,omitempty"`
	Duplicate      bool        `json:"-"`
}

type Options struct {
	IdempotencyKey string
	// Variant overrides the order-level label.
	Variant string
}

type PedidoReader interface {
	GetPedido(ctx context.Context, id int64) (*pedido.Pedido, error)
}

type Dispatcher struct {
	pedidos PedidoReader
	client  EngineClient
	guard   *idempotency.Guard
	signer  *signature.Verifier
	channel string
	variant VariantFunc
	url     string
}

type DispatcherConfig struct {
	URL     string
	Channel string
	Variant VariantFunc
}

func NewDispatcher(pedidos PedidoReader, client EngineClient, guard *idempotency.Guard, signer *signature.Verifier, cfg DispatcherConfig) *Dispatcher {
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Variant == nil {
		cfg.Variant = FirstItemVariant
	}
	return &Dispatcher{
		pedidos: pedidos,
		client:  client,
		guard:   guard,
		signer:  signer,
		channel: cfg.Channel,
		variant: cfg.Variant,
		url:     cfg.URL,
	}
}

func (d *Dispatcher) Configured() bool {
	return d.url != "" && d.client != nil && d.signer.Configured()
}

func (d *Dispatcher) Dispatch(ctx context.Context, pedidoID int64, opts Options) (*Result, error) {
	if !d.Configured() {
		return nil, ErrNotConfigured
	}
	p, err := d.pedidos.GetPedido(ctx, pedidoID)
	if err != nil {
		return nil, err
	}
	return d.DispatchPedido(ctx, p, opts)
}

// DispatchPedido sends p at most once per idempotency key. A failed attempt
// releases the key so the same key can be retried; the key is returned with
// the result, and with ErrUpstream, either way.
func (d *Dispatcher) DispatchPedido(ctx context.Context, p *pedido.Pedido, opts Options) (*Result, error) {
	if !d.Configured() {
		return nil, ErrNotConfigured
	}
	key := opts.IdempotencyKey
	if key == "" {
		key = idempotency.NewKey()
	}

	ok, err := d.guard.ShouldDispatch(ctx, key)
	if err != nil {
		metrics.Dispatches.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("reserve key: %w", err)
	}
	if !ok {
		metrics.Dispatches.WithLabelValues("duplicate").Inc()
		logger.Log.InfoContext(ctx, "dispatch deduplicated", "pedido_id", p.ID, "idempotency_key", key)
		return &Result{OK: true, Status: 200, Data: map[string]bool{"dedup": true}, IdempotencyKey: key, Duplicate: true}, nil
	}

	req := BuildRequest(p, d.channel, d.variant)
	req.IdempotencyKey = key
	if opts.Variant != "" {
		req.Variant = opts.Variant
	}
	body, err := json.Marshal(req)
	if err != nil {
		d.release(ctx, key)
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	status, data, err := d.client.Send(ctx, body, d.signer.Sign(body), key)
	if err != nil {
		d.release(ctx, key)
		metrics.Dispatches.WithLabelValues("error").Inc()
		logger.Log.ErrorContext(ctx, "dispatch failed", "pedido_id", p.ID, "idempotency_key", key, "error", err)
		return &Result{IdempotencyKey: key}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if status < 200 || status > 299 {
		d.release(ctx, key)
		metrics.Dispatches.WithLabelValues("rejected").Inc()
		logger.Log.WarnContext(ctx, "dispatch rejected", "pedido_id", p.ID, "status", status)
		return &Result{OK: false, Status: status, Data: data, IdempotencyKey: key}, nil
	}

	if err := d.guard.MarkDispatched(context.WithoutCancel(ctx), key); err != nil {
		logger.Log.ErrorContext(ctx, "commit idempotency key", "idempotency_key", key, "error", err)
	}
	metrics.Dispatches.WithLabelValues("sent").Inc()
	logger.Log.InfoContext(ctx, "order dispatched", "pedido_id", p.ID, "order_id", req.OrderID, "idempotency_key", key)
	return &Result{OK: true, Status: status, Data: data, IdempotencyKey: key}, nil
}

func (d *Dispatcher) release(ctx context.Context, key string) {
	if err := d.guard.Release(context.WithoutCancel(ctx), key); err != nil {
		logger.Log.ErrorContext(ctx, "release idempotency key", "idempotency_key", key, "error", err)
	}
}
