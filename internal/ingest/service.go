// Package ingest turns storefront webhooks into local orders.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/antonminaichev/zion-orders/internal/events"
	"github.com/antonminaichev/zion-orders/internal/fulfillment"
	"github.com/antonminaichev/zion-orders/internal/logger"
	"github.com/antonminaichev/zion-orders/internal/metrics"
	"github.com/antonminaichev/zion-orders/internal/types/pedido"
)

var (
	ErrInvalidJSON  = errors.New("JSON inválido")
	ErrMissingOrder = errors.New("Pedido ausente no payload")
)

type PedidoCreator interface {
	CreatePedidoComItens(ctx context.Context, in pedido.PedidoCreate, itens []pedido.ItemCreate) (*pedido.Pedido, error)
}

type Dispatcher interface {
	Configured() bool
	DispatchPedido(ctx context.Context, p *pedido.Pedido, opts fulfillment.Options) (*fulfillment.Result, error)
}

type Result struct {
	OK            bool                `json:"ok"`
	Event         string              `json:"event"`
	Ignored       bool                `json:"ignored,omitempty"`
	PedidoID      int64               `json:"pedido_id,omitempty"`
	Dispatch      *fulfillment.Result `json:"dispatch,omitempty"`
	DispatchError string              `json:"dispatch_error,omitempty"`
}

type Service struct {
	pedidos    PedidoCreator
	translator *Translator
	dispatcher Dispatcher
	publisher  events.Publisher
	channel    string
}

// NewService wires ingestion. dispatcher and publisher may be nil.
func NewService(p PedidoCreator, t *Translator, d Dispatcher, pub events.Publisher, channel string) *Service {
	if channel == "" {
		channel = fulfillment.DefaultChannel
	}
	return &Service{pedidos: p, translator: t, dispatcher: d, publisher: pub, channel: channel}
}

// Ingest parses a verified webhook body. Paid orders are handed to the
// dispatcher with a key derived from the storefront code, so redeliveries
// of the same webhook dispatch once.
func (s *Service) Ingest(ctx context.Context, raw []byte) (*Result, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, ErrInvalidJSON
	}
	orderRaw := env.orderPayload()
	if orderRaw == nil {
		return nil, ErrMissingOrder
	}

	res := &Result{OK: true, Event: env.Event}
	if !Creates(env.Event) {
		res.Ignored = true
		metrics.WebhookEvents.WithLabelValues(env.Event, "ignored").Inc()
		logger.Log.InfoContext(ctx, "webhook event ignored", "event", env.Event)
		return res, nil
	}

	var order YampiOrder
	if err := json.Unmarshal(orderRaw, &order); err != nil {
		return nil, ErrInvalidJSON
	}

	in, itens := s.translator.Translate(env.Event, order)
	p, err := s.pedidos.CreatePedidoComItens(ctx, in, itens)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(env.Event, "error").Inc()
		return nil, err
	}
	res.PedidoID = p.ID
	metrics.WebhookEvents.WithLabelValues(env.Event, "created").Inc()
	logger.Log.InfoContext(ctx, "order imported", "event", env.Event, "codigo", p.GroupKey(), "pedido_id", p.ID)

	events.PublishLogged(ctx, s.publisher, events.New(events.TypePedidoImportado, p.GroupKey(), p))

	if p.Status == pedido.StatusPaid && s.dispatcher != nil && s.dispatcher.Configured() {
		dr, err := s.dispatcher.DispatchPedido(ctx, p, fulfillment.Options{IdempotencyKey: s.dispatchKey(p)})
		if err != nil {
			logger.Log.ErrorContext(ctx, "auto dispatch failed", "pedido_id", p.ID, "error", err)
			res.DispatchError = err.Error()
		} else {
			res.Dispatch = dr
		}
	}
	return res, nil
}

// dispatchKey ties redelivered webhooks of one storefront order to a single
// dispatch. Orders without a code fall back to their local id.
func (s *Service) dispatchKey(p *pedido.Pedido) string {
	if p.Codigo == nil || *p.Codigo == "" {
		return s.channel + ":pedido-" + strconv.FormatInt(p.ID, 10)
	}
	return s.channel + ":" + *p.Codigo
}
