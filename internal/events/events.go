// Package events publishes domain events for downstream consumers
// (mailer, reporting).
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/antonminaichev/zion-orders/internal/logger"
)

const (
	TypePedidoImportado = "pedido.importado"
	TypeItemEntregue    = "item.entregue"
	TypeFulfillment     = "fulfillment.status"
)

type Event struct {
	Type string      `json:"type"`
	Key  string      `json:"key"`
	At   time.Time   `json:"at"`
	Data interface{} `json:"data"`
}

func New(typ, key string, data interface{}) Event {
	return Event{Type: typ, Key: key, At: time.Now().UTC(), Data: data}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type KafkaPublisher struct {
	w *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.w.WriteMessages(ctx, kafka.Message{Key: []byte(e.Key), Value: b, Time: e.At}); err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

// Nop drops events after logging them at debug level.
type Nop struct{}

func (Nop) Publish(ctx context.Context, e Event) error {
	logger.Log.DebugContext(ctx, "event dropped", "type", e.Type, "key", e.Key)
	return nil
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// PublishLogged publishes e and logs a failure instead of returning it.
func PublishLogged(ctx context.Context, p Publisher, e Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		logger.Log.WarnContext(ctx, "publish event failed", "type", e.Type, "key", e.Key, "error", err)
	}
}
