package fulfillment

import (
	"context"
	"sync"
	"time"

	"github.com/antonminaichev/zion-orders/internal/logger"
	"github.com/antonminaichev/zion-orders/internal/metrics"
)

const (
	DefaultDeliveryWorkers = 2
	markDeliveredTimeout   = 15 * time.Second
)

// DeliveryQueue buffers storefront order ids waiting for mark-delivered.
type DeliveryQueue struct {
	jobs chan string
}

func NewDeliveryQueue(size int) *DeliveryQueue {
	if size <= 0 {
		size = 64
	}
	return &DeliveryQueue{jobs: make(chan string, size)}
}

// Enqueue never blocks. It reports false when the queue is full.
func (q *DeliveryQueue) Enqueue(orderID string) bool {
	select {
	case q.jobs <- orderID:
		return true
	default:
		metrics.MarkDelivered.WithLabelValues("dropped").Inc()
		logger.Log.Warn("[Delivery] очередь переполнена, пропускаю заказ", "order_id", orderID)
		return false
	}
}

func workerLoop(ctx context.Context, id int, client StorefrontClient, jobs <-chan string) {
	logger.Log.Info("[Worker] запущен", "worker", id)
	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("[Worker] завершение по сигналу контекста", "worker", id)
			return

		case orderID, ok := <-jobs:
			if !ok {
				logger.Log.Info("[Worker] jobs-канал закрыт, выхожу", "worker", id)
				return
			}

			callCtx, cancel := context.WithTimeout(ctx, markDeliveredTimeout)
			err := client.MarkDelivered(callCtx, orderID)
			cancel()
			if err != nil {
				metrics.MarkDelivered.WithLabelValues("error").Inc()
				logger.Log.Error("[Worker] ошибка mark delivered", "worker", id, "order_id", orderID, "error", err)
				continue
			}
			metrics.MarkDelivered.WithLabelValues("ok").Inc()
			logger.Log.Info("[Worker] заказ отмечен как доставленный", "worker", id, "order_id", orderID)
		}
	}
}

// DeliveryLoop runs workerCount workers over q and returns once ctx is done
// and every worker has exited.
func DeliveryLoop(ctx context.Context, client StorefrontClient, q *DeliveryQueue, workerCount int) {
	if workerCount <= 0 {
		workerCount = DefaultDeliveryWorkers
	}
	var wg sync.WaitGroup
	for i := 1; i <= workerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			workerLoop(ctx, id, client, q.jobs)
		}(i)
	}
	logger.Log.Info("[Delivery] стартовал DeliveryLoop", "workers", workerCount)
	wg.Wait()
	logger.Log.Info("[Delivery] остановлен")
}
