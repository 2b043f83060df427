package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SignatureRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zion",
		Name:      "webhook_signature_rejected_total",
		Help:      "Inbound webhooks rejected by signature verification.",
	}, []string{"peer"})

	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zion",
		Name:      "webhook_events_total",
		Help:      "Storefront webhook events by outcome.",
	}, []string{"event", "outcome"})

	Dispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zion",
		Name:      "fulfillment_dispatch_total",
		Help:      "Fulfillment dispatch attempts by result (sent, duplicate, rejected, error).",
	}, []string{"result"})

	MarkDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zion",
		Name:      "storefront_mark_delivered_total",
		Help:      "Best-effort mark-delivered calls by result.",
	}, []string{"result"})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
