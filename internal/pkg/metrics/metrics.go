/*
Package metrics defines the Prometheus collectors exported by the server and
the HTTP handler that serves them.
*/
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "roomchat"

var (
	// Connections is the number of open websocket connections.
	Connections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connections",
		Help:      "Open websocket connections.",
	})

	// Members is the number of sessions currently inside a room.
	Members = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "room_members",
		Help:      "Sessions currently joined to a room.",
	})

	// PendingDeletions is the number of empty rooms waiting for their grace period.
	PendingDeletions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "rooms_pending_deletion",
		Help:      "Empty rooms with a running deletion timer.",
	})

	// MessagesAccepted counts messages persisted and broadcast.
	MessagesAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_accepted_total",
		Help:      "Messages accepted for broadcast.",
	})

	// DeliveryFailures counts per-subscriber delivery failures.
	DeliveryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "delivery_failures_total",
		Help:      "Events that could not be handed to a subscriber.",
	})

	// RoomsDeleted counts room teardowns by cause ("expired" or "explicit").
	RoomsDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rooms_deleted_total",
		Help:      "Rooms torn down.",
	}, []string{"cause"})

	// StoreDeleteFailures counts best-effort deletions the store rejected.
	StoreDeleteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_delete_failures_total",
		Help:      "Room teardowns whose store deletion failed and was dropped.",
	})
)

// Handler exposes the default registry at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
