package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus counters for the transfer workflow.
type Metrics struct {
	Requested        prometheus.Counter
	Approved         prometheus.Counter
	Rejected         prometheus.Counter
	Cancelled        prometheus.Counter
	Completed        prometheus.Counter
	TransitionRaces  prometheus.Counter
	ActiveConflicts  prometheus.Counter
	UpstreamTimeouts prometheus.Counter
}

// New creates and registers all transfer workflow metrics.
func New() *Metrics {
	return &Metrics{
		Requested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "civreg_transfers_requested_total",
			Help: "Total number of transfer requests created",
		}),
		Approved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "civreg_transfers_approved_total",
			Help: "Total number of transfers approved by divisional officers",
		}),
		Rejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "civreg_transfers_rejected_total",
			Help: "Total number of transfers rejected by divisional officers",
		}),
		Cancelled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "civreg_transfers_cancelled_total",
			Help: "Total number of transfers cancelled by their requester",
		}),
		Completed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "civreg_transfers_completed_total",
			Help: "Total number of transfers completed by the receiving office",
		}),
		TransitionRaces: promauto.NewCounter(prometheus.CounterOpts{
			Name: "civreg_transfer_transition_races_total",
			Help: "Transitions rejected because the stored status no longer matched",
		}),
		ActiveConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "civreg_transfer_active_conflicts_total",
			Help: "Requests rejected because the family already had an active transfer",
		}),
		UpstreamTimeouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "civreg_transfer_upstream_timeouts_total",
			Help: "Directory or store calls that exceeded their deadline",
		}),
	}
}
