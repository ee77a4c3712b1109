// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Auction metrics
	AuctionsListed  prometheus.Counter
	AuctionsSettled prometheus.Counter
	BidsAccepted    prometheus.Counter
	BidsRejected    *prometheus.CounterVec
	BiddersOutbid   prometheus.Counter
	ValueSettled    prometheus.Counter

	// Ledger metrics
	WithdrawalsCompleted prometheus.Counter
	WithdrawalsFailed    prometheus.Counter
	ValueWithdrawn       prometheus.Counter

	// Observation metrics
	EventsPublished *prometheus.CounterVec
	EventsDropped   prometheus.Counter
	EventsArchived  prometheus.Counter

	// Registry metrics
	TokensMinted      prometheus.Counter
	TokensTransferred prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "token_auction_house"
	}

	return &Metrics{
		// Auction metrics
		AuctionsListed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auction",
			Name:      "listed_total",
			Help:      "Total number of listings opened",
		}),
		AuctionsSettled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auction",
			Name:      "settled_total",
			Help:      "Total number of auctions settled",
		}),
		BidsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auction",
			Name:      "bids_accepted_total",
			Help:      "Total number of bids accepted",
		}),
		BidsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auction",
			Name:      "bids_rejected_total",
			Help:      "Total number of bids rejected by reason",
		}, []string{"reason"}),
		BiddersOutbid: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auction",
			Name:      "bidders_outbid_total",
			Help:      "Total number of superseded bids refunded to the ledger",
		}),
		ValueSettled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auction",
			Name:      "value_settled_total",
			Help:      "Cumulative sale proceeds credited to sellers",
		}),

		// Ledger metrics
		WithdrawalsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "withdrawals_completed_total",
			Help:      "Total number of successful withdrawals",
		}),
		WithdrawalsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "withdrawals_failed_total",
			Help:      "Total number of withdrawals refused by the receiving side",
		}),
		ValueWithdrawn: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "value_withdrawn_total",
			Help:      "Cumulative value released through withdrawals",
		}),

		// Observation metrics
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of observations published by type",
		}, []string{"type"}),
		EventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Total number of observations dropped by slow subscribers",
		}),
		EventsArchived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "archived_total",
			Help:      "Total number of observations written to the archive",
		}),

		// Registry metrics
		TokensMinted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "tokens_minted_total",
			Help:      "Total number of tokens minted",
		}),
		TokensTransferred: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "tokens_transferred_total",
			Help:      "Total number of ownership transfers",
		}),
	}
}
