package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeSuccess         = "success"
	OutcomeNotFound        = "not_found"
	OutcomeExhausted       = "exhausted"
	OutcomeAlreadyRedeemed = "already_redeemed"
	OutcomeError           = "error"
)

var (
	TicketsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qrticket_tickets_created_total",
		Help: "Total tickets created together with their code",
	})

	TicketsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qrticket_tickets_deleted_total",
		Help: "Total tickets deleted",
	})

	CodeConsumptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qrticket_code_consumptions_total",
		Help: "Code consume attempts by outcome",
	}, []string{"outcome"})

	TicketRedemptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qrticket_ticket_redemptions_total",
		Help: "Whole-ticket redeem attempts by outcome",
	}, []string{"outcome"})

	StoreOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "qrticket_store_operation_duration_seconds",
		Help:    "Time spent in ticket store operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
)

func IncTicketsCreated() {
	TicketsCreated.Inc()
}

func IncTicketsDeleted() {
	TicketsDeleted.Inc()
}

func IncCodeConsumption(outcome string) {
	CodeConsumptions.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func IncTicketRedemption(outcome string) {
	TicketRedemptions.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func ObserveStoreOperation(operation string, duration time.Duration) {
	StoreOperationDuration.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	label := strings.TrimSpace(value)
	if label == "" {
		return "unknown"
	}
	return label
}
