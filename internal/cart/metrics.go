package cart

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes recorded in cart_slot_load_total.
const (
	LoadEmpty   = "empty"
	LoadOK      = "ok"
	LoadPartial = "partial"
	LoadCorrupt = "corrupt"
	LoadError   = "error"
)

var (
	slotLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_slot_load_total",
			Help: "Cart slot loads by outcome.",
		},
		[]string{"result"},
	)

	slotEntriesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_slot_entries_dropped_total",
			Help: "Slot entries discarded while loading a cart, by reason.",
		},
		[]string{"reason"},
	)

	slotWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cart_slot_write_failures_total",
			Help: "Cart slot writes that failed and were ignored.",
		},
	)
)
