package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	liveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cart_live_sessions",
		Help: "Cart sessions currently held in memory.",
	})

	checkouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_checkouts_total",
		Help: "Checkout attempts by result.",
	}, []string{"result"})
)
