package service

import "github.com/prometheus/client_golang/prometheus"

var (
	settleTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recharge_settle_total",
			Help: "Settlement attempts by outcome",
		},
		[]string{"outcome"},
	)

	notifyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recharge_notify_total",
			Help: "Payment notifications by outcome",
		},
		[]string{"outcome"},
	)

	transitionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recharge_order_transition_total",
			Help: "Order status transitions",
		},
		[]string{"from", "to"},
	)

	reconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recharge_reconcile_orders_total",
			Help: "Orders visited by the reconcile sweep by resulting status",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(settleTotal, notifyTotal, transitionTotal, reconcileTotal)
}
