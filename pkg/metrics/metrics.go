package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	DepositVerifyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qynx",
			Name:      "deposit_verify_total",
			Help:      "Total number of deposit verifications.",
		},
		[]string{"network", "result"}, // result: ok/rejected
	)

	DepositRejectTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qynx",
			Name:      "deposit_reject_total",
			Help:      "Total number of rejected deposit confirmations.",
		},
		[]string{"reason"}, // reason: not_found/mismatch/duplicate/amount/...
	)

	CreditIssuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "qynx",
			Name:      "credit_issued_total",
			Help:      "Total number of internal token credits issued.",
		},
	)

	CreditUnitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "qynx",
			Name:      "credit_units_total",
			Help:      "Total internal token units credited.",
		},
	)

	MintFailTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "qynx",
			Name:      "mint_fail_total",
			Help:      "Total number of failed on-chain mint attempts.",
		},
	)

	PriceRefreshFailTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "qynx",
			Name:      "price_refresh_fail_total",
			Help:      "Total number of failed price feed refreshes.",
		},
	)
)

func MustRegister() {
	prometheus.MustRegister(
		DepositVerifyTotal,
		DepositRejectTotal,
		CreditIssuedTotal,
		CreditUnitsTotal,
		MintFailTotal,
		PriceRefreshFailTotal,
	)
}
