package metrics

import "github.com/prometheus/client_golang/prometheus"

const businessSubsystem = "marketplace"

var paymentCallbacksMetric = &Metric{
	ID:          "paymentCallbacks",
	Name:        "payment_callbacks_total",
	Description: "payment gateway callbacks by provider and handling branch",
	Type:        "counter_vec",
	Args:        []string{"provider", "branch"},
}

var payoutCallbacksMetric = &Metric{
	ID:          "payoutCallbacks",
	Name:        "payout_callbacks_total",
	Description: "payout gateway callbacks by handling branch",
	Type:        "counter_vec",
	Args:        []string{"branch"},
}

var ledgerMutationsMetric = &Metric{
	ID:          "ledgerMutations",
	Name:        "ledger_mutations_total",
	Description: "vendor ledger mutations by operation",
	Type:        "counter_vec",
	Args:        []string{"op"},
}

var stuckOperationsMetric = &Metric{
	ID:          "stuckOperations",
	Name:        "stuck_operations_total",
	Description: "payments and payouts flagged for manual reconciliation",
	Type:        "counter_vec",
	Args:        []string{"kind"},
}

var ledgerDriftMetric = &Metric{
	ID:          "ledgerDrift",
	Name:        "ledger_drift_total",
	Description: "vendor ledgers whose cached counters disagree with history",
	Type:        "counter",
}

var (
	PaymentCallbacks = NewMetric(paymentCallbacksMetric, businessSubsystem).(*prometheus.CounterVec)
	PayoutCallbacks  = NewMetric(payoutCallbacksMetric, businessSubsystem).(*prometheus.CounterVec)
	LedgerMutations  = NewMetric(ledgerMutationsMetric, businessSubsystem).(*prometheus.CounterVec)
	StuckOperations  = NewMetric(stuckOperationsMetric, businessSubsystem).(*prometheus.CounterVec)
	LedgerDrift      = NewMetric(ledgerDriftMetric, businessSubsystem).(prometheus.Counter)
)

func init() {
	prometheus.MustRegister(PaymentCallbacks, PayoutCallbacks, LedgerMutations, StuckOperations, LedgerDrift)
}
