package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// WorkflowActionsTotal - действия координации по результату
	// outcome: ok / precondition_failed / invalid_transition / conflict / not_found / validation / error
	WorkflowActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_workflow_actions_total",
			Help: "Total number of coordination workflow actions by outcome.",
		},
		[]string{"action", "outcome"},
	)

	// WorkflowRetriesTotal - повторные попытки после конфликта или нарушения предусловия
	WorkflowRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_workflow_retries_total",
			Help: "Total number of workflow action re-read-and-retry attempts.",
		},
		[]string{"action"},
	)

	WorkflowActionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_workflow_action_duration_seconds",
			Help:    "Duration of coordination workflow actions including retries.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)

	// FeedSubscriptions - активные подписки на коллекции
	FeedSubscriptions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dispatch_feed_subscriptions",
			Help: "Number of active change feed subscriptions per collection.",
		},
		[]string{"collection"},
	)

	FeedSnapshotsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_feed_snapshots_total",
			Help: "Total number of full snapshots delivered to subscribers.",
		},
		[]string{"collection"},
	)

	// WebhookDeliveriesTotal - доставка уведомлений, status: delivered / failed / skipped
	WebhookDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_webhook_deliveries_total",
			Help: "Total number of notification webhook deliveries by status.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		WorkflowActionsTotal,
		WorkflowRetriesTotal,
		WorkflowActionDuration,
		FeedSubscriptions,
		FeedSnapshotsTotal,
		WebhookDeliveriesTotal,
	)
}
