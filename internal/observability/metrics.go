// Package observability registers prometheus instruments for the godlife core.
package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	plansGenerated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "godlife",
		Subsystem: "plan",
		Name:      "plans_generated_total",
		Help:      "Number of exercise plans generated.",
	})

	setResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "godlife",
		Subsystem: "plan",
		Name:      "set_results_total",
		Help:      "Number of set results applied, labeled by outcome.",
	}, []string{"result"})

	notificationsScheduled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "godlife",
		Subsystem: "notification",
		Name:      "scheduled_total",
		Help:      "Number of notifications scheduled, labeled by kind.",
	}, []string{"kind"})

	webhookEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "godlife",
		Subsystem: "webhook",
		Name:      "events_total",
		Help:      "Number of webhook ingest results, labeled by outcome.",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(plansGenerated, setResults, notificationsScheduled, webhookEvents)
}

// RecordPlanGenerated counts a successfully generated plan.
func RecordPlanGenerated() {
	plansGenerated.Inc()
}

// RecordSetResult counts an applied set result (DONE or SKIPPED).
func RecordSetResult(result string) {
	setResults.WithLabelValues(result).Inc()
}

// RecordNotificationScheduled counts a newly scheduled notification.
func RecordNotificationScheduled(kind string) {
	notificationsScheduled.WithLabelValues(kind).Inc()
}

// RecordWebhookEvent counts an ingest outcome (accepted or duplicate).
func RecordWebhookEvent(outcome string) {
	webhookEvents.WithLabelValues(outcome).Inc()
}
