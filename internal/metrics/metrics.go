package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var registry = prometheus.NewRegistry()

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

var (
	alertsDispatched = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "medremind_alerts_dispatched_total",
		Help: "Alerts dispatched, by threshold kind.",
	}, []string{"threshold"})

	soundFailures = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "medremind_alert_sound_failures_total",
		Help: "Sound playback failures, by fallback stage.",
	}, []string{"stage"})

	notificationsShown = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Name: "medremind_notifications_shown_total",
		Help: "Desktop notifications delivered.",
	})

	notificationsSuppressed = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "medremind_notifications_suppressed_total",
		Help: "Desktop notifications suppressed, by reason.",
	}, []string{"reason"})

	cacheRefreshes = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "medremind_cache_refreshes_total",
		Help: "Reminder cache refresh attempts, by outcome.",
	}, []string{"outcome"})

	cachedReminders = promauto.With(registry).NewGauge(prometheus.GaugeOpts{
		Name: "medremind_cache_reminders",
		Help: "Reminders currently held in the cache.",
	})

	trackerKeys = promauto.With(registry).NewGauge(prometheus.GaugeOpts{
		Name: "medremind_tracker_keys",
		Help: "Fired idempotency keys held by the tracker.",
	})

	acks = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "medremind_acks_total",
		Help: "Acknowledgement submissions, by outcome.",
	}, []string{"outcome"})

	schedulerTicks = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Name: "medremind_scheduler_ticks_total",
		Help: "Scheduler ticks executed.",
	})

	tickDuration = promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
		Name:    "medremind_scheduler_tick_duration_seconds",
		Help:    "Duration of scheduler ticks.",
		Buckets: prometheus.DefBuckets,
	})

	channelSends = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "medremind_channel_sends_total",
		Help: "Escalation channel sends, by channel and outcome.",
	}, []string{"channel", "outcome"})

	httpRequests = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "medremind_http_requests_total",
		Help: "Backend HTTP requests served, by method, route, and status.",
	}, []string{"method", "route", "status"})

	remindersMaterialized = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Name: "medremind_reminders_materialized_total",
		Help: "Reminders created from medication schedules.",
	})

	wsClients = promauto.With(registry).NewGauge(prometheus.GaugeOpts{
		Name: "medremind_ws_clients",
		Help: "Connected change-feed websocket clients.",
	})
)

// Handler serves the registry in Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func Registry() *prometheus.Registry {
	return registry
}

func RecordAlertDispatched(threshold string) {
	alertsDispatched.WithLabelValues(threshold).Inc()
}

func RecordSoundFailure(stage string) {
	soundFailures.WithLabelValues(stage).Inc()
}

func RecordNotificationShown() {
	notificationsShown.Inc()
}

func RecordNotificationSuppressed(reason string) {
	notificationsSuppressed.WithLabelValues(reason).Inc()
}

func RecordCacheRefresh(ok bool) {
	if ok {
		cacheRefreshes.WithLabelValues("ok").Inc()
	} else {
		cacheRefreshes.WithLabelValues("error").Inc()
	}
}

func SetCachedReminders(n int) {
	cachedReminders.Set(float64(n))
}

func SetTrackerKeys(n int) {
	trackerKeys.Set(float64(n))
}

func RecordAck(outcome string) {
	acks.WithLabelValues(outcome).Inc()
}

func RecordTick(d time.Duration) {
	schedulerTicks.Inc()
	tickDuration.Observe(d.Seconds())
}

func RecordChannelSend(channel string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	channelSends.WithLabelValues(channel, outcome).Inc()
}

func RecordHTTPRequest(method, route string, status int) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

func RecordMaterialized(n int) {
	remindersMaterialized.Add(float64(n))
}

func IncrementWSClients() {
	wsClients.Inc()
}

func DecrementWSClients() {
	wsClients.Dec()
}
