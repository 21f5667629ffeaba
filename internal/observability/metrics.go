package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckinsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "droszt", Name: "checkins_total", Help: "Successful check-ins per queue"},
		[]string{"queue"},
	)
	CheckoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "droszt", Name: "checkouts_total", Help: "Removals from a queue by reason"},
		[]string{"queue", "reason"},
	)
	ReinsertsTotal  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "droszt", Name: "reinserts_total", Help: "Successful undo reinsertions"})
	ForcedSignOuts  = promauto.NewCounterVec(prometheus.CounterOpts{Namespace: "droszt", Name: "forced_signouts_total", Help: "Forced sign-outs by cause"}, []string{"cause"})
	GeofenceExits   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "droszt", Name: "geofence_exits_total", Help: "Confirmed zone exits"})
	SamplesTotal    = promauto.NewCounterVec(prometheus.CounterOpts{Namespace: "droszt", Name: "location_samples_total", Help: "Processed location samples"}, []string{"source"})
	MockedSamples   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "droszt", Name: "mocked_samples_total", Help: "Samples flagged as mocked"})
	ActiveDevices   = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "droszt", Name: "active_devices", Help: "Device runtimes currently running"})
	WSClients       = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "droszt", Name: "ws_clients", Help: "Connected queue websocket clients"})
	StoreRetries    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "droszt", Name: "store_retries_total", Help: "Retries after concurrent queue modification"})
	NotificationErr = promauto.NewCounter(prometheus.CounterOpts{Namespace: "droszt", Name: "notification_errors_total", Help: "Failed notification deliveries"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "droszt", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "droszt",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
