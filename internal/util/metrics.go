package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersBilledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_orders_billed_total",
		Help: "Total number of orders with billing details saved",
	})

	ProviderOrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_provider_orders_created_total",
		Help: "Total number of provider checkout orders created",
	})

	CapturesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_captures_total",
		Help: "Total number of capture attempts by outcome",
	}, []string{"result"})

	CaptureIdempotentHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_capture_idempotent_hits_total",
		Help: "Total number of capture calls short-circuited on an already completed order",
	})

	StatusChecksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_status_checks_total",
		Help: "Total number of check-status requests",
	})

	StatusCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_status_cache_hits_total",
		Help: "Total number of check-status requests served from the cache",
	})

	StatusCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_status_cache_misses_total",
		Help: "Total number of check-status requests that read the order ledger",
	})

	DiscountLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_discount_lookups_total",
		Help: "Total number of discount code lookups by outcome",
	}, []string{"result"})

	GatewayRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_gateway_request_latency_seconds",
		Help:    "Latency of PayPal gateway calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	GatewayErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_gateway_errors_total",
		Help: "Total number of failed PayPal gateway calls",
	}, []string{"operation"})

	NotificationsSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_notifications_sent_total",
		Help: "Total number of operator notifications delivered",
	})

	NotificationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_notification_failures_total",
		Help: "Total number of operator notifications that failed and were swallowed",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
