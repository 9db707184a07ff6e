// Package metrics defines the Prometheus collectors for API traffic,
// fraud detection, and click analytics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "http_status"})

	RequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_latency_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	SuspiciousRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "suspicious_requests_total",
		Help: "Total number of suspicious requests detected",
	}, []string{"type"})

	SuspiciousIPs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "suspicious_ips_current",
		Help: "Number of currently suspicious IPs",
	})

	SuspiciousIPURLs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "suspicious_ip_urls_current",
		Help: "Number of currently suspicious IP+URL combinations",
	})

	SuspiciousClicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "suspicious_clicks_total",
		Help: "Suspicious clicks detected",
	}, []string{"url", "type"})

	UniqueVisitors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unique_visitors_total",
		Help: "Number of unique visitors",
	}, []string{"url", "date"})

	TopReferrers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "top_referrers",
		Help: "Referrer counts",
	}, []string{"url", "referrer"})

	ClicksByCountry = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clicks_by_country_total",
		Help: "Number of clicks grouped by country",
	}, []string{"url", "country"})

	ClicksByDevice = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clicks_by_device_total",
		Help: "Clicks by device type (mobile, tablet, pc)",
	}, []string{"url", "device"})

	ClicksByBrowser = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clicks_by_browser_total",
		Help: "Clicks by browser family",
	}, []string{"url", "browser"})

	ClicksByHour = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clicks_by_hour",
		Help:    "Clicks by hour of day",
		Buckets: prometheus.LinearBuckets(0, 1, 24),
	}, []string{"url"})
)

// FraudObserver adapts the collectors to the fraud engine's Observer.
type FraudObserver struct{}

func (FraudObserver) SuspiciousRequest(reason string) {
	SuspiciousRequests.WithLabelValues(reason).Inc()
}

func (FraudObserver) SetSuspiciousIPs(count int64) {
	SuspiciousIPs.Set(float64(count))
}

func (FraudObserver) SetSuspiciousIPURLs(count int64) {
	SuspiciousIPURLs.Set(float64(count))
}

// ObserveClick records the enriched analytics counters for one accepted
// click.
func ObserveClick(urlCode, country, device, browser, referrer string, clickedAt time.Time) {
	if country != "" {
		ClicksByCountry.WithLabelValues(urlCode, country).Inc()
	}
	if device != "" {
		ClicksByDevice.WithLabelValues(urlCode, device).Inc()
	}
	if browser != "" {
		ClicksByBrowser.WithLabelValues(urlCode, browser).Inc()
	}
	if referrer != "" {
		TopReferrers.WithLabelValues(urlCode, referrer).Inc()
	}
	ClicksByHour.WithLabelValues(urlCode).Observe(float64(clickedAt.Hour()))
}

// HTTPStatusLabel formats a status code for the request counter.
func HTTPStatusLabel(status int) string {
	return strconv.Itoa(status)
}
