package metrics

import "github.com/prometheus/client_golang/prometheus"

// NewTokenRefreshTotal returns a Prometheus counter for completed token refresh cycles
func NewTokenRefreshTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "token_refresh_total",
		Help: "Total number of successful access token refresh cycles",
	})
}

// NewTokenRefreshFailuresTotal returns a Prometheus counter for failed token refresh cycles
func NewTokenRefreshFailuresTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "token_refresh_failures_total",
		Help: "Total number of refresh cycles that ended the session",
	})
}

// NewReplayedRequestsTotal returns a Prometheus counter for requests replayed after a refresh
func NewReplayedRequestsTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "replayed_requests_total",
		Help: "Total number of queued requests replayed after a token refresh",
	})
}
