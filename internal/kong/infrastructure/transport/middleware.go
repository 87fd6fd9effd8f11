package transport

import (
	"context"
	"strconv"
	"time"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/go-kit/kit/metrics"
	gokitprometheus "github.com/go-kit/kit/metrics/prometheus"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

func loggingMiddleware(logger log.Logger) endpoint.Middleware {
	return func(next endpoint.Endpoint) endpoint.Endpoint {
		return func(ctx context.Context, request interface{}) (response interface{}, err error) {
			defer func(begin time.Time) {
				if err != nil {
					_ = level.Debug(logger).Log("err", err, "took", time.Since(begin))
					return
				}
				_ = level.Debug(logger).Log("took", time.Since(begin))
			}(time.Now())
			return next(ctx, request)
		}
	}
}

// Metrics counts requests and records their latency. Labels are method,
// endpoint and status_code for the counter, method and endpoint for the
// histogram.
type Metrics struct {
	requestCount   metrics.Counter
	requestLatency metrics.Histogram
}

func NewMetrics(requestCount metrics.Counter, requestLatency metrics.Histogram) *Metrics {
	return &Metrics{
		requestCount:   requestCount,
		requestLatency: requestLatency,
	}
}

// NewPrometheusMetrics registers the client metrics with the default
// prometheus registry.
func NewPrometheusMetrics(namespace string) *Metrics {
	return NewMetrics(
		gokitprometheus.NewCounterFrom(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_count",
			Help:      "Number of requests sent.",
		}, []string{"method", "endpoint", "status_code"}),
		gokitprometheus.NewHistogramFrom(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_latency_seconds",
			Help:      "Total duration of request in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	)
}

func (m *Metrics) middleware(method, name string, success int) endpoint.Middleware {
	return func(next endpoint.Endpoint) endpoint.Endpoint {
		return func(ctx context.Context, request interface{}) (response interface{}, err error) {
			defer func(begin time.Time) {
				m.requestCount.With("method", method, "endpoint", name, "status_code", statusLabel(err, success)).Add(1)
				m.requestLatency.With("method", method, "endpoint", name).Observe(time.Since(begin).Seconds())
			}(time.Now())
			return next(ctx, request)
		}
	}
}

func statusLabel(err error, success int) string {
	if err == nil {
		return strconv.Itoa(success)
	}
	var respErr *ResponseError
	if errors.As(err, &respErr) {
		return strconv.Itoa(respErr.StatusCode)
	}
	return "error"
}
