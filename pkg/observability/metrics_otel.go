package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/platinummonkey/plugin-portal"

// OTelMetrics holds OpenTelemetry metric instruments. A nil *OTelMetrics
// records nothing.
type OTelMetrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	// Domain metrics
	transitionsTotal metric.Int64Counter
	downloadsTotal   metric.Int64Counter
	loginsTotal      metric.Int64Counter
}

// NewOTelMetrics creates instruments on provider, or on the global provider when nil
func NewOTelMetrics(provider metric.MeterProvider) (*OTelMetrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(meterName)

	m := &OTelMetrics{}
	var err error

	m.httpRequestsTotal, err = meter.Int64Counter(
		"http.server.requests",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http requests counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http.server.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http duration histogram: %w", err)
	}

	m.transitionsTotal, err = meter.Int64Counter(
		"portal.plugin.transitions",
		metric.WithDescription("Publication transitions attempted"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transitions counter: %w", err)
	}

	m.downloadsTotal, err = meter.Int64Counter(
		"portal.package.downloads",
		metric.WithDescription("Package downloads served"),
		metric.WithUnit("{download}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create downloads counter: %w", err)
	}

	m.loginsTotal, err = meter.Int64Counter(
		"portal.logins",
		metric.WithDescription("Login attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create logins counter: %w", err)
	}

	return m, nil
}

func (m *OTelMetrics) recordHTTPRequest(ctx context.Context, method, route string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", statusCode),
	)
	m.httpRequestsTotal.Add(ctx, 1, attrs)
	m.httpRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

func (m *OTelMetrics) recordTransition(action, result string) {
	if m == nil {
		return
	}
	m.transitionsTotal.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("result", result),
	))
}

func (m *OTelMetrics) recordDownload(pluginID string) {
	if m == nil {
		return
	}
	m.downloadsTotal.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("plugin.id", pluginID),
	))
}

func (m *OTelMetrics) recordLogin(result string) {
	if m == nil {
		return
	}
	m.loginsTotal.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("result", result),
	))
}
