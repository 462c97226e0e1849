package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/imrishuroy/go-cimit-stub/internal/aws"
)

const (
	MetricRequests           = "Requests"
	MetricLatency            = "Latency"
	MetricCredentialsIssued  = "CredentialsIssued"
	MetricPendingMitigations = "PendingMitigationsRecorded"
)

// Metrics publishes custom CloudWatch metrics for the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	client    aws.CloudWatchAPI
	namespace string
	logger    *slog.Logger
	nowFunc   func() time.Time
}

// New creates a Metrics publishing under namespace.
func New(client aws.CloudWatchAPI, namespace string, logger *slog.Logger) *Metrics {
	if logger == nil {
		logger = slog.Default()
	}
	return &Metrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
		nowFunc:   time.Now,
	}
}

// ObserveRequest records one handled request and its latency.
// Call with time.Now() at the start of the request.
func (m *Metrics) ObserveRequest(ctx context.Context, route string, status int, start time.Time) {
	if m == nil {
		return
	}
	dims := []cwtypes.Dimension{
		dimension("Route", route),
		dimension("StatusClass", fmt.Sprintf("%dxx", status/100)),
	}
	now := m.nowFunc()
	m.put(ctx,
		datum(MetricRequests, 1, cwtypes.StandardUnitCount, now, dims),
		datum(MetricLatency, float64(now.Sub(start).Milliseconds()), cwtypes.StandardUnitMilliseconds, now, dims[:1]),
	)
}

// IncrementCredentialsIssued records a successfully signed credential.
func (m *Metrics) IncrementCredentialsIssued(ctx context.Context) {
	if m == nil {
		return
	}
	m.put(ctx, datum(MetricCredentialsIssued, 1, cwtypes.StandardUnitCount, m.nowFunc(), nil))
}

// IncrementPendingMitigations records a mitigation deferred to the pending ledger.
func (m *Metrics) IncrementPendingMitigations(ctx context.Context, method string) {
	if m == nil {
		return
	}
	m.put(ctx, datum(MetricPendingMitigations, 1, cwtypes.StandardUnitCount, m.nowFunc(),
		[]cwtypes.Dimension{dimension("RequestMethod", method)}))
}

// put never fails the caller; metric loss is logged.
func (m *Metrics) put(ctx context.Context, data ...cwtypes.MetricDatum) {
	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  &m.namespace,
		MetricData: data,
	})
	if err != nil {
		m.logger.WarnContext(ctx, "failed to publish metrics", "namespace", m.namespace, "error", err)
	}
}

func datum(name string, value float64, unit cwtypes.StandardUnit, at time.Time, dims []cwtypes.Dimension) cwtypes.MetricDatum {
	return cwtypes.MetricDatum{
		MetricName: &name,
		Value:      &value,
		Unit:       unit,
		Timestamp:  &at,
		Dimensions: dims,
	}
}

func dimension(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: &name, Value: &value}
}
