package aws

import (
	"context"
	"fmt"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Checkout metric names.
const (
	MetricCheckoutStarted       = "CheckoutStarted"
	MetricCheckoutSucceeded     = "CheckoutSucceeded"
	MetricCheckoutFailed        = "CheckoutFailed"
	MetricCheckoutStockRejected = "CheckoutStockRejected"
	MetricStockDecrementFailed  = "StockDecrementFailed"
	MetricCheckoutLatency       = "CheckoutLatency"
	MetricReconcileProcessed    = "ReconcileProcessed"
	MetricReconcileFailed       = "ReconcileFailed"
)

// Metrics publishes CloudWatch data points. A nil or disabled Metrics is a no-op.
type Metrics struct {
	client    CloudWatchAPI
	namespace string
	enabled   bool
	now       func() time.Time
}

func NewMetrics(client CloudWatchAPI, namespace string, enabled bool) *Metrics {
	return &Metrics{client: client, namespace: namespace, enabled: enabled && client != nil, now: time.Now}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Put sends a single data point.
func (m *Metrics) Put(ctx context.Context, name string, value float64, unit cwtypes.StandardUnit, dimensions map[string]string) error {
	if !m.Enabled() {
		return nil
	}

	dims := make([]cwtypes.Dimension, 0, len(dimensions))
	for k, v := range dimensions {
		dims = append(dims, cwtypes.Dimension{Name: sdkaws.String(k), Value: sdkaws.String(v)})
	}

	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: sdkaws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{{
			MetricName: sdkaws.String(name),
			Value:      sdkaws.Float64(value),
			Unit:       unit,
			Timestamp:  sdkaws.Time(m.now()),
			Dimensions: dims,
		}},
	})
	if err != nil {
		return fmt.Errorf("put metric %s: %w", name, err)
	}
	return nil
}

func (m *Metrics) RecordCount(ctx context.Context, name string, dimensions map[string]string) error {
	return m.Put(ctx, name, 1, cwtypes.StandardUnitCount, dimensions)
}

// RecordLatency records d in milliseconds.
func (m *Metrics) RecordLatency(ctx context.Context, name string, d time.Duration, dimensions map[string]string) error {
	return m.Put(ctx, name, float64(d.Milliseconds()), cwtypes.StandardUnitMilliseconds, dimensions)
}
