package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("tenant_id", "123"),
		attribute.String("doc_type", "invoice"),
		attribute.String("event", "send"),
	)
	require.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("doc_type"), attrs[0].Key)
	assert.Equal(t, attribute.Key("event"), attrs[1].Key)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordDocumentFinalized(context.Background(), "invoice")
	m.RecordPayment(context.Background(), "cash", 100)
	m.RecordOfficialCopy(context.Background(), "quote", "finalize")

	m, err := New(Config{}, noop.NewMeterProvider())
	require.NoError(t, err)
	m.RecordPayment(context.Background(), "card", 2500)
}
