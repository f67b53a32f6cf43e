package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/domain/documents"
	"stockledger/internal/domain/validation"
)

func TestObserveValidation(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveValidation(documents.TypeDelivery, validation.OutcomeDone, 5*time.Millisecond)
	m.ObserveValidation(documents.TypeDelivery, validation.OutcomeInsufficientStock, time.Millisecond)
	m.ObserveValidation("", validation.OutcomeRejected, time.Millisecond)
	m.AddLedgerEntries(documents.TypeDelivery, 3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.validations.WithLabelValues("DELIVERY", "done")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.validations.WithLabelValues("DELIVERY", "insufficient_stock")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.validations.WithLabelValues("unknown", "rejected")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ledgerEntries.WithLabelValues("DELIVERY")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.validationDuration))
}

func TestHTTPMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RequestStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpInFlight))
	m.RequestFinished("GET", "/api/v1/products/:id", 200, 10*time.Millisecond)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.httpInFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/v1/products/:id", "200")))

	m.RequestStarted()
	m.RequestFinished("GET", "", 404, time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "unknown", "404")))
}

func TestOutboxGauges(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SetOutboxBacklog(7)
	m.AddOutboxPublished(4)
	m.AddOutboxDeadLettered(1)
	m.SetDiscrepancies(0)

	assert.Equal(t, 7.0, testutil.ToFloat64(m.outboxBacklog))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.outboxPublished))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outboxMovedDLQ))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New(nil)
	m.AddLedgerEntries(documents.TypeReceipt, 2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `stockledger_ledger_entries_total{type="RECEIPT"} 2`)
	assert.Contains(t, string(body), "go_goroutines")
}
