package metrics

import (
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using the Prometheus client library.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	sendRequestsTotal   *prometheus.CounterVec
	recipientsTotal     *prometheus.CounterVec
	errorTokenUpdates   prometheus.Counter
	resetsTotal         prometheus.Counter
	activityRecords     prometheus.Gauge
	connectorErrorTotal *prometheus.CounterVec
}

// NewPrometheusSink creates a sink and registers its collectors with reg.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{
		sendRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mockfcm_send_requests_total",
			Help: "Total number of /fcm/send requests by outcome.",
		}, []string{"outcome"}),
		recipientsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mockfcm_recipients_total",
			Help: "Total number of recipients processed by result.",
		}, []string{"result"}),
		errorTokenUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mockfcm_error_token_updates_total",
			Help: "Total number of error token entries applied.",
		}),
		resetsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mockfcm_resets_total",
			Help: "Total number of state resets.",
		}),
		activityRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mockfcm_activity_records",
			Help: "Current number of records in the activity log.",
		}),
		connectorErrorTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mockfcm_connector_errors_total",
			Help: "Total number of failed activity notifications by connector.",
		}, []string{"connector"}),
	}

	s.register(reg, s.sendRequestsTotal, "mockfcm_send_requests_total")
	s.register(reg, s.recipientsTotal, "mockfcm_recipients_total")
	s.register(reg, s.errorTokenUpdates, "mockfcm_error_token_updates_total")
	s.register(reg, s.resetsTotal, "mockfcm_resets_total")
	s.register(reg, s.activityRecords, "mockfcm_activity_records")
	s.register(reg, s.connectorErrorTotal, "mockfcm_connector_errors_total")
	return s
}

func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("[Metrics] failed to register %s: %v", name, err)
	}
}

func (s *PrometheusSink) SendRequest(outcome string) {
	s.sendRequestsTotal.WithLabelValues(outcome).Inc()
}

func (s *PrometheusSink) RecipientProcessed(result string) {
	s.recipientsTotal.WithLabelValues(result).Inc()
}

func (s *PrometheusSink) ErrorTokensUpdated(entries int) {
	s.errorTokenUpdates.Add(float64(entries))
}

func (s *PrometheusSink) Reset() {
	s.resetsTotal.Inc()
	s.activityRecords.Set(0)
}

func (s *PrometheusSink) ActivityRecordsUpdate(count int) {
	s.activityRecords.Set(float64(count))
}

func (s *PrometheusSink) ConnectorError(connector string) {
	s.connectorErrorTotal.WithLabelValues(connector).Inc()
}
