package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var durationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Metrics - счетчики выдачи аттестатов, импорта и движения бланков.
// Все методы безопасны для nil-получателя: сервисы в тестах работают без метрик.
type Metrics struct {
	CertificatesIssued  *prometheus.CounterVec
	IssuanceRejected    *prometheus.CounterVec
	ImportRowsInserted  prometheus.Counter
	ImportRowsSkipped   prometheus.Counter
	ImportsRejected     *prometheus.CounterVec
	ImportDuration      prometheus.Histogram
	StockMovements      *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New регистрирует метрики в reg (в тестах - prometheus.NewRegistry())
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CertificatesIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "attestation_certificates_issued_total",
			Help: "Certificates issued one by one, by sheet type",
		}, []string{"sheet_type"}),
		IssuanceRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "attestation_issuance_rejected_total",
			Help: "Rejected issuance attempts, by reason",
		}, []string{"reason"}),
		ImportRowsInserted: factory.NewCounter(prometheus.CounterOpts{
			Name: "attestation_import_rows_inserted_total",
			Help: "Rows inserted by bulk imports",
		}),
		ImportRowsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "attestation_import_rows_skipped_total",
			Help: "Rows skipped by bulk imports because the sheet number already existed",
		}),
		ImportsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "attestation_imports_rejected_total",
			Help: "Bulk imports rejected as a whole, by reason",
		}, []string{"reason"}),
		ImportDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "attestation_import_duration_seconds",
			Help:    "Duration of bulk import transactions",
			Buckets: durationBuckets,
		}),
		StockMovements: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "attestation_stock_movements_total",
			Help: "Blank sheets moved in or out of agency stock",
		}, []string{"sheet_type", "direction"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "attestation_http_request_duration_seconds",
			Help:    "HTTP request duration by route pattern and status",
			Buckets: durationBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// IssuedCertificate фиксирует успешную выдачу
func (m *Metrics) IssuedCertificate(sheetType string) {
	if m == nil {
		return
	}
	m.CertificatesIssued.WithLabelValues(sheetType).Inc()
}

// RejectedIssuance фиксирует отказ в выдаче
func (m *Metrics) RejectedIssuance(reason string) {
	if m == nil {
		return
	}
	m.IssuanceRejected.WithLabelValues(reason).Inc()
}

// ObserveImport фиксирует результат успешного импорта
func (m *Metrics) ObserveImport(start time.Time, inserted, skipped int) {
	if m == nil {
		return
	}
	m.ImportDuration.Observe(time.Since(start).Seconds())
	m.ImportRowsInserted.Add(float64(inserted))
	m.ImportRowsSkipped.Add(float64(skipped))
}

// RejectedImport фиксирует отклоненный импорт
func (m *Metrics) RejectedImport(reason string) {
	if m == nil {
		return
	}
	m.ImportsRejected.WithLabelValues(reason).Inc()
}

// MovedStock фиксирует изменение остатков; delta > 0 - приход, < 0 - расход
func (m *Metrics) MovedStock(sheetType string, delta int) {
	if m == nil || delta == 0 {
		return
	}
	direction := "in"
	if delta < 0 {
		direction = "out"
		delta = -delta
	}
	m.StockMovements.WithLabelValues(sheetType, direction).Add(float64(delta))
}

// ObserveHTTP фиксирует длительность HTTP запроса
func (m *Metrics) ObserveHTTP(method, route string, status int, start time.Time) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.WithLabelValues(method, route, statusClass(status)).Observe(time.Since(start).Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	}
	return "2xx"
}
