package validation

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/proctriage/triage/model"
)

// Collector exposes the ledger's calibration metrics (spec §4.7) as Prometheus gauges, recomputed
// on every scrape from whatever resolved records are on disk at that moment rather than cached --
// a validation.Store's sqlite file is the source of truth, not an in-process snapshot.
type Collector struct {
	store     *Store
	threshold float64

	n       *prometheus.Desc
	brier   *prometheus.Desc
	ece     *prometheus.Desc
	aucDesc *prometheus.Desc
}

// NewCollector builds a Prometheus collector reading store's resolved records. threshold is
// forwarded to ComputeMetrics, matching the report.go caller's usage; ComputeMetrics does not use it.
func NewCollector(store *Store, threshold float64) *Collector {
	return &Collector{
		store:     store,
		threshold: threshold,
		n: prometheus.NewDesc(
			"triage_validation_resolved_total",
			"Number of resolved validation records fed into calibration metrics.",
			nil, nil,
		),
		brier: prometheus.NewDesc(
			"triage_validation_brier_score",
			"Brier score of abandoned-process predictions over resolved records.",
			nil, nil,
		),
		ece: prometheus.NewDesc(
			"triage_validation_expected_calibration_error",
			"Expected calibration error of abandoned-process predictions.",
			nil, nil,
		),
		aucDesc: prometheus.NewDesc(
			"triage_validation_roc_auc",
			"ROC-AUC of abandoned-process predictions (only present once N >= the AUC gate).",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.n
	ch <- c.brier
	ch <- c.ece
	ch <- c.aucDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	records, err := c.store.Resolved()
	if err != nil {
		return
	}
	data := make([]model.CalibrationDatum, 0, len(records))
	for _, r := range records {
		if d, ok := r.ToCalibrationData(); ok {
			data = append(data, d)
		}
	}
	metrics, err := ComputeMetrics(data, c.threshold)
	if err != nil {
		// ErrInsufficientData just means nothing to report yet, not a scrape failure.
		return
	}

	ch <- prometheus.MustNewConstMetric(c.n, prometheus.GaugeValue, float64(metrics.N))
	ch <- prometheus.MustNewConstMetric(c.brier, prometheus.GaugeValue, metrics.BrierScore)
	ch <- prometheus.MustNewConstMetric(c.ece, prometheus.GaugeValue, metrics.ExpectedCalibrationError)
	if metrics.ROCAUC != nil {
		ch <- prometheus.MustNewConstMetric(c.aucDesc, prometheus.GaugeValue, *metrics.ROCAUC)
	}
}
