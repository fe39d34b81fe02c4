package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ProgressSource provides the collector access to the current run.
type ProgressSource interface {
	Progress() (done, total int)
}

// Collector implements prometheus.Collector to read live gauges at scrape time.
type Collector struct {
	src ProgressSource

	chunksDone  *prometheus.Desc
	chunksTotal *prometheus.Desc
}

// NewCollector creates a collector that reads run progress at scrape time.
// src may be nil (metrics will report 0).
func NewCollector(src ProgressSource) *Collector {
	return &Collector{
		src: src,
		chunksDone: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "run", "chunks_logged"),
			"Checkpoint rows stored for the current run.",
			nil, nil,
		),
		chunksTotal: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "run", "chunks_planned"),
			"Windows planned for the current run.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.chunksDone
	ch <- c.chunksTotal
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	var done, total int
	if c.src != nil {
		done, total = c.src.Progress()
	}
	ch <- prometheus.MustNewConstMetric(c.chunksDone, prometheus.GaugeValue, float64(done))
	ch <- prometheus.MustNewConstMetric(c.chunksTotal, prometheus.GaugeValue, float64(total))
}
