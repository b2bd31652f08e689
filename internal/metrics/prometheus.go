package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/filevault/backupd/internal/stats"
)

// collector adapts a *stats.Stats snapshot to the prometheus.Collector
// interface. It reads the atomic counters on every scrape rather than
// maintaining its own promauto counters, so stats.Stats stays the single
// source of truth for every number the server reports — the Prometheus
// endpoint is a view, not a second ledger.
type collector struct {
	stats *stats.Stats

	connections   *prometheus.Desc
	requests      *prometheus.Desc
	responses     *prometheus.Desc
	filesReceived *prometheus.Desc
	fileBytes     *prometheus.Desc
	crcOutcomes   *prometheus.Desc
	errors        *prometheus.Desc
}

// NewCollector builds a prometheus.Collector over s. Call
// GetRegistry().MustRegister(NewCollector(s)) once during startup.
func NewCollector(s *stats.Stats) prometheus.Collector {
	return &collector{
		stats: s,
		connections: prometheus.NewDesc(
			"backupd_connections_total", "Total accepted TCP connections.", nil, nil),
		requests: prometheus.NewDesc(
			"backupd_requests_total", "Total requests received, by opcode.", []string{"opcode"}, nil),
		responses: prometheus.NewDesc(
			"backupd_responses_total", "Total responses sent, by opcode.", []string{"opcode"}, nil),
		filesReceived: prometheus.NewDesc(
			"backupd_files_received_total", "Total files successfully decrypted and stored.", nil, nil),
		fileBytes: prometheus.NewDesc(
			"backupd_file_bytes_total", "Total plaintext bytes received across all files.", nil, nil),
		crcOutcomes: prometheus.NewDesc(
			"backupd_crc_outcomes_total", "Total CRC outcome notifications, by kind.", []string{"outcome"}, nil),
		errors: prometheus.NewDesc(
			"backupd_errors_total", "Total dispatcher-level errors.", nil, nil),
	}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.connections
	ch <- c.requests
	ch <- c.responses
	ch <- c.filesReceived
	ch <- c.fileBytes
	ch <- c.crcOutcomes
	ch <- c.errors
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.stats.Snapshot()

	ch <- prometheus.MustNewConstMetric(c.connections, prometheus.CounterValue, float64(snap.Connections))
	for opcode, n := range snap.RequestsByOpcode {
		ch <- prometheus.MustNewConstMetric(c.requests, prometheus.CounterValue, float64(n), opcode)
	}
	for opcode, n := range snap.ResponsesByOpcode {
		ch <- prometheus.MustNewConstMetric(c.responses, prometheus.CounterValue, float64(n), opcode)
	}
	ch <- prometheus.MustNewConstMetric(c.filesReceived, prometheus.CounterValue, float64(snap.FilesReceived))
	ch <- prometheus.MustNewConstMetric(c.fileBytes, prometheus.CounterValue, float64(snap.FileBytes))
	ch <- prometheus.MustNewConstMetric(c.crcOutcomes, prometheus.CounterValue, float64(snap.CRCValid), "valid")
	ch <- prometheus.MustNewConstMetric(c.crcOutcomes, prometheus.CounterValue, float64(snap.CRCInvalidResend), "invalid_resend")
	ch <- prometheus.MustNewConstMetric(c.crcOutcomes, prometheus.CounterValue, float64(snap.CRCInvalidAbort), "invalid_abort")
	ch <- prometheus.MustNewConstMetric(c.errors, prometheus.CounterValue, float64(snap.Errors))
}
