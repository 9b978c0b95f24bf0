package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config contains configuration for the metrics collector.
type Config struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`
}

// DefaultConfig returns the default metrics configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:   true,
		Namespace: "parchment",
		Subsystem: "engine",
	}
}

// Collector owns every Prometheus metric the engine exposes. All record
// methods are safe on a nil receiver, so components can carry an optional
// collector without guarding each call site.
type Collector struct {
	config   *Config
	registry *prometheus.Registry

	recordsArchived  *prometheus.CounterVec
	archiveDuration  prometheus.Histogram
	attachmentsDedup prometheus.Counter

	holdsActive        prometheus.Gauge
	membershipsChanged *prometheus.CounterVec
	noticesSent        *prometheus.CounterVec

	retentionRuns     *prometheus.CounterVec
	retentionRecords  *prometheus.CounterVec
	retentionDuration prometheus.Histogram

	exportJobs     *prometheus.CounterVec
	exportRecords  prometheus.Counter
	exportDuration prometheus.Histogram

	auditEntries       *prometheus.CounterVec
	auditChainLength   prometheus.Gauge
	auditVerifications *prometheus.CounterVec

	queueDepth *prometheus.GaugeVec
}

// NewCollector creates a metrics collector registered on registry. A nil
// registry gets a fresh one.
func NewCollector(config *Config, registry *prometheus.Registry) *Collector {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Namespace == "" {
		config.Namespace = "parchment"
	}
	if config.Subsystem == "" {
		config.Subsystem = "engine"
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      name,
			Help:      help,
		}
	}

	c := &Collector{
		config:   config,
		registry: registry,

		recordsArchived: prometheus.NewCounterVec(
			prometheus.CounterOpts(opts("records_archived_total", "Messages archived, by ingestion source and outcome")),
			[]string{"source", "status"},
		),
		archiveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "archive_duration_seconds",
			Help:      "Time to archive one message, blob write included",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		attachmentsDedup: prometheus.NewCounter(
			prometheus.CounterOpts(opts("attachments_deduplicated_total", "Attachment blobs reused instead of stored again")),
		),

		holdsActive: prometheus.NewGauge(
			prometheus.GaugeOpts(opts("holds_active", "Legal holds currently unreleased")),
		),
		membershipsChanged: prometheus.NewCounterVec(
			prometheus.CounterOpts(opts("hold_memberships_changed_total", "Hold membership rows added or soft-removed")),
			[]string{"op"},
		),
		noticesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts(opts("hold_notices_sent_total", "Preservation notices sent, by channel")),
			[]string{"channel"},
		),

		retentionRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts(opts("retention_runs_total", "Retention enforcement runs, by outcome")),
			[]string{"outcome"},
		),
		retentionRecords: prometheus.NewCounterVec(
			prometheus.CounterOpts(opts("retention_records_total", "Records handled by retention enforcement, by action")),
			[]string{"action"},
		),
		retentionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "retention_run_duration_seconds",
			Help:      "Duration of a full retention enforcement run",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}),

		exportJobs: prometheus.NewCounterVec(
			prometheus.CounterOpts(opts("export_jobs_total", "Export jobs finished, by kind and status")),
			[]string{"kind", "status"},
		),
		exportRecords: prometheus.NewCounter(
			prometheus.CounterOpts(opts("export_records_total", "Records written into export containers")),
		),
		exportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "export_duration_seconds",
			Help:      "Duration of one export job run",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 3600},
		}),

		auditEntries: prometheus.NewCounterVec(
			prometheus.CounterOpts(opts("audit_entries_total", "Audit ledger entries appended, by action type")),
			[]string{"action"},
		),
		auditChainLength: prometheus.NewGauge(
			prometheus.GaugeOpts(opts("audit_chain_length", "Current length of the audit hash chain")),
		),
		auditVerifications: prometheus.NewCounterVec(
			prometheus.CounterOpts(opts("audit_verifications_total", "Audit chain verification runs, by result")),
			[]string{"result"},
		),

		queueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts(opts("queue_depth", "Jobs queued or in flight, by topic")),
			[]string{"topic"},
		),
	}

	registry.MustRegister(
		c.recordsArchived,
		c.archiveDuration,
		c.attachmentsDedup,
		c.holdsActive,
		c.membershipsChanged,
		c.noticesSent,
		c.retentionRuns,
		c.retentionRecords,
		c.retentionDuration,
		c.exportJobs,
		c.exportRecords,
		c.exportDuration,
		c.auditEntries,
		c.auditChainLength,
		c.auditVerifications,
		c.queueDepth,
	)

	return c
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

// Registry returns the Prometheus registry backing this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordArchived counts one ingestion attempt.
func (c *Collector) RecordArchived(source, status string, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.recordsArchived.WithLabelValues(source, status).Inc()
	if status == "archived" {
		c.archiveDuration.Observe(duration.Seconds())
	}
}

// RecordAttachmentDeduplicated counts one attachment blob reuse.
func (c *Collector) RecordAttachmentDeduplicated() {
	if !c.enabled() {
		return
	}
	c.attachmentsDedup.Inc()
}

// SetActiveHolds sets the unreleased hold gauge.
func (c *Collector) SetActiveHolds(n int64) {
	if !c.enabled() {
		return
	}
	c.holdsActive.Set(float64(n))
}

// RecordMembershipChange counts membership rows added or removed.
func (c *Collector) RecordMembershipChange(op string, n int) {
	if !c.enabled() || n <= 0 {
		return
	}
	c.membershipsChanged.WithLabelValues(op).Add(float64(n))
}

// RecordNoticeSent counts one preservation notice.
func (c *Collector) RecordNoticeSent(channel string) {
	if !c.enabled() {
		return
	}
	c.noticesSent.WithLabelValues(channel).Inc()
}

// RecordRetentionRun records the outcome of a full enforcement run.
func (c *Collector) RecordRetentionRun(outcome string, deleted, notified, skippedOnHold, failed int64, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.retentionRuns.WithLabelValues(outcome).Inc()
	c.retentionRecords.WithLabelValues("deleted").Add(float64(deleted))
	c.retentionRecords.WithLabelValues("notified").Add(float64(notified))
	c.retentionRecords.WithLabelValues("skipped_on_hold").Add(float64(skippedOnHold))
	c.retentionRecords.WithLabelValues("failed").Add(float64(failed))
	c.retentionDuration.Observe(duration.Seconds())
}

// RecordExportJob records one finished export job.
func (c *Collector) RecordExportJob(kind, status string, records int64, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.exportJobs.WithLabelValues(kind, status).Inc()
	if records > 0 {
		c.exportRecords.Add(float64(records))
	}
	c.exportDuration.Observe(duration.Seconds())
}

// RecordAuditEntry counts one appended ledger entry and updates the chain
// length gauge.
func (c *Collector) RecordAuditEntry(action string, chainLength int64) {
	if !c.enabled() {
		return
	}
	c.auditEntries.WithLabelValues(action).Inc()
	c.auditChainLength.Set(float64(chainLength))
}

// RecordAuditVerification counts one chain verification run.
func (c *Collector) RecordAuditVerification(ok bool) {
	if !c.enabled() {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	c.auditVerifications.WithLabelValues(result).Inc()
}

// SetQueueDepth sets a topic's depth gauge.
func (c *Collector) SetQueueDepth(topic string, depth int64) {
	if !c.enabled() {
		return
	}
	c.queueDepth.WithLabelValues(topic).Set(float64(depth))
}
