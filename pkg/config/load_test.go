package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "parchment.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
archive:
  database:
    path: /var/lib/parchment/archive.db
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Archive.Database.Path != "/var/lib/parchment/archive.db" {
		t.Errorf("file value lost: %q", cfg.Archive.Database.Path)
	}
	if cfg.Archive.Database.MaxOpenConns != DefaultDatabaseMaxOpen {
		t.Errorf("max_open_conns default not applied: %d", cfg.Archive.Database.MaxOpenConns)
	}
	if !cfg.Archive.Database.WAL() {
		t.Error("wal_mode should default to true")
	}
	if cfg.Audit.Database.Path != DefaultAuditDatabasePath {
		t.Errorf("audit path default not applied: %q", cfg.Audit.Database.Path)
	}
	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("listen address default not applied: %q", cfg.Server.ListenAddress)
	}
	if cfg.Blob.Backend != "fs" || cfg.Blob.FS.Root != DefaultBlobFSRoot {
		t.Errorf("blob defaults not applied: %+v", cfg.Blob)
	}
	if cfg.Retention.Schedule != DefaultRetentionSchedule {
		t.Errorf("retention schedule default not applied: %q", cfg.Retention.Schedule)
	}
	if cfg.Audit.VerifySchedule != DefaultAuditVerifySchedule {
		t.Errorf("audit verify schedule default not applied: %q", cfg.Audit.VerifySchedule)
	}
	if cfg.Holds.ReminderSchedule != DefaultHoldReminderSchedule {
		t.Errorf("hold reminder schedule default not applied: %q", cfg.Holds.ReminderSchedule)
	}
	if cfg.Holds.ReminderInterval != DefaultHoldReminderInterval {
		t.Errorf("hold reminder interval default not applied: %v", cfg.Holds.ReminderInterval)
	}
	if cfg.Export.BatchSize != DefaultExportBatchSize {
		t.Errorf("export batch size default not applied: %d", cfg.Export.BatchSize)
	}
	if !cfg.Telemetry.Logging.Redact() {
		t.Error("redact_emails should default to true")
	}
	if !cfg.Telemetry.Metrics.MetricsEnabled() {
		t.Error("metrics should default to enabled")
	}
}

func TestLoadConfig_ExplicitFalseBooleansSurvive(t *testing.T) {
	path := writeConfig(t, `
archive:
  database:
    wal_mode: false
telemetry:
  logging:
    redact_emails: false
  metrics:
    enabled: false
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Archive.Database.WAL() {
		t.Error("explicit wal_mode: false was overwritten by the default")
	}
	if cfg.Telemetry.Logging.Redact() {
		t.Error("explicit redact_emails: false was overwritten by the default")
	}
	if cfg.Telemetry.Metrics.MetricsEnabled() {
		t.Error("explicit metrics enabled: false was overwritten by the default")
	}
}

func TestLoadConfig_ParsesDurations(t *testing.T) {
	path := writeConfig(t, `
ingest:
  settle_delay: 2s
  queue:
    retry_delay: 250ms
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Ingest.SettleDelay != 2*time.Second {
		t.Errorf("settle_delay = %v, want 2s", cfg.Ingest.SettleDelay)
	}
	if cfg.Ingest.Queue.RetryDelay != 250*time.Millisecond {
		t.Errorf("retry_delay = %v, want 250ms", cfg.Ingest.Queue.RetryDelay)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [not: a: mapping")
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected an error for malformed YAML")
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_address: "127.0.0.1:9000"
retention:
  schedule: "0 4 * * *"
`)

	t.Setenv("PARCHMENT_SERVER_LISTEN_ADDRESS", "0.0.0.0:9100")
	t.Setenv("PARCHMENT_RETENTION_SCHEDULE", "0 */6 * * *")
	t.Setenv("PARCHMENT_AUDIT_VERIFY_SCHEDULE", "0 5 * * *")
	t.Setenv("PARCHMENT_HOLDS_REMINDER_INTERVAL", "72h")
	t.Setenv("PARCHMENT_RETENTION_DRY_RUN", "true")
	t.Setenv("PARCHMENT_EXPORT_BATCH_SIZE", "50")
	t.Setenv("PARCHMENT_TELEMETRY_METRICS_ENABLED", "false")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides failed: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:9100" {
		t.Errorf("env override lost: %q", cfg.Server.ListenAddress)
	}
	if cfg.Retention.Schedule != "0 */6 * * *" {
		t.Errorf("schedule override lost: %q", cfg.Retention.Schedule)
	}
	if cfg.Audit.VerifySchedule != "0 5 * * *" {
		t.Errorf("verify schedule override lost: %q", cfg.Audit.VerifySchedule)
	}
	if cfg.Holds.ReminderInterval != 72*time.Hour {
		t.Errorf("reminder interval override lost: %v", cfg.Holds.ReminderInterval)
	}
	if !cfg.Retention.DryRun {
		t.Error("dry run override lost")
	}
	if cfg.Export.BatchSize != 50 {
		t.Errorf("batch size override lost: %d", cfg.Export.BatchSize)
	}
	if cfg.Telemetry.Metrics.MetricsEnabled() {
		t.Error("metrics enabled override lost")
	}
}

func TestLoadConfigWithEnvOverrides_InvalidOverrideFails(t *testing.T) {
	path := writeConfig(t, "")
	t.Setenv("PARCHMENT_RETENTION_SCHEDULE", "not a cron expression")

	if _, err := LoadConfigWithEnvOverrides(path); err == nil {
		t.Error("expected validation to fail after a bad override")
	}
}
