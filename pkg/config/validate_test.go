package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

func TestValidate_DefaultsAreValid(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Errorf("defaulted configuration should validate: %v", err)
	}
}

func TestValidate_FieldErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "missing listen address",
			mutate: func(c *Config) { c.Server.ListenAddress = "" },
			field:  "server.listen_address",
		},
		{
			name:   "missing archive database path",
			mutate: func(c *Config) { c.Archive.Database.Path = "" },
			field:  "archive.database.path",
		},
		{
			name:   "idle connections exceed open connections",
			mutate: func(c *Config) { c.Audit.Database.MaxIdleConns = 50 },
			field:  "audit.database.max_idle_conns",
		},
		{
			name:   "unknown blob backend",
			mutate: func(c *Config) { c.Blob.Backend = "tape" },
			field:  "blob.backend",
		},
		{
			name: "s3 backend without bucket",
			mutate: func(c *Config) {
				c.Blob.Backend = "s3"
				c.Blob.S3.Region = "us-east-1"
			},
			field: "blob.s3.bucket",
		},
		{
			name:   "bad cron expression",
			mutate: func(c *Config) { c.Retention.Schedule = "every day at 3" },
			field:  "retention.schedule",
		},
		{
			name:   "zero export batch size",
			mutate: func(c *Config) { c.Export.BatchSize = -1 },
			field:  "export.batch_size",
		},
		{
			name:   "slash-prefixed output prefix",
			mutate: func(c *Config) { c.Export.OutputPrefix = "/exports" },
			field:  "export.output_prefix",
		},
		{
			name:   "unknown log level",
			mutate: func(c *Config) { c.Telemetry.Logging.Level = "loud" },
			field:  "telemetry.logging.level",
		},
		{
			name:   "zero queue workers",
			mutate: func(c *Config) { c.Ingest.Queue.Workers = -2 },
			field:  "ingest.queue.workers",
		},
		{
			name:   "bad audit verify cron expression",
			mutate: func(c *Config) { c.Audit.VerifySchedule = "4am daily" },
			field:  "audit.verify_schedule",
		},
		{
			name:   "bad hold reminder cron expression",
			mutate: func(c *Config) { c.Holds.ReminderSchedule = "weekly" },
			field:  "holds.reminder_schedule",
		},
		{
			name:   "negative hold reminder interval",
			mutate: func(c *Config) { c.Holds.ReminderInterval = -1 },
			field:  "holds.reminder_interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not mention field %q", err, tt.field)
			}
		})
	}
}

func TestValidate_DisabledScheduleIsValid(t *testing.T) {
	cfg := validConfig()
	cfg.Retention.Schedule = ScheduleDisabled
	cfg.Audit.VerifySchedule = ScheduleDisabled
	cfg.Holds.ReminderSchedule = ScheduleDisabled
	if err := Validate(cfg); err != nil {
		t.Errorf("schedule %q should validate: %v", ScheduleDisabled, err)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Server.ListenAddress = ""
	cfg.Blob.Backend = "tape"
	cfg.Export.BatchSize = -1

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	verr, ok := err.(ValidationError)
	if !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(verr.Errors) != 3 {
		t.Errorf("expected 3 errors, got %d: %v", len(verr.Errors), verr.Errors)
	}
}
