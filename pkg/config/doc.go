// Package config loads, defaults, and validates the engine's YAML
// configuration.
//
// Configuration is loaded from a single YAML file, filled in with
// defaults, and optionally overridden by PARCHMENT_* environment
// variables before validation. All validation errors are collected and
// reported together rather than one at a time.
//
// Sections mirror the engine's subsystems: server, archive and audit
// databases, blob storage, ingest, retention, export, and telemetry.
package config
