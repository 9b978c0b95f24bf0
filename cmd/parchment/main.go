// Parchment is a compliance email archival engine.
//
// It ingests messages into an immutable archive, applies legal holds,
// enforces retention policies, and produces portable export containers,
// with every mutation recorded in a hash-chained audit ledger.
//
// Usage:
//
//	# Start the engine with default configuration
//	parchment run
//
//	# Start with a custom configuration file
//	parchment run --config /etc/parchment/config.yaml
//
//	# Run retention enforcement once, without deleting anything
//	parchment retention run --dry-run
//
//	# Verify the audit ledger hash chain
//	parchment verify --record
//
//	# Create and run an export of one hold's records
//	parchment export create --format eml --hold hold-123
//	parchment export run <job-id>
//
//	# Show version information
//	parchment version
package main

func main() {
	Execute()
}
