// Package hold implements the legal hold engine.
//
// A hold names a set of records that must not be deleted, identified by a
// custodian, by content criteria, or both. The engine materializes that
// set as membership rows and keeps each record's cached hold flag equal to
// "has at least one active membership across all holds" — the union rule.
// Membership history is never erased: a record that stops matching is
// soft-removed, and re-matching reactivates the same row.
//
// Creation, update and release each reconcile membership and write audit
// ledger entries describing what changed. New records entering the archive
// are evaluated against all active holds via ApplyToNewRecord.
package hold
