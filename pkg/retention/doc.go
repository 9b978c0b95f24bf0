// Package retention implements automated disposal of expired records.
//
// Policies pair an age threshold with optional content conditions and an
// action: permanent deletion or an administrator notification count. An
// enforcement run walks the archive once, lets the highest-priority policy
// claim each eligible record, and then disposes of the claims in order.
// Records under an active legal hold are counted and skipped — legal hold
// always wins over retention.
//
// Every run writes one audit ledger entry per policy with the counts it
// produced, in addition to the per-record deletion entries the record
// manager writes. The Scheduler wraps the enforcer in a cron job.
package retention
