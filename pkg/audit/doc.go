// Package audit implements the tamper-evident audit ledger.
//
// Every privileged action in the system — hold lifecycle changes,
// retention deletions, exports, verification runs — is recorded as an
// immutable Entry. Entries form a hash chain: each one stores the hash of
// its predecessor and a SHA-256 over its own canonical content prefixed by
// that predecessor hash. Editing, removing or reordering any stored entry
// therefore breaks every hash from that point forward, and Verify reports
// the earliest entry at which the chain no longer checks out.
//
// # Usage
//
//	store, err := storage.NewSQLiteStore(storage.DefaultSQLiteConfig("audit.db"))
//	if err != nil { ... }
//	ledger := audit.NewLedger(store)
//
//	entry, err := ledger.Append(ctx, &audit.Input{
//		ActorIdentifier: "admin@example.com",
//		ActionType:      audit.ActionCreate,
//		TargetType:      "LegalHold",
//		TargetID:        holdID,
//		ActorIP:         "10.0.0.7",
//		Details:         map[string]any{"caseId": caseID},
//	})
//
//	result, err := ledger.Verify(ctx)
//
// The ledger serializes appends internally; a single Ledger instance must
// own writes to its store.
package audit
