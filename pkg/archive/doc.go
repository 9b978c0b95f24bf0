// Package archive holds the core domain model of the email archive:
// archived records and their attachments, eDiscovery cases and custodians,
// legal holds with their membership rows, retention policies and export
// jobs, plus the Criteria selector that holds and policies share.
//
// The package also defines the Store interfaces the persistence backends
// implement (see the storage subpackage) and the record Manager, which
// owns ingest and guarded deletion. Everything above this package — the
// hold engine, retention enforcer and export pipeline — works in terms of
// these types.
package archive
