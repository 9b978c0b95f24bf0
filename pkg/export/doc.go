// Package export packages archived records into downloadable containers.
//
// Two job kinds share the packaging path: a targeted job exports the
// records selected by one hold, one case, or an explicit id list, and a
// snapshot job exports every record archived at or before a cutoff fixed
// when the job was created. Either way the output is a single zip
// container holding metadata.json, the format payload (raw .eml files, a
// single mbox stream, or an export.json array with attachment bytes
// alongside), a manifest.jsonl line per record, and a trailing
// summary.json with the final counts.
//
// Containers are streamed to the blob gateway while they are written, one
// record content stream open at a time. Records are always enumerated in
// (archivedAt, id) order, so a container is deterministic for a fixed
// record set.
package export
