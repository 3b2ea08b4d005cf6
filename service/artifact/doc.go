// Package artifact owns the files that corrections target. Revisions are
// immutable: applying an approved correction writes a new revision next to
// the original, so a failed or rejected apply can never corrupt the source
// file. The Applier re-validates every edit against the current revision
// before writing, trading long-held locks for an optimistic staleness check.
package artifact
