// Package mailmend assembles a mailbox-watching correction agent. The agent
// analyzes spreadsheet attachments, proposes cell-level edits, solicits a
// human decision over an asynchronous messaging channel and applies approved
// edits exactly once as new immutable revisions of the target file.
//
// The root package is the composition layer; the workflow itself lives in
// service/orchestrator, approval messaging in service/gateway, artifact
// versioning in service/artifact and proposal state in service/proposal.
package mailmend
