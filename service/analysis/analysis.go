// Package analysis defines the contract between the agent loop and whatever
// inspects spreadsheet attachments for inconsistencies. The inspection
// itself, rule engines or model calls alike, lives behind the Analyzer
// interface.
package analysis

import (
	"context"

	"github.com/mailmend/mailmend/model/correction"
)

// Attachment is a file pulled out of an inbound message.
type Attachment struct {
	// Name is the file name as received, e.g. "report.xlsx".
	Name string
	// Data is the raw file content.
	Data []byte
}

// Detection is a single inconsistency with the edits that would fix it.
type Detection struct {
	Issue correction.Issue
	Edits []correction.EditOperation
}

// Report is the result of analyzing one attachment.
type Report struct {
	// Summary is a human-readable digest of the attachment, sent to the
	// messaging channel regardless of whether anything was detected.
	Summary string
	// Detections lists the inconsistencies found, possibly none.
	Detections []Detection
}

// Analyzer inspects an attachment and reports inconsistencies.
type Analyzer interface {
	Analyze(ctx context.Context, attachment Attachment) (*Report, error)
}

// AnalyzerFunc adapts a function to the Analyzer interface.
type AnalyzerFunc func(ctx context.Context, attachment Attachment) (*Report, error)

// Analyze calls f.
func (f AnalyzerFunc) Analyze(ctx context.Context, attachment Attachment) (*Report, error) {
	return f(ctx, attachment)
}
