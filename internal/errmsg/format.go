// Package errmsg provides consistent error formatting for user-facing messages.
package errmsg

import "fmt"

// Op represents an operation that can fail.
type Op string

// Operation constants - grouped by domain.
const (
	// Configuration
	OpConfigLoad Op = "load configuration"

	// Library snapshot / delta (C9/C10)
	OpSnapshotLoad     Op = "load library snapshot"
	OpSnapshotSave     Op = "save library snapshot"
	OpSnapshotDelta    Op = "compute library delta"
	OpSnapshotValidate Op = "validate library snapshot"

	// Cache (C1-C4)
	OpCacheLoad  Op = "load cache"
	OpCacheSave  Op = "save cache"
	OpCacheRead  Op = "read cache entry"
	OpCacheWrite Op = "write cache entry"

	// Rate limiting (C5)
	OpRateLimitAcquire Op = "acquire rate limit slot"

	// Pending verification queue (C6)
	OpPendingLoad Op = "load pending-verification queue"
	OpPendingSave Op = "save pending-verification queue"
	OpPendingMark Op = "mark album for verification"

	// Library agent (C7)
	OpAgentQuery  Op = "query library agent"
	OpAgentUpdate Op = "update track via library agent"
	OpAgentExists Op = "check track existence via library agent"

	// External metadata APIs (C8)
	OpAPIQueryMusicBrainz Op = "query MusicBrainz"
	OpAPIQueryDiscogs     Op = "query Discogs"
	OpAPIScoreCandidates  Op = "score candidate releases"

	// Year resolution (C11/C12)
	OpYearResolve      Op = "resolve album year"
	OpYearBatchProcess Op = "process year-resolution batch"
	OpYearRestore      Op = "restore year from release year"

	// Database verifier (C13)
	OpVerifyExistence Op = "verify track existence"
	OpVerifyRemove    Op = "remove verified-absent row"

	// Pipeline orchestration (C14)
	OpPipelineRun   Op = "run sync pipeline"
	OpPipelineStep  Op = "run pipeline step"
	OpPipelineFresh Op = "run full resync"

	// CSV projection (C15)
	OpCSVLoad  Op = "load CSV projection"
	OpCSVSave  Op = "save CSV projection"
	OpCSVMerge Op = "merge CSV projection row"

	// Audit reporting
	OpReportWrite   Op = "write changes report"
	OpRunHistoryLog Op = "record run history"
)

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
}
