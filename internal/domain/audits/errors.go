package audits

import "errors"

// Intake errors — surfaced at submission where possible, otherwise as the
// job's error field.
var (
	ErrInvalidArchive  = errors.New("uploaded file is not a valid ZIP archive")
	ErrPayloadTooLarge = errors.New("archive exceeds the configured size limit")
	ErrNoSolidityFiles = errors.New("archive contains no Solidity (.sol) files")
)

// ErrNotFound: missing job id. Store I/O failures are distinct errors and must
// never be collapsed into this one.
var ErrNotFound = errors.New("job not found")

// ErrQueueFull: worker queue saturated, caller should retry later.
var ErrQueueFull = errors.New("audit queue is full")

// ErrAllProducersFailed: every configured producer was unavailable. The job is
// failed instead of completing with a misleading clean report.
var ErrAllProducersFailed = errors.New("all analyzers failed")
