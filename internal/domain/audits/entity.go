package audits

import (
	"time"
)

// ID tipe untuk audit Job
type JobID string

// Status enum
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Severity enum
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Rank orders severities, highest first. Unknown severities sort last.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	case SeverityInfo:
		return 1
	}
	return 0
}

// ParseSeverity normalizes a producer-reported severity string.
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		return Severity(s)
	}
	if s == "informational" {
		return SeverityInfo
	}
	return SeverityMedium
}

// Category enum untuk finding classification
type Category string

const (
	CategoryReentrancy        Category = "reentrancy"
	CategoryAccessControl     Category = "access_control"
	CategoryIntegerOverflow   Category = "integer_overflow"
	CategoryUncheckedReturn   Category = "unchecked_return"
	CategoryDenialOfService   Category = "denial_of_service"
	CategoryFrontRunning      Category = "front_running"
	CategoryLogicError        Category = "logic_error"
	CategoryCentralization    Category = "centralization"
	CategoryUpgradeRisk       Category = "upgrade_risk"
	CategoryDangerousFunction Category = "dangerous_function"
	CategoryOther             Category = "other"
)

// Source enum: which producer emitted a finding
type Source string

const (
	SourceHeuristic Source = "heuristic"
	SourceMythril   Source = "mythril"
	SourceSlither   Source = "slither"
	SourceAI        Source = "ai"
)

// Finding adalah satu reported security issue. Immutable once created.
type Finding struct {
	ID             string   `json:"id"`
	Severity       Severity `json:"severity"`
	Category       Category `json:"category"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	FilePath       string   `json:"file_path"`
	LineNumber     int      `json:"line_number,omitempty"`
	Source         Source   `json:"source"`
	Recommendation string   `json:"recommendation,omitempty"`
	SWCID          string   `json:"swc_id,omitempty"`
}

// Summary value object untuk report statistics
type Summary struct {
	TotalFindings int      `json:"total_findings"`
	Critical      int      `json:"critical"`
	High          int      `json:"high"`
	Medium        int      `json:"medium"`
	Low           int      `json:"low"`
	Info          int      `json:"info"`
	FilesScanned  int      `json:"files_scanned"`
	SolidityFiles int      `json:"solidity_files"`
	AnalyzersUsed []string `json:"analyzers_used"`
}

// Report adalah terminal artifact dari completed job. Read-only setelah dibuat.
type Report struct {
	ProjectName string    `json:"project_name"`
	Timestamp   time.Time `json:"timestamp"`
	CodeHash    string    `json:"code_hash"`
	RiskLevel   string    `json:"risk_level"`
	Summary     Summary   `json:"summary"`
	Findings    []Finding `json:"findings"`
	Signature   string    `json:"signature,omitempty"`
	PublicKey   string    `json:"public_key,omitempty"`
}

// Aggregate Root: Job
type Job struct {
	ID          JobID     `json:"job_id"`
	ProjectName string    `json:"project_name"`
	CodeHash    string    `json:"code_hash"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	Error       string    `json:"error,omitempty"`
	Report      *Report   `json:"report,omitempty"`
	ArtifactURL string    `json:"artifact_url,omitempty"`
}

// SourceFile adalah satu extracted Solidity file di dalam workspace.
type SourceFile struct {
	Path    string // absolute path inside the workspace
	Rel     string // path relative to the workspace root, as shown in reports
	Content string
}

// Workspace adalah per-job sandbox directory. Written once by intake,
// read-only to all producers afterwards.
type Workspace struct {
	Root       string
	Files      []SourceFile // .sol files only
	TotalFiles int          // every file seen in the archive, not just .sol
}
