package mythril

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os/exec"
	"strconv"
	"strings"

	"github.com/google/uuid"

	domain "github.com/lintora/lintora/internal/domain/audits"
)

// Analyzer wraps the Mythril symbolic execution engine (the `myth` CLI).
// Symbolic execution is CPU-heavy and can run for minutes per contract, so
// every invocation goes through exec.CommandContext and inherits the
// orchestrator's producer timeout.
type Analyzer struct {
	Bin              string
	Enabled          bool
	ExecutionTimeout int // seconds, passed to myth --execution-timeout
	MaxDepth         int
}

func NewAnalyzer(bin string, enabled bool, executionTimeout, maxDepth int) *Analyzer {
	return &Analyzer{Bin: bin, Enabled: enabled, ExecutionTimeout: executionTimeout, MaxDepth: maxDepth}
}

func (a *Analyzer) Name() string { return "mythril" }

func (a *Analyzer) Available() bool {
	if !a.Enabled {
		return false
	}
	_, err := exec.LookPath(a.Bin)
	return err == nil
}

// Analyze implements domain.Producer. Runs myth per Solidity file and
// aggregates the issues.
func (a *Analyzer) Analyze(ctx context.Context, ws *domain.Workspace) ([]domain.Finding, error) {
	var findings []domain.Finding
	for _, f := range ws.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cmd := exec.CommandContext(ctx, a.Bin, "analyze", f.Path,
			"-o", "json",
			"--execution-timeout", strconv.Itoa(a.ExecutionTimeout),
			"--max-depth", strconv.Itoa(a.MaxDepth),
		)
		out, err := cmd.Output()
		if err != nil {
			// myth exits non-zero when it finds issues; only a missing/broken
			// JSON payload is a real failure
			if _, ok := err.(*exec.ExitError); !ok {
				return nil, fmt.Errorf("mythril: %w", err)
			}
			if len(out) == 0 {
				return nil, fmt.Errorf("mythril: %w", err)
			}
		}

		fs, perr := ParseOutput(f.Rel, out)
		if perr != nil {
			return nil, perr
		}
		findings = append(findings, fs...)
	}
	log.Printf("mythril: %d findings from %d files", len(findings), len(ws.Files))
	return findings, nil
}

// mythOutput adalah JSON report format dari `myth analyze -o json`.
type mythOutput struct {
	Success bool    `json:"success"`
	Error   *string `json:"error"`
	Issues  []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Severity    string `json:"severity"`
		SWCID       string `json:"swc-id"`
		Lineno      int    `json:"lineno"`
	} `json:"issues"`
}

// SWC id → category/severity, from the SWC registry subset Mythril reports.
var swcCategory = map[string]domain.Category{
	"SWC-101": domain.CategoryIntegerOverflow,
	"SWC-104": domain.CategoryUncheckedReturn,
	"SWC-106": domain.CategoryDangerousFunction,
	"SWC-107": domain.CategoryReentrancy,
	"SWC-110": domain.CategoryDenialOfService,
	"SWC-112": domain.CategoryUpgradeRisk,
	"SWC-115": domain.CategoryAccessControl,
	"SWC-116": domain.CategoryFrontRunning,
}

var swcSeverity = map[string]domain.Severity{
	"SWC-101": domain.SeverityHigh,
	"SWC-104": domain.SeverityMedium,
	"SWC-106": domain.SeverityCritical,
	"SWC-107": domain.SeverityHigh,
	"SWC-110": domain.SeverityMedium,
	"SWC-112": domain.SeverityHigh,
	"SWC-115": domain.SeverityHigh,
	"SWC-116": domain.SeverityLow,
}

// ParseOutput converts one myth JSON report into findings for relPath.
func ParseOutput(relPath string, out []byte) ([]domain.Finding, error) {
	var doc mythOutput
	if err := json.Unmarshal(out, &doc); err != nil {
		return nil, fmt.Errorf("mythril: malformed output: %w", err)
	}
	if doc.Error != nil && *doc.Error != "" {
		return nil, fmt.Errorf("mythril: %s", *doc.Error)
	}

	findings := make([]domain.Finding, 0, len(doc.Issues))
	for _, iss := range doc.Issues {
		swc := normalizeSWC(iss.SWCID)

		sev, ok := swcSeverity[swc]
		if !ok {
			sev = mythSeverity(iss.Severity)
		}
		cat, ok := swcCategory[swc]
		if !ok {
			cat = domain.CategoryOther
		}

		findings = append(findings, domain.Finding{
			ID:          "MYTH-" + uuid.NewString()[:8],
			Severity:    sev,
			Category:    cat,
			Title:       iss.Title,
			Description: iss.Description,
			FilePath:    relPath,
			LineNumber:  iss.Lineno,
			Source:      domain.SourceMythril,
			SWCID:       swc,
		})
	}
	return findings, nil
}

// myth reports bare numeric ids ("107") in newer releases
func normalizeSWC(id string) string {
	if id == "" {
		return ""
	}
	if strings.HasPrefix(id, "SWC-") {
		return id
	}
	return "SWC-" + id
}

func mythSeverity(s string) domain.Severity {
	switch strings.ToLower(s) {
	case "high":
		return domain.SeverityHigh
	case "medium":
		return domain.SeverityMedium
	case "low":
		return domain.SeverityLow
	}
	return domain.SeverityMedium
}
