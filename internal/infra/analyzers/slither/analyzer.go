package slither

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	domain "github.com/lintora/lintora/internal/domain/audits"
)

// Analyzer wraps the Slither dataflow/pattern engine. Slither runs once over
// the whole workspace and prints a JSON report to stdout with `--json -`.
type Analyzer struct {
	Bin     string
	Enabled bool
}

func NewAnalyzer(bin string, enabled bool) *Analyzer {
	return &Analyzer{Bin: bin, Enabled: enabled}
}

func (a *Analyzer) Name() string { return "slither" }

func (a *Analyzer) Available() bool {
	if !a.Enabled {
		return false
	}
	_, err := exec.LookPath(a.Bin)
	return err == nil
}

// Analyze implements domain.Producer.
func (a *Analyzer) Analyze(ctx context.Context, ws *domain.Workspace) ([]domain.Finding, error) {
	cmd := exec.CommandContext(ctx, a.Bin, ws.Root, "--json", "-")
	cmd.Dir = ws.Root

	out, err := cmd.Output()
	if err != nil {
		// slither exits non-zero when detectors fire; the JSON on stdout is
		// still the result
		if _, ok := err.(*exec.ExitError); !ok || len(out) == 0 {
			return nil, fmt.Errorf("slither: %w", err)
		}
	}

	findings, perr := ParseOutput(out)
	if perr != nil {
		return nil, perr
	}
	log.Printf("slither: %d findings from %d files", len(findings), len(ws.Files))
	return findings, nil
}

type slitherOutput struct {
	Success bool    `json:"success"`
	Error   *string `json:"error"`
	Results struct {
		Detectors []struct {
			Check       string `json:"check"`
			Impact      string `json:"impact"`
			Confidence  string `json:"confidence"`
			Description string `json:"description"`
			Elements    []struct {
				SourceMapping struct {
					FilenameRelative string `json:"filename_relative"`
					Lines            []int  `json:"lines"`
				} `json:"source_mapping"`
			} `json:"elements"`
		} `json:"detectors"`
	} `json:"results"`
}

// checkCategory maps the slither detector ids we care about; anything else is
// classified "other".
var checkCategory = map[string]domain.Category{
	"reentrancy-eth":         domain.CategoryReentrancy,
	"reentrancy-no-eth":      domain.CategoryReentrancy,
	"reentrancy-benign":      domain.CategoryReentrancy,
	"reentrancy-events":      domain.CategoryReentrancy,
	"arbitrary-send-eth":     domain.CategoryDangerousFunction,
	"suicidal":               domain.CategoryDangerousFunction,
	"controlled-delegatecall": domain.CategoryUpgradeRisk,
	"delegatecall-loop":      domain.CategoryUpgradeRisk,
	"tx-origin":              domain.CategoryAccessControl,
	"unprotected-upgrade":    domain.CategoryAccessControl,
	"unchecked-lowlevel":     domain.CategoryUncheckedReturn,
	"unchecked-send":         domain.CategoryUncheckedReturn,
	"unchecked-transfer":     domain.CategoryUncheckedReturn,
	"timestamp":              domain.CategoryFrontRunning,
	"locked-ether":           domain.CategoryDenialOfService,
	"calls-loop":             domain.CategoryDenialOfService,
	"incorrect-equality":     domain.CategoryLogicError,
	"divide-before-multiply": domain.CategoryLogicError,
}

// ParseOutput converts a slither JSON report into findings.
func ParseOutput(out []byte) ([]domain.Finding, error) {
	var doc slitherOutput
	if err := json.Unmarshal(out, &doc); err != nil {
		return nil, fmt.Errorf("slither: malformed output: %w", err)
	}
	if doc.Error != nil && *doc.Error != "" {
		return nil, fmt.Errorf("slither: %s", *doc.Error)
	}

	var findings []domain.Finding
	for _, d := range doc.Results.Detectors {
		file := ""
		line := 0
		if len(d.Elements) > 0 {
			sm := d.Elements[0].SourceMapping
			file = filepath.ToSlash(sm.FilenameRelative)
			if len(sm.Lines) > 0 {
				line = sm.Lines[0]
			}
		}

		cat, ok := checkCategory[d.Check]
		if !ok {
			cat = domain.CategoryOther
		}

		findings = append(findings, domain.Finding{
			ID:          "SLITH-" + uuid.NewString()[:8],
			Severity:    impactSeverity(d.Impact),
			Category:    cat,
			Title:       d.Check,
			Description: strings.TrimSpace(d.Description),
			FilePath:    file,
			LineNumber:  line,
			Source:      domain.SourceSlither,
		})
	}
	return findings, nil
}

func impactSeverity(impact string) domain.Severity {
	switch strings.ToLower(impact) {
	case "high":
		return domain.SeverityHigh
	case "medium":
		return domain.SeverityMedium
	case "low":
		return domain.SeverityLow
	case "informational", "optimization":
		return domain.SeverityInfo
	}
	return domain.SeverityMedium
}
