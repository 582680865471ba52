package audits

import "sort"

// sourcePriority: when two producers report the same issue, the more precise
// engine wins. Symbolic execution beats dataflow beats the AI reviewer beats
// the regex heuristics.
var sourcePriority = map[Source]int{
	SourceMythril:   4,
	SourceSlither:   3,
	SourceAI:        2,
	SourceHeuristic: 1,
}

type dedupeKey struct {
	filePath   string
	lineBucket int
	category   Category
}

// MergeFindings concatenates per-producer findings (caller passes them in
// fixed producer order), removes duplicates and returns the list sorted by
// severity descending. Ties keep insertion order (producer order, then
// emission order), so re-running the merge on the same inputs yields an
// identical list.
func MergeFindings(perProducer ...[]Finding) []Finding {
	var all []Finding
	for _, fs := range perProducer {
		all = append(all, fs...)
	}

	// Findings within 5 lines of each other in the same file and category are
	// considered one issue; keep the highest-priority source.
	best := make(map[dedupeKey]int, len(all))
	for i, f := range all {
		key := dedupeKey{f.FilePath, f.LineNumber / 5, f.Category}
		if j, ok := best[key]; ok {
			if sourcePriority[f.Source] > sourcePriority[all[j].Source] {
				best[key] = i
			}
			continue
		}
		best[key] = i
	}

	keep := make(map[int]bool, len(best))
	for _, i := range best {
		keep[i] = true
	}

	merged := make([]Finding, 0, len(best))
	for i, f := range all {
		if keep[i] {
			merged = append(merged, f)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Severity.Rank() > merged[j].Severity.Rank()
	})
	return merged
}

// BuildSummary derives the severity distribution from a merged finding list.
func BuildSummary(findings []Finding, filesScanned, solidityFiles int, analyzersUsed []string) Summary {
	s := Summary{
		TotalFindings: len(findings),
		FilesScanned:  filesScanned,
		SolidityFiles: solidityFiles,
		AnalyzersUsed: analyzersUsed,
	}
	for _, f := range findings {
		switch f.Severity {
		case SeverityCritical:
			s.Critical++
		case SeverityHigh:
			s.High++
		case SeverityMedium:
			s.Medium++
		case SeverityLow:
			s.Low++
		case SeverityInfo:
			s.Info++
		}
	}
	return s
}

// RiskThresholds makes the risk-level mapping tunable per deployment.
type RiskThresholds struct {
	HighMinHigh     int `yaml:"highMinHigh"`     // high findings needed for HIGH risk
	MediumMinHigh   int `yaml:"mediumMinHigh"`   // high findings needed for MEDIUM risk
	MediumMinMedium int `yaml:"mediumMinMedium"` // medium findings needed for MEDIUM risk
}

// DefaultRiskThresholds matches the published behaviour of the service.
func DefaultRiskThresholds() RiskThresholds {
	return RiskThresholds{HighMinHigh: 2, MediumMinHigh: 1, MediumMinMedium: 3}
}

// CalculateRiskLevel maps a severity distribution to a coarse risk label.
// Monotonic: adding findings can only raise the level.
func CalculateRiskLevel(s Summary, th RiskThresholds) string {
	switch {
	case s.Critical > 0:
		return "CRITICAL"
	case s.High >= th.HighMinHigh:
		return "HIGH"
	case s.High >= th.MediumMinHigh || s.Medium >= th.MediumMinMedium:
		return "MEDIUM"
	default:
		return "LOW"
	}
}
