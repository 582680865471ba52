package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	domain "github.com/lintora/lintora/internal/domain/audits"
)

// GetSystemPrompt provides strict directions and schema for JSON output.
func GetSystemPrompt() string {
	return `You are an elite smart contract security auditor with deep expertise in Solidity, EVM internals, DeFi protocols, and blockchain security. You are performing a comprehensive security audit.

Your task is to identify REAL, EXPLOITABLE vulnerabilities that could lead to:
- Loss of funds
- Unauthorized access
- Contract manipulation
- Denial of service
- Front-running attacks

CRITICAL RULES:
1. Report ONLY genuine security vulnerabilities with HIGH confidence (95%+)
2. DO NOT report: gas optimizations, style issues, best practices, or standard patterns
3. DO NOT include source code snippets in your response
4. Be thorough but conservative - false positives damage trust

VULNERABILITY CATEGORIES:
- reentrancy: Reentrancy attacks
- access_control: Missing or weak access controls
- integer_overflow: Integer overflow/underflow
- unchecked_return: Unchecked external call returns
- denial_of_service: DoS vulnerabilities
- front_running: Front-running/MEV vulnerabilities
- logic_error: Business logic flaws
- centralization: Centralization risks
- upgrade_risk: Dangerous upgrade patterns
- other: Other security issues

For each vulnerability found, respond with a JSON array:
[{
    "severity": "critical" | "high" | "medium" | "low",
    "title": "Concise vulnerability title",
    "description": "How this vulnerability can be exploited and its impact",
    "line_number": <integer or null>,
    "category": "<category from above>",
    "recommendation": "Specific fix recommendation"
}]

If NO vulnerabilities are found, return: []

IMPORTANT: Respond with ONLY valid JSON, no markdown formatting, no explanations.`
}

// GetUserPrompt builds the audit request for one Solidity source file.
func GetUserPrompt(relPath, content string) string {
	return fmt.Sprintf("Perform a comprehensive security audit of this Solidity contract (%s):\n\n%s", relPath, content)
}

var categoryMap = map[string]domain.Category{
	"reentrancy":        domain.CategoryReentrancy,
	"access_control":    domain.CategoryAccessControl,
	"integer_overflow":  domain.CategoryIntegerOverflow,
	"unchecked_return":  domain.CategoryUncheckedReturn,
	"denial_of_service": domain.CategoryDenialOfService,
	"front_running":     domain.CategoryFrontRunning,
	"logic_error":       domain.CategoryLogicError,
	"centralization":    domain.CategoryCentralization,
	"upgrade_risk":      domain.CategoryUpgradeRisk,
	"other":             domain.CategoryOther,
}

type rawFinding struct {
	Severity       string `json:"severity"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	LineNumber     *int   `json:"line_number"`
	Category       string `json:"category"`
	Recommendation string `json:"recommendation"`
}

// ParseFindings extracts the JSON finding array from a model response.
// Models occasionally wrap the payload in markdown fences or chatter; strip
// both before unmarshalling.
func ParseFindings(relPath, response string) ([]domain.Finding, error) {
	text := strings.TrimSpace(response)
	if text == "" {
		return nil, nil
	}

	if i := strings.Index(text, "```json"); i >= 0 {
		text = text[i+len("```json"):]
		if j := strings.Index(text, "```"); j >= 0 {
			text = text[:j]
		}
	} else if i := strings.Index(text, "```"); i >= 0 {
		text = text[i+3:]
		if j := strings.Index(text, "```"); j >= 0 {
			text = text[:j]
		}
	}

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in response")
	}
	text = text[start : end+1]

	var raw []rawFinding
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("parse findings: %w", err)
	}

	findings := make([]domain.Finding, 0, len(raw))
	for _, r := range raw {
		cat, ok := categoryMap[strings.ToLower(r.Category)]
		if !ok {
			cat = domain.CategoryOther
		}
		title := r.Title
		if title == "" {
			title = "Security Finding"
		}
		line := 0
		if r.LineNumber != nil {
			line = *r.LineNumber
		}
		findings = append(findings, domain.Finding{
			ID:             "AI-" + uuid.NewString()[:8],
			Severity:       domain.ParseSeverity(strings.ToLower(r.Severity)),
			Category:       cat,
			Title:          title,
			Description:    r.Description,
			FilePath:       relPath,
			LineNumber:     line,
			Source:         domain.SourceAI,
			Recommendation: r.Recommendation,
		})
	}
	return findings, nil
}
