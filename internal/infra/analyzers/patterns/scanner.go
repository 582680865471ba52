package patterns

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"

	domain "github.com/lintora/lintora/internal/domain/audits"
)

// rule adalah satu Solidity vulnerability pattern.
type rule struct {
	id             string
	name           string
	pattern        *regexp.Regexp
	severity       domain.Severity
	category       domain.Category
	description    string
	recommendation string
	swcID          string
	// lineFilter, when set, can veto a match based on the matched line.
	// RE2 has no lookahead so a couple of rules post-filter instead.
	lineFilter func(line string) bool
}

var rules = []rule{
	{
		id:             "SOL-001",
		name:           "Potential Reentrancy",
		pattern:        regexp.MustCompile(`(?i)\.call\{.*value.*\}|\.call\.value\(|\.send\(|\.transfer\(`),
		severity:       domain.SeverityHigh,
		category:       domain.CategoryReentrancy,
		description:    "External call detected. If state is modified after this call, reentrancy may be possible.",
		recommendation: "Use the checks-effects-interactions pattern. Update state before external calls.",
		swcID:          "SWC-107",
	},
	{
		id:             "SOL-002",
		name:           "tx.origin Authentication",
		pattern:        regexp.MustCompile(`\btx\.origin\b`),
		severity:       domain.SeverityHigh,
		category:       domain.CategoryAccessControl,
		description:    "tx.origin used for authorization. This is vulnerable to phishing attacks.",
		recommendation: "Use msg.sender instead of tx.origin for authentication.",
		swcID:          "SWC-115",
	},
	{
		id:             "SOL-003",
		name:           "Selfdestruct Usage",
		pattern:        regexp.MustCompile(`\bselfdestruct\s*\(|\bsuicide\s*\(`),
		severity:       domain.SeverityCritical,
		category:       domain.CategoryDangerousFunction,
		description:    "selfdestruct can permanently destroy the contract and send funds to an arbitrary address.",
		recommendation: "Remove selfdestruct or add strict access controls and consider using a withdrawal pattern instead.",
		swcID:          "SWC-106",
	},
	{
		id:             "SOL-004",
		name:           "Delegatecall Usage",
		pattern:        regexp.MustCompile(`\.delegatecall\s*\(`),
		severity:       domain.SeverityHigh,
		category:       domain.CategoryUpgradeRisk,
		description:    "delegatecall executes code in the context of the calling contract. Improper use can lead to storage corruption.",
		recommendation: "Ensure delegatecall targets are trusted and immutable. Consider using well-audited proxy patterns.",
		swcID:          "SWC-112",
	},
	{
		id:             "SOL-005",
		name:           "Unchecked Low-Level Call",
		pattern:        regexp.MustCompile(`\.call\s*\(`),
		severity:       domain.SeverityMedium,
		category:       domain.CategoryUncheckedReturn,
		description:    "Low-level call without checking return value. Failed calls will not revert.",
		recommendation: "Always check the return value of low-level calls: (bool success, ) = addr.call(...); require(success);",
		swcID:          "SWC-104",
		lineFilter: func(line string) bool {
			// a call whose result is assigned or required is considered checked
			return !strings.Contains(line, "=") && !strings.Contains(line, "require")
		},
	},
	{
		id:             "SOL-006",
		name:           "Timestamp Dependence",
		pattern:        regexp.MustCompile(`\bblock\.timestamp\b|\bnow\b`),
		severity:       domain.SeverityLow,
		category:       domain.CategoryFrontRunning,
		description:    "Block timestamp can be manipulated by miners within ~15 seconds.",
		recommendation: "Avoid using block.timestamp for critical logic. Use block numbers for time-sensitive operations.",
		swcID:          "SWC-116",
	},
	{
		id:             "SOL-007",
		name:           "Owner Withdrawal Pattern",
		pattern:        regexp.MustCompile(`(?s)(onlyOwner|owner\s*==\s*msg\.sender).*?\n.*?\.(transfer|send|call)`),
		severity:       domain.SeverityMedium,
		category:       domain.CategoryCentralization,
		description:    "Owner can withdraw funds. This is a centralization risk if not properly governed.",
		recommendation: "Consider using a timelock, multisig, or DAO governance for fund withdrawals.",
	},
	{
		id:             "SOL-008",
		name:           "Arbitrary External Call",
		pattern:        regexp.MustCompile(`address\s*\([^)]+\)\.call\s*\(`),
		severity:       domain.SeverityHigh,
		category:       domain.CategoryDangerousFunction,
		description:    "External call to arbitrary address. This can be exploited if the address is user-controlled.",
		recommendation: "Validate and whitelist target addresses. Avoid calling arbitrary addresses.",
		swcID:          "SWC-107",
	},
	{
		id:             "SOL-009",
		name:           "Potential Integer Overflow",
		pattern:        regexp.MustCompile(`pragma\s+solidity\s+[\^~]?0\.[0-7]\.\d+`),
		severity:       domain.SeverityHigh,
		category:       domain.CategoryIntegerOverflow,
		description:    "Solidity version <0.8.0 does not have built-in overflow checks.",
		recommendation: "Upgrade to Solidity >=0.8.0 or use SafeMath library for arithmetic operations.",
		swcID:          "SWC-101",
	},
	{
		id:             "SOL-010",
		name:           "Unprotected Initializer",
		pattern:        regexp.MustCompile(`function\s+initialize\s*\([^)]*\)\s*(?:public|external)`),
		severity:       domain.SeverityCritical,
		category:       domain.CategoryAccessControl,
		description:    "Initializer function without protection. Can be called multiple times or by anyone.",
		recommendation: "Use OpenZeppelin's Initializable contract with the initializer modifier.",
		lineFilter: func(line string) bool {
			return !strings.Contains(line, "initializer")
		},
	},
}

// Scanner adalah in-process heuristic producer. Selalu available.
type Scanner struct{}

func NewScanner() *Scanner { return &Scanner{} }

func (s *Scanner) Name() string    { return "heuristic" }
func (s *Scanner) Available() bool { return true }

// Analyze implements domain.Producer.
func (s *Scanner) Analyze(ctx context.Context, ws *domain.Workspace) ([]domain.Finding, error) {
	var findings []domain.Finding
	for _, f := range ws.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		findings = append(findings, ScanFile(f.Rel, f.Content)...)
	}
	return findings, nil
}

// ScanFile runs every rule against one Solidity source.
func ScanFile(relPath, content string) []domain.Finding {
	var findings []domain.Finding
	for _, r := range rules {
		for _, loc := range r.pattern.FindAllStringIndex(content, -1) {
			lineNum := strings.Count(content[:loc[0]], "\n") + 1
			if r.lineFilter != nil && !r.lineFilter(lineAt(content, loc[0])) {
				continue
			}
			findings = append(findings, domain.Finding{
				ID:             r.id + "-" + uuid.NewString()[:8],
				Severity:       r.severity,
				Category:       r.category,
				Title:          r.name,
				Description:    r.description,
				FilePath:       relPath,
				LineNumber:     lineNum,
				Source:         domain.SourceHeuristic,
				Recommendation: r.recommendation,
				SWCID:          r.swcID,
			})
		}
	}
	return findings
}

func lineAt(content string, offset int) string {
	start := strings.LastIndexByte(content[:offset], '\n') + 1
	end := strings.IndexByte(content[offset:], '\n')
	if end < 0 {
		return content[start:]
	}
	return content[start : offset+end]
}
