package patterns

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/lintora/lintora/internal/domain/audits"
)

// Classic checks-effects-interactions violation: balance is decremented after
// the external call.
const vulnerableVault = `// SPDX-License-Identifier: MIT
pragma solidity ^0.7.6;

contract Vault {
    mapping(address => uint256) public balances;

    function deposit() external payable {
        balances[msg.sender] += msg.value;
    }

    function withdraw(uint256 amount) external {
        require(balances[msg.sender] >= amount, "insufficient");
        (bool success, ) = msg.sender.call{value: amount}("");
        require(success, "transfer failed");
        balances[msg.sender] -= amount;
    }
}
`

func TestScanFileFindsReentrancy(t *testing.T) {
	findings := ScanFile("contracts/Vault.sol", vulnerableVault)
	require.NotEmpty(t, findings)

	var reentrancy *domain.Finding
	for i := range findings {
		if findings[i].Category == domain.CategoryReentrancy {
			reentrancy = &findings[i]
			break
		}
	}
	require.NotNil(t, reentrancy, "expected a reentrancy finding")
	assert.Equal(t, domain.SeverityHigh, reentrancy.Severity)
	assert.Equal(t, domain.SourceHeuristic, reentrancy.Source)
	assert.Equal(t, "contracts/Vault.sol", reentrancy.FilePath)
	assert.Greater(t, reentrancy.LineNumber, 0)
	assert.Contains(t, reentrancy.Description, "reentrancy")
}

func TestScanFileFindsPre080Pragma(t *testing.T) {
	findings := ScanFile("a.sol", vulnerableVault)
	var hit bool
	for _, f := range findings {
		if f.Category == domain.CategoryIntegerOverflow {
			hit = true
			assert.Equal(t, "SWC-101", f.SWCID)
			assert.Equal(t, 2, f.LineNumber)
		}
	}
	assert.True(t, hit, "pragma 0.7.x should trigger the overflow rule")
}

func TestScanFileSelfdestructIsCritical(t *testing.T) {
	src := "contract Kill { function kill() external { selfdestruct(payable(msg.sender)); } }"
	findings := ScanFile("kill.sol", src)

	require.NotEmpty(t, findings)
	var critical bool
	for _, f := range findings {
		if f.Category == domain.CategoryDangerousFunction && f.Severity == domain.SeverityCritical {
			critical = true
		}
	}
	assert.True(t, critical)
}

func TestScanFileTxOrigin(t *testing.T) {
	src := "contract A { function f() external { require(tx.origin == msg.sender); } }"
	findings := ScanFile("a.sol", src)

	require.NotEmpty(t, findings)
	assert.Equal(t, domain.CategoryAccessControl, findings[0].Category)
	assert.Equal(t, "SWC-115", findings[0].SWCID)
}

func TestScanFileCleanContract(t *testing.T) {
	src := `pragma solidity ^0.8.20;

contract Counter {
    uint256 public count;

    function increment() external {
        count += 1;
    }
}
`
	assert.Empty(t, ScanFile("counter.sol", src))
}

func TestUncheckedCallFilterSkipsCheckedCalls(t *testing.T) {
	checked := `contract A { function f(address a) external { (bool ok, ) = a.call(""); require(ok); } }`
	for _, f := range ScanFile("a.sol", checked) {
		assert.NotEqual(t, domain.CategoryUncheckedReturn, f.Category)
	}

	unchecked := "contract A { function f(address a) external { a.call(\"\"); } }"
	var hit bool
	for _, f := range ScanFile("a.sol", unchecked) {
		if f.Category == domain.CategoryUncheckedReturn {
			hit = true
		}
	}
	assert.True(t, hit)
}

func TestScannerProducer(t *testing.T) {
	s := NewScanner()
	assert.Equal(t, "heuristic", s.Name())
	assert.True(t, s.Available())

	ws := &domain.Workspace{
		Files: []domain.SourceFile{{Rel: "contracts/Vault.sol", Content: vulnerableVault}},
	}
	findings, err := s.Analyze(context.Background(), ws)
	require.NoError(t, err)
	assert.NotEmpty(t, findings)
}

func TestScannerHonoursContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewScanner()
	ws := &domain.Workspace{Files: []domain.SourceFile{{Rel: "a.sol", Content: "contract A {}"}}}
	_, err := s.Analyze(ctx, ws)
	assert.ErrorIs(t, err, context.Canceled)
}
