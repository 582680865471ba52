package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateJobID(t *testing.T) {
	assert.NoError(t, ValidateJobID("0123456789abcdef0123456789abcdef"))
	assert.Error(t, ValidateJobID(""))
	assert.Error(t, ValidateJobID("not-a-job-id"))
	assert.Error(t, ValidateJobID("0123456789ABCDEF0123456789ABCDEF"))
	assert.Error(t, ValidateJobID("../../etc/passwd"))
}

func TestValidateProjectName(t *testing.T) {
	assert.NoError(t, ValidateProjectName("my-vault_v2.1"))
	assert.NoError(t, ValidateProjectName("Token Sale"))
	assert.Error(t, ValidateProjectName(""))
	assert.Error(t, ValidateProjectName("<script>alert(1)</script>"))
	assert.Error(t, ValidateProjectName(string(make([]byte, 101))))
}

func TestValidateLimitClampsRange(t *testing.T) {
	assert.Equal(t, 20, ValidateLimit(0))
	assert.Equal(t, 20, ValidateLimit(-5))
	assert.Equal(t, 7, ValidateLimit(7))
	assert.Equal(t, 100, ValidateLimit(5000))
}

func TestProjectNameFromFilename(t *testing.T) {
	assert.Equal(t, "my-project", ProjectNameFromFilename("my-project.zip"))
	assert.Equal(t, "contracts", ProjectNameFromFilename("/tmp/upload/contracts.zip"))
	assert.Equal(t, "untitled", ProjectNameFromFilename(""))
	assert.NotContains(t, ProjectNameFromFilename("weird$(name).zip"), "$(")
}
