package middleware

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Input validation and sanitization utilities

var (
	jobIDPattern       = regexp.MustCompile(`^[0-9a-f]{32}$`)
	projectNamePattern = regexp.MustCompile(`^[\w .\-]+$`)
)

// ValidateJobID checks the path parameter before it reaches the store. Job ids
// are 32 lowercase hex characters, anything else is a client error.
func ValidateJobID(id string) error {
	if !jobIDPattern.MatchString(id) {
		return fmt.Errorf("invalid job id")
	}
	return nil
}

// ValidateProjectName rejects names that could be abused in logs or reports.
func ValidateProjectName(name string) error {
	if name == "" {
		return fmt.Errorf("project name cannot be empty")
	}
	if len(name) > 100 {
		return fmt.Errorf("project name too long (max 100 characters)")
	}
	if !projectNamePattern.MatchString(name) {
		return fmt.Errorf("project name contains invalid characters")
	}
	return nil
}

// ProjectNameFromFilename derives a display name from the uploaded archive
// filename when the client did not send one.
func ProjectNameFromFilename(filename string) string {
	base := filepath.Base(filename)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.' || r == ' ':
			return r
		}
		return '-'
	}, name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." {
		return "untitled"
	}
	if len(name) > 100 {
		name = name[:100]
	}
	return name
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}
