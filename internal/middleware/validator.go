package middleware

import (
	"fmt"
	"regexp"
	"strings"
)

// Input validation and sanitization utilities

var projectNamePattern = regexp.MustCompile(`^[a-zA-Z0-9 ._-]{1,255}$`)

// ValidateProjectName checks the uploaded project name is plain and bounded.
func ValidateProjectName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("project name cannot be empty")
	}
	if !projectNamePattern.MatchString(name) {
		return fmt.Errorf("invalid project name (alphanumeric, space, dot, dash, underscore only, max 255 chars)")
	}
	return nil
}

// ValidateScanner checks a scanner filter value ("" and "all" mean no filter).
func ValidateScanner(scanner string) error {
	if scanner == "" || scanner == "all" {
		return nil
	}
	allowed := map[string]bool{
		"Slither": true,
		"Aderyn":  true,
		"Wake":    true,
	}
	if !allowed[scanner] {
		return fmt.Errorf("invalid scanner: %s (allowed: Slither, Aderyn, Wake)", scanner)
	}
	return nil
}

// ValidateLevel checks a severity filter value ("" and "all" mean no filter).
func ValidateLevel(level string) error {
	if level == "" || level == "all" {
		return nil
	}
	allowed := map[string]bool{
		"CRITICAL": true,
		"HIGH":     true,
		"MEDIUM":   true,
		"LOW":      true,
		"INFO":     true,
	}
	if !allowed[level] {
		return fmt.Errorf("invalid level: %s (allowed: CRITICAL, HIGH, MEDIUM, LOW, INFO)", level)
	}
	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}
