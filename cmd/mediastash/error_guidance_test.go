package main

import (
	"fmt"
	"strings"
	"testing"

	"mediastash/internal/remote"
	"mediastash/internal/store"
)

func TestFormatCLIErrorDuplicate(t *testing.T) {
	err := fmt.Errorf("adding file: %w", store.ErrDuplicateHash)
	lines := formatCLIError(err)
	if len(lines) < 2 {
		t.Fatalf("expected hint line, got %v", lines)
	}
	if !strings.Contains(lines[1], "mediastash search") {
		t.Fatalf("expected search hint, got %q", lines[1])
	}
}

func TestFormatCLIErrorRateLimited(t *testing.T) {
	lines := formatCLIError(fmt.Errorf("fetch: %w", remote.ErrRateLimited))
	if len(lines) < 2 || !strings.Contains(lines[1], "throttling") {
		t.Fatalf("expected throttling hint, got %v", lines)
	}
}

func TestFormatCLIErrorAPIAuth(t *testing.T) {
	lines := formatCLIError(&remote.APIError{Status: 401, Reason: "bad login"})
	found := false
	for _, line := range lines {
		if strings.Contains(line, "MEDIASTASH_API_USERNAME") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected credentials hint, got %v", lines)
	}
}

func TestFormatCLIErrorNil(t *testing.T) {
	if lines := formatCLIError(nil); lines != nil {
		t.Fatalf("expected nil, got %v", lines)
	}
}
