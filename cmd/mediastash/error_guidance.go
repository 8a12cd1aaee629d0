package main

import (
	"context"
	"errors"
	"net"

	"mediastash/internal/remote"
	"mediastash/internal/service"
	"mediastash/internal/store"
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	if errors.Is(err, store.ErrDuplicateHash) {
		lines = append(lines, "hint: identical content is already tracked; use 'mediastash search' to find it.")
		return uniqueLines(lines)
	}
	if errors.Is(err, service.ErrUnknownCategory) {
		lines = append(lines, "hint: list configured categories with: mediastash config get data_dir")
		return uniqueLines(lines)
	}
	if errors.Is(err, remote.ErrRateLimited) {
		lines = append(lines, "hint: the remote API is throttling; wait before retrying.")
		return uniqueLines(lines)
	}

	var apiErr *remote.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case 401, 403:
			lines = append(lines, "hint: verify MEDIASTASH_API_USERNAME and MEDIASTASH_API_KEY configuration.")
		}
		if apiErr.Status >= 500 {
			lines = append(lines, "hint: remote server error; retry later.")
		}
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; check connectivity to the remote API.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines, "hint: verify MEDIASTASH_API_BASE_URL points to a reachable server.")
		return uniqueLines(lines)
	}

	return uniqueLines(lines)
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
