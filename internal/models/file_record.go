package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// GuildUsage tracks how often a file has been sent to one guild.
type GuildUsage struct {
	SendCount int64      `json:"send_count"`
	LastSent  *time.Time `json:"last_sent"`
}

// FileRecord is one tracked media file, keyed by content hash.
// A record may carry a secondary converted artifact produced by
// compression; the converted fields are set and cleared together.
type FileRecord struct {
	ID            int64                 `json:"id"`
	FileHash      string                `json:"file_hash"`
	FilePath      string                `json:"file_path"`
	FileSize      int64                 `json:"file_size"`
	ConvertedPath string                `json:"converted_path,omitempty"`
	ConvertedHash string                `json:"converted_hash,omitempty"`
	ConvertedSize *int64                `json:"converted_size,omitempty"`
	Category      string                `json:"category"`
	GuildUsage    map[string]GuildUsage `json:"guild_usage"`
	CreatedAt     time.Time             `json:"created_at"`
}

var hashPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// IsContentHash reports whether raw looks like a hex content digest.
func IsContentHash(raw string) bool {
	return hashPattern.MatchString(strings.ToLower(strings.TrimSpace(raw)))
}

// Validate checks structural record invariants before persistence.
func (r *FileRecord) Validate() error {
	if r == nil {
		return fmt.Errorf("file record is required")
	}
	if !IsContentHash(r.FileHash) {
		return fmt.Errorf("invalid file_hash %q", r.FileHash)
	}
	if strings.TrimSpace(r.FilePath) == "" {
		return fmt.Errorf("file_path is required")
	}
	if r.FileSize < 0 {
		return fmt.Errorf("file_size out of range: %d", r.FileSize)
	}
	if strings.TrimSpace(r.Category) == "" {
		return fmt.Errorf("category is required")
	}
	if r.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	return r.validateConverted()
}

func (r *FileRecord) validateConverted() error {
	hasPath := strings.TrimSpace(r.ConvertedPath) != ""
	hasHash := strings.TrimSpace(r.ConvertedHash) != ""
	hasSize := r.ConvertedSize != nil

	if !hasPath && !hasHash && !hasSize {
		return nil
	}
	if !hasPath || !hasHash || !hasSize {
		return fmt.Errorf("converted fields must be set together")
	}
	if !IsContentHash(r.ConvertedHash) {
		return fmt.Errorf("invalid converted_hash %q", r.ConvertedHash)
	}
	if *r.ConvertedSize < 0 {
		return fmt.Errorf("converted_size out of range: %d", *r.ConvertedSize)
	}
	return nil
}

// HasConverted reports whether the record carries a complete converted artifact.
func (r *FileRecord) HasConverted() bool {
	return r.ConvertedPath != "" && r.ConvertedHash != "" && r.ConvertedSize != nil
}

// SendCount returns the send counter for one guild, zero when absent.
func (r *FileRecord) SendCount(guildID string) int64 {
	usage, ok := r.GuildUsage[guildID]
	if !ok {
		return 0
	}
	return usage.SendCount
}
