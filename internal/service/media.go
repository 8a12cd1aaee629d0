// Package service wires the store, filesystem, and compression
// pipeline into the operations a command layer calls.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"mediastash/internal/compress"
	"mediastash/internal/fsutil"
	"mediastash/internal/models"
	"mediastash/internal/store"
)

// ErrNotFound is returned when no record matches the request.
var ErrNotFound = errors.New("no matching file")

// ErrUnknownCategory is returned for categories absent from config.
var ErrUnknownCategory = errors.New("unknown category")

// Media orchestrates file intake, selection, and size enforcement.
type Media struct {
	store        *store.Store
	categories   map[string]string // category name -> directory
	convertedDir string
	maxFileSize  int64
	logger       *slog.Logger
}

// NewMedia builds a Media service. categories maps category names to
// their directories; convertedDir holds compressed artifacts after
// they are recorded.
func NewMedia(st *store.Store, categories map[string]string, convertedDir string, maxFileSize int64, logger *slog.Logger) *Media {
	if logger == nil {
		logger = slog.Default()
	}
	return &Media{
		store:        st,
		categories:   categories,
		convertedDir: convertedDir,
		maxFileSize:  maxFileSize,
		logger:       logger,
	}
}

// AddFile stores the reader's content under the category directory and
// records it. The written file is removed again when recording fails,
// so disk and database stay consistent.
func (m *Media) AddFile(ctx context.Context, r io.Reader, filename, category string) (*models.FileRecord, error) {
	dir, ok := m.categories[category]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	dst := filepath.Join(dir, filepath.Base(filename))
	if fsutil.FileExists(dst) {
		return nil, fmt.Errorf("file already exists: %s", dst)
	}

	digest, size, err := fsutil.WriteFileAtomic(dst, r)
	if err != nil {
		return nil, fmt.Errorf("writing %s: %w", dst, err)
	}

	rec := &models.FileRecord{
		FileHash:  digest,
		FilePath:  dst,
		FileSize:  size,
		Category:  category,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.store.InsertFile(ctx, rec); err != nil {
		if rmErr := fsutil.RemoveFile(dst); rmErr != nil {
			m.logger.Warn("could not remove file after failed insert", "path", dst, "error", rmErr)
		}
		return nil, err
	}
	m.logger.Info("file added", "path", dst, "hash", digest, "category", category, "size", size)
	return rec, nil
}

// RandomUnsent picks a random record the guild has not been sent yet.
func (m *Media) RandomUnsent(ctx context.Context, guildID, category string) (*models.FileRecord, error) {
	recs, err := m.store.ListUnsent(ctx, guildID, category)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: no unsent files in %s", ErrNotFound, category)
	}
	rec := recs[rand.IntN(len(recs))]
	return &rec, nil
}

// FindFile resolves an identifier to a record: content hash first, then
// exact path, then filename substring within the category.
func (m *Media) FindFile(ctx context.Context, identifier, category string) (*models.FileRecord, error) {
	if models.IsContentHash(identifier) {
		rec, err := m.store.GetByHash(ctx, identifier)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			return rec, nil
		}
	}

	rec, err := m.store.GetByPath(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		return rec, nil
	}

	matches, err := m.store.SearchByFilename(ctx, identifier)
	if err != nil {
		return nil, err
	}
	for i := range matches {
		if category == "" || matches[i].Category == category {
			return &matches[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, identifier)
}

// PreparedPath returns the path to send for a record. The converted
// artifact is used only when the original is over the size limit and
// the artifact itself fits; otherwise the original wins.
func (m *Media) PreparedPath(rec *models.FileRecord) string {
	if rec.FileSize > m.maxFileSize && rec.HasConverted() && *rec.ConvertedSize <= m.maxFileSize {
		if fsutil.FileExists(rec.ConvertedPath) {
			return rec.ConvertedPath
		}
		m.logger.Warn("converted artifact recorded but missing on disk", "path", rec.ConvertedPath)
	}
	return rec.FilePath
}

// EnsureUnderLimit returns a record whose PreparedPath fits the size
// limit, compressing the original when needed. The converted columns
// are written only after the artifact is hashed and in its final
// location.
func (m *Media) EnsureUnderLimit(ctx context.Context, rec *models.FileRecord) (*models.FileRecord, error) {
	if rec.FileSize <= m.maxFileSize {
		return rec, nil
	}
	if rec.HasConverted() && *rec.ConvertedSize <= m.maxFileSize && fsutil.FileExists(rec.ConvertedPath) {
		return rec, nil
	}

	artifact, err := compress.Compress(ctx, rec.FilePath, m.maxFileSize)
	if err != nil {
		return nil, fmt.Errorf("compressing %s: %w", rec.FilePath, err)
	}

	digest, err := fsutil.HashFile(artifact)
	if err != nil {
		return nil, err
	}
	size, err := fsutil.FileSize(artifact)
	if err != nil {
		return nil, err
	}

	final, err := m.placeConverted(artifact, digest)
	if err != nil {
		_ = fsutil.RemoveFile(artifact)
		return nil, err
	}

	updated, err := m.store.UpdateConverted(ctx, rec.FileHash, final, digest, size)
	if err != nil {
		_ = fsutil.RemoveFile(final)
		return nil, err
	}
	if updated == nil {
		_ = fsutil.RemoveFile(final)
		return nil, fmt.Errorf("%w: %s", ErrNotFound, rec.FileHash)
	}
	if size > m.maxFileSize {
		m.logger.Warn("converted artifact still over limit", "path", final, "size", size, "limit", m.maxFileSize)
	}
	return updated, nil
}

// placeConverted moves the artifact into the converted directory under
// its content hash plus the original extension.
func (m *Media) placeConverted(artifact, digest string) (string, error) {
	if m.convertedDir == "" {
		return artifact, nil
	}
	if err := os.MkdirAll(m.convertedDir, 0o755); err != nil {
		return "", err
	}
	final := filepath.Join(m.convertedDir, digest+strings.ToLower(filepath.Ext(artifact)))
	if err := os.Rename(artifact, final); err != nil {
		return "", fmt.Errorf("moving artifact: %w", err)
	}
	return final, nil
}

// MarkSent records a send to the guild. Unknown hashes are ErrNotFound.
func (m *Media) MarkSent(ctx context.Context, hash, guildID string) (*models.FileRecord, error) {
	rec, err := m.store.IncrementSendCount(ctx, hash, guildID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	return rec, nil
}

// CategoryStats is the per-category slice of a stats report.
type CategoryStats struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// StatsReport summarizes the tracked collection.
type StatsReport struct {
	Categories []CategoryStats `json:"categories"`
	Total      int             `json:"total"`
	Oversized  int             `json:"oversized"`
}

// Stats counts tracked files per category and how many exceed the
// size limit.
func (m *Media) Stats(ctx context.Context) (*StatsReport, error) {
	report := &StatsReport{}
	for name := range m.categories {
		count, err := m.store.CountByCategory(ctx, name)
		if err != nil {
			return nil, err
		}
		report.Categories = append(report.Categories, CategoryStats{Category: name, Count: count})
		report.Total += count
	}
	sort.Slice(report.Categories, func(i, j int) bool {
		return report.Categories[i].Category < report.Categories[j].Category
	})

	oversized, err := m.store.ListLargerThan(ctx, m.maxFileSize)
	if err != nil {
		return nil, err
	}
	report.Oversized = len(oversized)
	return report, nil
}
