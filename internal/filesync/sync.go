// Package filesync reconciles on-disk media directories with the
// tracking database. A sync pass enumerates each category directory,
// hashes files not yet tracked, records them in one batch, and removes
// records whose files have disappeared.
package filesync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"mediastash/internal/fsutil"
	"mediastash/internal/models"
	"mediastash/internal/store"
)

// Category pairs a tracking category name with the directory holding
// its files.
type Category struct {
	Name string
	Dir  string
}

// Report summarizes one sync pass.
type Report struct {
	Scanned    int
	Added      int
	Removed    int
	Duplicates int
	Retained   int
	Elapsed    time.Duration
}

// Synchronizer drives sync passes against a store.
type Synchronizer struct {
	store       *store.Store
	categories  []Category
	hashWorkers int
	logger      *slog.Logger
}

// New returns a Synchronizer over the given categories. workers bounds
// concurrent file hashing; values below 1 are raised to 1.
func New(st *store.Store, categories []Category, workers int, logger *slog.Logger) *Synchronizer {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{store: st, categories: categories, hashWorkers: workers, logger: logger}
}

type hashedFile struct {
	path     string
	hash     string
	size     int64
	category string
}

// Sync runs one full reconciliation pass. It always walks every
// category directory but hashes only paths the category does not
// already track; the record count is compared against the on-disk file
// count only as a log hint, since equal counts do not prove identical
// contents.
func (s *Synchronizer) Sync(ctx context.Context) (*Report, error) {
	started := time.Now()
	report := &Report{}

	tracked, err := s.store.AllHashes(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading tracked hashes: %w", err)
	}

	var candidates []hashedFile
	for _, cat := range s.categories {
		files, err := fsutil.WalkFiles(cat.Dir)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", cat.Dir, err)
		}
		report.Scanned += len(files)

		recorded, err := s.store.AllPaths(ctx, cat.Name)
		if err != nil {
			return nil, err
		}
		if len(recorded) == len(files) {
			s.logger.Debug("category counts match, scanning anyway", "category", cat.Name, "count", len(files))
		} else {
			s.logger.Info("category counts differ", "category", cat.Name, "on_disk", len(files), "tracked", len(recorded))
		}

		// Paths already recorded in this category keep their row even if
		// the bytes changed; only unrecorded paths get hashed.
		fresh := files[:0:0]
		for _, path := range files {
			if _, ok := recorded[path]; ok {
				continue
			}
			fresh = append(fresh, path)
		}

		hashed, err := s.hashAll(ctx, cat.Name, fresh)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, hashed...)
	}

	records, dups := s.dedupe(candidates, tracked)
	report.Duplicates = dups

	if len(records) > 0 {
		if err := s.store.InsertFiles(ctx, records); err != nil {
			return nil, fmt.Errorf("recording %d new files: %w", len(records), err)
		}
		report.Added = len(records)
	}

	removed, retained, err := s.sweepMissing(ctx)
	if err != nil {
		return nil, err
	}
	report.Removed = removed
	report.Retained = retained
	report.Elapsed = time.Since(started)

	s.logger.Info("sync complete",
		"scanned", report.Scanned,
		"added", report.Added,
		"removed", report.Removed,
		"duplicates", report.Duplicates,
		"elapsed", report.Elapsed,
	)
	return report, nil
}

// hashAll hashes the given files with bounded parallelism, preserving
// enumeration order in the result.
func (s *Synchronizer) hashAll(ctx context.Context, category string, files []string) ([]hashedFile, error) {
	results := make([]hashedFile, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.hashWorkers)

	for i, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			hash, err := fsutil.HashFile(path)
			if err != nil {
				return fmt.Errorf("hashing %s: %w", path, err)
			}
			size, err := fsutil.FileSize(path)
			if err != nil {
				return err
			}
			results[i] = hashedFile{path: path, hash: hash, size: size, category: category}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// dedupe drops files whose hash is already tracked or already seen
// earlier in this scan. Candidates arrive in enumeration order; for
// in-scan collisions the file enumerated first wins and later paths
// are skipped with a warning.
func (s *Synchronizer) dedupe(candidates []hashedFile, tracked map[string]struct{}) ([]*models.FileRecord, int) {
	seen := make(map[string]string, len(candidates))
	var records []*models.FileRecord
	dups := 0
	now := time.Now().UTC()

	for _, hf := range candidates {
		if _, ok := tracked[hf.hash]; ok {
			continue
		}
		if first, ok := seen[hf.hash]; ok {
			s.logger.Warn("duplicate content in scan, keeping first", "kept", first, "skipped", hf.path, "hash", hf.hash)
			dups++
			continue
		}
		seen[hf.hash] = hf.path
		records = append(records, &models.FileRecord{
			FileHash:  hf.hash,
			FilePath:  hf.path,
			FileSize:  hf.size,
			Category:  hf.category,
			CreatedAt: now,
		})
	}
	return records, dups
}

// sweepMissing deletes records whose file no longer exists on disk.
// Each path is re-checked immediately before deletion so a file that
// reappears between scan and sweep is kept. Records whose converted
// artifact still exists are retained even when the original is gone.
func (s *Synchronizer) sweepMissing(ctx context.Context) (removed, retained int, err error) {
	for _, cat := range s.categories {
		paths, err := s.store.AllPaths(ctx, cat.Name)
		if err != nil {
			return removed, retained, err
		}
		for path := range paths {
			if fsutil.FileExists(path) {
				continue
			}
			rec, err := s.store.GetByPath(ctx, path)
			if err != nil {
				return removed, retained, err
			}
			if rec == nil {
				continue
			}
			if rec.HasConverted() && fsutil.FileExists(rec.ConvertedPath) {
				s.logger.Info("original missing, converted artifact survives", "path", path, "converted", rec.ConvertedPath)
				retained++
				continue
			}
			if fsutil.FileExists(path) {
				continue
			}
			if _, err := s.store.DeleteByPath(ctx, path); err != nil {
				return removed, retained, err
			}
			s.logger.Info("removed record for missing file", "path", path, "category", cat.Name)
			removed++
		}
	}
	return removed, retained, nil
}
