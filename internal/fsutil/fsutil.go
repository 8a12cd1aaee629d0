// Package fsutil provides hashing and directory enumeration helpers for
// the media file pipeline.
package fsutil

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// CompressedSuffix marks synchronizer-internal intermediate artifacts.
// Files carrying it are never treated as candidate records.
const CompressedSuffix = "_compressed"

// HashFile streams the file and returns its SHA-256 hex digest.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FileSize returns the byte length of the file at path.
func FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// FileExists reports whether a regular file exists at path.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// RemoveFile removes path. A missing file is not an error.
func RemoveFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// IsCompressedArtifact reports whether the file name ends in the
// reserved compression suffix before its extension.
func IsCompressedArtifact(path string) bool {
	name := filepath.Base(path)
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return strings.HasSuffix(stem, CompressedSuffix)
}

// WalkFiles enumerates regular files under dir recursively in lexical
// order, skipping compression artifacts. A missing directory yields an
// empty result rather than an error.
func WalkFiles(dir string) ([]string, error) {
	if info, err := os.Stat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	} else if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if IsCompressedArtifact(path) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// CountFiles returns the number of candidate files under dir.
func CountFiles(dir string) (int, error) {
	files, err := WalkFiles(dir)
	if err != nil {
		return 0, err
	}
	return len(files), nil
}

// WriteFileAtomic streams r into a temporary file next to dst and renames
// it into place, returning the SHA-256 digest and byte count written.
// The temporary file is removed on every failure path.
func WriteFileAtomic(dst string, r io.Reader) (digest string, size int64, err error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", 0, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".write-*")
	if err != nil {
		return "", 0, err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), r)
	if err != nil {
		cleanup()
		return "", 0, err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", 0, err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath)
		return "", 0, err
	}

	return hex.EncodeToString(h.Sum(nil)), n, nil
}
