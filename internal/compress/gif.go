package compress

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"mediastash/internal/fsutil"
)

// gifLevel is one gifsicle parameter pair.
type gifLevel struct {
	Colors int
	Lossy  int
}

// gifLevels is ordered from least to most aggressive; the binary search
// below relies on output size shrinking monotonically along the table.
var gifLevels = []gifLevel{
	{256, 0}, {256, 20}, {256, 40}, {256, 60}, {256, 80}, {256, 100},
	{128, 0}, {128, 20}, {128, 40}, {128, 60}, {128, 80}, {128, 100},
	{64, 0}, {64, 20}, {64, 40}, {64, 60}, {64, 80}, {64, 100},
	{32, 0}, {32, 20}, {32, 40}, {32, 60}, {32, 80}, {32, 100},
	{16, 0}, {16, 20}, {16, 40}, {16, 60}, {16, 80}, {16, 100},
}

// CompressGIF binary-searches the gifsicle parameter table for the
// least aggressive setting that fits the target, probing into a
// temporary directory and re-encoding once at the winning setting.
func CompressGIF(ctx context.Context, path string, target int64) (string, error) {
	tmpDir, err := os.MkdirTemp("", "gifprobe-")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmpDir)

	best, err := searchLevels(len(gifLevels), target, func(i int) (int64, error) {
		probe := filepath.Join(tmpDir, fmt.Sprintf("probe-%d.gif", i))
		size, err := runGifsicle(ctx, path, probe, gifLevels[i])
		if err != nil {
			return 0, err
		}
		slog.Debug("gif probe", "colors", gifLevels[i].Colors, "lossy", gifLevels[i].Lossy, "size", size)
		return size, nil
	})
	if err != nil {
		return "", err
	}

	out := artifactPath(path, ".gif")
	size, err := runGifsicle(ctx, path, out, gifLevels[best])
	if err != nil {
		_ = fsutil.RemoveFile(out)
		return "", err
	}

	if size > target {
		slog.Warn("gif still over target at most aggressive setting", "path", path, "size", size, "target", target)
	} else {
		slog.Debug("compressed gif", "path", out, "colors", gifLevels[best].Colors, "lossy", gifLevels[best].Lossy, "size", size)
	}
	return out, nil
}

// searchLevels finds the lowest index whose probed size fits the
// target. When no index fits, index 0 is returned and the final encode
// is best-effort.
func searchLevels(n int, target int64, probe func(int) (int64, error)) (int, error) {
	low, high := 0, n-1
	best := 0
	for low <= high {
		mid := (low + high) / 2
		size, err := probe(mid)
		if err != nil {
			return 0, err
		}
		if size <= target {
			best = mid
			high = mid - 1
		} else {
			low = mid + 1
		}
	}
	return best, nil
}

func runGifsicle(ctx context.Context, input, output string, level gifLevel) (int64, error) {
	args := []string{
		"--optimize",
		fmt.Sprintf("--colors=%d", level.Colors),
		fmt.Sprintf("--lossy=%d", level.Lossy),
		"-i", input,
		"-o", output,
	}
	if _, err := runCommand(ctx, "gifsicle", args...); err != nil {
		return 0, err
	}
	return fsutil.FileSize(output)
}
