// Package compress shrinks media files toward a target byte budget.
//
// Each media type gets its own parameter search: JPEG walks quality
// levels downward, PNG halves palette sizes, GIF binary-searches a
// fixed table of gifsicle settings, and video runs a two-pass
// bitrate-targeted ffmpeg encode. The search is best-effort: when the
// floor of a search still overshoots the budget, the result is kept
// and a warning is logged.
package compress

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"mediastash/internal/fsutil"
)

// ErrUnsupportedType is returned for extensions no algorithm handles.
var ErrUnsupportedType = errors.New("unsupported media type")

var videoExtensions = map[string]struct{}{
	".mp4":  {},
	".avi":  {},
	".mov":  {},
	".mkv":  {},
	".webm": {},
}

// Compress produces a new file at or under target bytes, choosing the
// algorithm by file extension. It returns the path of the new artifact.
func Compress(ctx context.Context, path string, target int64) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".gif":
		return CompressGIF(ctx, path, target)
	case ext == ".jpg" || ext == ".jpeg":
		return CompressJPEG(path, target)
	case ext == ".png":
		return CompressPNG(path, target)
	default:
		if _, ok := videoExtensions[ext]; ok {
			return CompressVideo(ctx, path, target, VideoOptions{})
		}
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	}
}

// artifactPath derives the output path for a compressed rendition of
// input, carrying the reserved suffix the synchronizer skips.
func artifactPath(input, ext string) string {
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(filepath.Dir(input), stem+fsutil.CompressedSuffix+ext)
}
