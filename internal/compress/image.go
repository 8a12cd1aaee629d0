package compress

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ericpauley/go-quantize/quantize"
)

const (
	jpegStartQuality = 75
	jpegMinQuality   = 10
	jpegQualityStep  = 10

	pngStartColors = 256
	pngMinColors   = 16
)

// CompressJPEG re-encodes a JPEG at descending quality levels until the
// output fits the target, accepting the floor result with a warning.
func CompressJPEG(path string, target int64) (string, error) {
	img, err := decodeImageFile(path)
	if err != nil {
		return "", err
	}
	out := artifactPath(path, filepath.Ext(path))

	quality, size, err := qualitySearch(jpegStartQuality, jpegMinQuality, jpegQualityStep, target, func(q int) (int64, error) {
		return encodeJPEGFile(out, img, q)
	})
	if err != nil {
		return "", err
	}

	if size > target {
		slog.Warn("jpeg still over target at quality floor", "path", path, "size", size, "target", target)
	} else {
		slog.Debug("compressed jpeg", "path", out, "quality", quality, "size", size)
	}
	return out, nil
}

// CompressPNG re-encodes a PNG with successively smaller adaptive
// palettes until the output fits the target.
func CompressPNG(path string, target int64) (string, error) {
	img, err := decodeImageFile(path)
	if err != nil {
		return "", err
	}
	out := artifactPath(path, filepath.Ext(path))

	colors := pngStartColors
	var size int64
	for {
		size, err = encodePalettedPNGFile(out, img, colors)
		if err != nil {
			return "", err
		}
		if size <= target || colors == pngMinColors {
			break
		}
		colors = max(colors/2, pngMinColors)
	}

	if size > target {
		slog.Warn("png still over target at palette floor", "path", path, "size", size, "target", target)
	} else {
		slog.Debug("compressed png", "path", out, "colors", colors, "size", size)
	}
	return out, nil
}

// qualitySearch walks quality levels downward from start by step and
// returns the first level whose encoded size fits the target. Once a
// level passes, no lower level is tried; at the floor the oversized
// result is returned as-is.
func qualitySearch(start, floor, step int, target int64, encode func(int) (int64, error)) (int, int64, error) {
	var lastQuality int
	var lastSize int64
	for q := start; q >= floor; q -= step {
		size, err := encode(q)
		if err != nil {
			return 0, 0, err
		}
		if size <= target {
			return q, size, nil
		}
		lastQuality, lastSize = q, size
	}
	return lastQuality, lastSize, nil
}

func decodeImageFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

func encodeJPEGFile(out string, img image.Image, quality int) (int64, error) {
	f, err := os.Create(out)
	if err != nil {
		return 0, err
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: quality}); err != nil {
		_ = f.Close()
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, err
	}
	return fileLength(f.Name())
}

func encodePalettedPNGFile(out string, img image.Image, colors int) (int64, error) {
	quantizer := quantize.MedianCutQuantizer{}
	palette := quantizer.Quantize(make(color.Palette, 0, colors), img)

	paletted := image.NewPaletted(img.Bounds(), palette)
	draw.FloydSteinberg.Draw(paletted, img.Bounds(), img, image.Point{})

	f, err := os.Create(out)
	if err != nil {
		return 0, err
	}
	if err := png.Encode(f, paletted); err != nil {
		_ = f.Close()
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, err
	}
	return fileLength(f.Name())
}

func fileLength(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
