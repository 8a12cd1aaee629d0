package compress

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestQualitySearchStopsAtFirstPassingLevel(t *testing.T) {
	var tried []int
	// size shrinks linearly with quality: fits first at 55
	encode := func(q int) (int64, error) {
		tried = append(tried, q)
		return int64(q * 100), nil
	}

	quality, size, err := qualitySearch(75, 10, 10, 5600, encode)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if quality != 55 {
		t.Fatalf("expected quality 55, got %d", quality)
	}
	if size != 5500 {
		t.Fatalf("expected size 5500, got %d", size)
	}
	if len(tried) != 3 || tried[0] != 75 || tried[1] != 65 || tried[2] != 55 {
		t.Fatalf("expected levels 75,65,55 tried in order, got %v", tried)
	}
}

func TestQualitySearchReturnsFloorResultOversized(t *testing.T) {
	encode := func(q int) (int64, error) {
		return int64(q * 1000), nil
	}

	quality, size, err := qualitySearch(75, 10, 10, 1, encode)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	// the last level tried is 15 (75 - 6*10); its oversized result is kept
	if quality != 15 {
		t.Fatalf("expected last tried quality 15, got %d", quality)
	}
	if size != 15000 {
		t.Fatalf("expected size 15000, got %d", size)
	}
}

func TestQualitySearchPropagatesEncodeError(t *testing.T) {
	encode := func(q int) (int64, error) {
		return 0, fmt.Errorf("encode exploded at %d", q)
	}
	if _, _, err := qualitySearch(75, 10, 10, 100, encode); err == nil {
		t.Fatal("expected encode error to propagate")
	}
}

func testImage(t *testing.T, name string, encode func(f *os.File, img image.Image) error) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for x := range 64 {
		for y := range 64 {
			img.Set(x, y, color.RGBA{uint8(x * 4), uint8(y * 4), uint8((x + y) * 2), 255})
		}
	}

	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := encode(f, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return path
}

func TestCompressJPEGProducesArtifact(t *testing.T) {
	path := testImage(t, "src.jpg", func(f *os.File, img image.Image) error {
		return jpeg.Encode(f, img, &jpeg.Options{Quality: 100})
	})

	out, err := CompressJPEG(path, 1<<20)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if filepath.Base(out) != "src_compressed.jpg" {
		t.Fatalf("unexpected artifact name %s", filepath.Base(out))
	}
	info, err := os.Stat(out)
	if err != nil {
		t.Fatalf("stat artifact: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("empty artifact")
	}
}

func TestCompressPNGProducesArtifact(t *testing.T) {
	path := testImage(t, "src.png", func(f *os.File, img image.Image) error {
		return png.Encode(f, img)
	})

	out, err := CompressPNG(path, 1<<20)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if filepath.Base(out) != "src_compressed.png" {
		t.Fatalf("unexpected artifact name %s", filepath.Base(out))
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("stat artifact: %v", err)
	}
}

func TestArtifactPath(t *testing.T) {
	got := artifactPath("/data/memes/cat.jpg", ".jpg")
	want := filepath.Join("/data/memes", "cat_compressed.jpg")
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}

	got = artifactPath("/data/vids/clip.mov", ".mp4")
	want = filepath.Join("/data/vids", "clip_compressed.mp4")
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
