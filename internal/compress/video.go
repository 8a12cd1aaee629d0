package compress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"mediastash/internal/fsutil"
)

// ErrDuration is returned when the source duration cannot be probed.
var ErrDuration = errors.New("video duration unavailable")

const (
	minVideoBitrateKbps = 10
	minAudioBitrateKbps = 8

	standardAudioBps = 128_000
	minAudioBps      = 8_000
	minVideoBps      = 10_000

	// The encode undershoots the caller's budget by 5% so container
	// overhead does not push the result back over it.
	targetSizeMargin = 0.95
)

// VideoOptions carries caller preferences for the output encoding.
// Zero values select the H.264/AAC/MP4 default.
type VideoOptions struct {
	Container  string
	VideoCodec string
	AudioCodec string
}

// encodingPlan is the reconciled container/codec selection.
type encodingPlan struct {
	Container   string
	VideoCodec  string
	AudioCodec  string
	PixelFormat string
}

// videoPhase tracks the two-pass pipeline state. Any failure
// transitions to phaseFailed, which owes cleanup of partial output.
type videoPhase int

const (
	phaseIdle videoPhase = iota
	phaseProbing
	phasePass1
	phasePass2
	phaseDone
	phaseFailed
)

var webmVideoCodecs = map[string]struct{}{
	"libvpx-vp9": {}, "vp9": {}, "libaom-av1": {}, "av1": {}, "vp8": {},
}

var webmAudioCodecs = map[string]struct{}{
	"libopus": {}, "opus": {}, "vorbis": {},
}

var mp4VideoCodecs = map[string]struct{}{
	"libx264": {}, "libx265": {}, "h264": {}, "h265": {},
}

// AllocateBitrates splits a total bits-per-second budget derived from
// target size and duration between video and audio. Audio gets its
// standard rate when the budget allows a video floor beside it; below
// that the floors shrink proportionally. A budget that cannot yield
// positive rates is a fatal input-too-small condition.
func AllocateBitrates(targetSize int64, duration float64) (videoBps, audioBps float64, err error) {
	if duration <= 0 {
		return 0, 0, fmt.Errorf("%w: non-positive duration %f", ErrDuration, duration)
	}

	totalBps := float64(targetSize*8) / duration

	switch {
	case totalBps >= minVideoBps+standardAudioBps:
		audioBps = standardAudioBps
		videoBps = totalBps - audioBps
	case totalBps >= minVideoBps+minAudioBps:
		videoBps = minVideoBps
		audioBps = totalBps - videoBps
	default:
		totalMin := float64(minVideoBps + minAudioBps)
		videoBps = totalBps * (minVideoBps / totalMin)
		audioBps = totalBps * (minAudioBps / totalMin)
	}

	if videoBps <= 0 || audioBps <= 0 {
		return 0, 0, fmt.Errorf("target size %d too small for %.2fs of video", targetSize, duration)
	}
	return videoBps, audioBps, nil
}

// CompressVideo runs a two-pass bitrate-targeted encode toward the
// target size. The result may exceed the target; that logs a warning
// rather than failing.
func CompressVideo(ctx context.Context, path string, target int64, opts VideoOptions) (string, error) {
	enc := &videoEncoder{input: path, target: target, opts: opts, phase: phaseIdle}
	return enc.run(ctx)
}

type videoEncoder struct {
	input  string
	target int64
	opts   VideoOptions
	phase  videoPhase
	output string
}

func (e *videoEncoder) run(ctx context.Context) (string, error) {
	e.phase = phaseProbing
	duration, err := probeDuration(ctx, e.input)
	if err != nil {
		return "", e.fail(err)
	}
	if duration < 0 {
		return "", e.fail(fmt.Errorf("%w: negative duration %f for %s", ErrDuration, duration, e.input))
	}

	margined := int64(float64(e.target) * targetSizeMargin)
	videoBps, audioBps, err := AllocateBitrates(margined, duration)
	if err != nil {
		return "", e.fail(err)
	}
	videoKbps := max(int(videoBps/1000), minVideoBitrateKbps)
	audioKbps := max(int(audioBps/1000), minAudioBitrateKbps)

	plan := resolveEncoding(e.opts)
	e.output = artifactPath(e.input, "."+plan.Container)

	slog.Debug("video encode plan",
		"input", e.input,
		"container", plan.Container,
		"vcodec", plan.VideoCodec,
		"acodec", plan.AudioCodec,
		"video_kbps", videoKbps,
		"audio_kbps", audioKbps,
		"duration", duration,
	)

	tmpDir, err := os.MkdirTemp("", "ffpass-")
	if err != nil {
		return "", e.fail(err)
	}
	defer os.RemoveAll(tmpDir)
	passLog := filepath.Join(tmpDir, filepath.Base(e.input)+"_ffmpeg2pass")

	e.phase = phasePass1
	pass1 := []string{
		"-y",
		"-i", e.input,
		"-c:v", plan.VideoCodec,
		"-b:v", fmt.Sprintf("%dk", videoKbps),
		"-pass", "1",
		"-an",
		"-fps_mode", "cfr",
		"-preset", "medium",
	}
	if plan.PixelFormat != "" {
		pass1 = append(pass1, "-pix_fmt", plan.PixelFormat)
	}
	pass1 = append(pass1, "-passlogfile", passLog, "-f", "null", os.DevNull)
	if _, err := runCommand(ctx, "ffmpeg", pass1...); err != nil {
		return "", e.fail(fmt.Errorf("first pass for %s: %w", e.input, err))
	}

	e.phase = phasePass2
	pass2 := []string{
		"-y",
		"-i", e.input,
		"-c:v", plan.VideoCodec,
		"-b:v", fmt.Sprintf("%dk", videoKbps),
		"-pass", "2",
		"-c:a", plan.AudioCodec,
		"-b:a", fmt.Sprintf("%dk", audioKbps),
		"-fps_mode", "cfr",
		"-preset", "medium",
	}
	if plan.PixelFormat != "" {
		pass2 = append(pass2, "-pix_fmt", plan.PixelFormat)
	}
	pass2 = append(pass2, "-passlogfile", passLog, "-f", plan.Container, e.output)
	if _, err := runCommand(ctx, "ffmpeg", pass2...); err != nil {
		return "", e.fail(fmt.Errorf("second pass for %s: %w", e.input, err))
	}

	e.phase = phaseDone
	if size, err := fsutil.FileSize(e.output); err == nil && size > e.target {
		slog.Warn("video still over target after two-pass encode", "path", e.output, "size", size, "target", e.target)
	}
	return e.output, nil
}

// fail transitions to phaseFailed and removes any partial output.
func (e *videoEncoder) fail(err error) error {
	e.phase = phaseFailed
	if e.output != "" {
		_ = fsutil.RemoveFile(e.output)
	}
	return err
}

// probeDuration queries the source duration in seconds via ffprobe.
func probeDuration(ctx context.Context, path string) (float64, error) {
	out, err := runCommand(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDuration, err)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: unparsable ffprobe output %q", ErrDuration, strings.TrimSpace(string(out)))
	}
	return duration, nil
}

// resolveEncoding reconciles requested container and codecs into a
// consistent pairing, substituting compatible codecs with a warning
// when the requested combination cannot be muxed.
func resolveEncoding(opts VideoOptions) encodingPlan {
	vcodec := opts.VideoCodec
	if vcodec == "" {
		vcodec = "libx264"
	}
	acodec := opts.AudioCodec
	if acodec == "" {
		acodec = "aac"
	}

	var container string
	switch {
	case opts.Container != "":
		container = strings.ToLower(opts.Container)
	default:
		if _, ok := webmVideoCodecs[vcodec]; ok {
			container = "webm"
		} else {
			container = "mp4"
		}
	}

	switch container {
	case "webm":
		if _, ok := webmVideoCodecs[vcodec]; !ok {
			slog.Warn("webm container: substituting video codec", "requested", vcodec, "using", "libvpx-vp9")
			vcodec = "libvpx-vp9"
		}
		if _, ok := webmAudioCodecs[acodec]; !ok {
			slog.Warn("webm container: substituting audio codec", "requested", acodec, "using", "libopus")
			acodec = "libopus"
		}
	case "mp4":
		if _, ok := mp4VideoCodecs[vcodec]; !ok {
			_, webmRequested := webmVideoCodecs[vcodec]
			if webmRequested && opts.VideoCodec != "" {
				slog.Info("keeping explicitly requested video codec in mp4", "vcodec", vcodec)
			} else {
				slog.Warn("mp4 container: substituting video codec", "requested", vcodec, "using", "libx264")
				vcodec = "libx264"
			}
		}
		if acodec != "aac" {
			_, opusFamily := webmAudioCodecs[acodec]
			if opusFamily && opts.AudioCodec != "" {
				slog.Info("keeping explicitly requested audio codec in mp4", "acodec", acodec)
			} else {
				slog.Warn("mp4 container: substituting audio codec", "requested", acodec, "using", "aac")
				acodec = "aac"
			}
		}
	}

	plan := encodingPlan{Container: container, VideoCodec: vcodec, AudioCodec: acodec}
	if vcodec == "libx264" || vcodec == "libvpx-vp9" {
		plan.PixelFormat = "yuv420p"
	}
	return plan
}
