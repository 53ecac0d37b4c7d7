package transcode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

const (
	// ManifestName is the playlist filename inside an asset's output directory.
	ManifestName = "index.m3u8"
	// KeyFileName is the raw AES key filename inside an asset's output directory.
	KeyFileName = "enc.key"
	// KeyInfoName is the encoder key-info record filename.
	KeyInfoName = "enc.keyinfo"
	// SegmentPattern is the printf pattern for segment filenames.
	SegmentPattern = "segment_%03d.ts"
)

// Encoder converts one source video into an encrypted segmented stream inside
// outputDir. All paths are absolute. Implementations must honor ctx
// cancellation; a non-zero encoder exit is a transient error.
type Encoder interface {
	Transcode(ctx context.Context, inputPath, outputDir, keyInfoPath string) error
}

// Prober reports the duration in seconds of a media file, when available.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// FFmpeg runs the ffmpeg binary as a black-box process: 720p down-scale,
// constrained bitrate, 6-second AES-128-encrypted MPEG-TS segments, finite
// (VOD) playlist.
type FFmpeg struct {
	// Bin is the ffmpeg executable; "ffmpeg" resolves via PATH if empty.
	Bin string
	// ProbeBin is the ffprobe executable; "ffprobe" if empty.
	ProbeBin string
}

var (
	_ Encoder = (*FFmpeg)(nil)
	_ Prober  = (*FFmpeg)(nil)
)

func (f *FFmpeg) bin() string {
	if f.Bin != "" {
		return f.Bin
	}
	return "ffmpeg"
}

func (f *FFmpeg) probeBin() string {
	if f.ProbeBin != "" {
		return f.ProbeBin
	}
	return "ffprobe"
}

// Transcode implements Encoder.
func (f *FFmpeg) Transcode(ctx context.Context, inputPath, outputDir, keyInfoPath string) error {
	args := []string{
		"-i", inputPath,

		// video: 720p down-scale at a constrained bitrate
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "23",
		"-maxrate", "2M",
		"-bufsize", "4M",
		"-vf", "scale=-2:720",

		// audio
		"-c:a", "aac",
		"-b:a", "128k",
		"-ar", "44100",

		// finite encrypted HLS stream
		"-f", "hls",
		"-hls_time", "6",
		"-hls_list_size", "0",
		"-hls_segment_filename", filepath.Join(outputDir, SegmentPattern),
		"-hls_key_info_file", keyInfoPath,
		"-hls_base_url", "", // keep real paths out of the playlist

		filepath.Join(outputDir, ManifestName),

		"-loglevel", "error",
		"-y",
	}

	cmd := exec.CommandContext(ctx, f.bin(), args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg: %w", ctx.Err())
		}
		return fmt.Errorf("ffmpeg: %w: %s", err, truncate(stderr.String(), 512))
	}
	return nil
}

// Duration implements Prober via ffprobe's JSON format output.
func (f *FFmpeg) Duration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, f.probeBin(),
		"-v", "error",
		"-i", path,
		"-print_format", "json",
		"-show_format",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe: %w: %s", err, truncate(stderr.String(), 256))
	}

	var probe struct {
		Format struct {
			Duration float64 `json:"duration,string"`
		} `json:"format"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &probe); err != nil {
		return 0, fmt.Errorf("ffprobe: decode output: %w", err)
	}
	return probe.Format.Duration, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
