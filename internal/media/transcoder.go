package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/vocalis-app/vocalis/internal/log"
	"github.com/vocalis-app/vocalis/internal/metrics"
)

// RunFunc executes one external conversion call and returns captured stderr.
// It exists so tests can exercise the swap/fallback logic without a real
// ffmpeg binary.
type RunFunc func(ctx context.Context, bin string, args []string) ([]byte, error)

// Transcoder converts stored files into the target profile via a single
// blocking external process call per file. Independent uploads may convert
// concurrently; one file is never converted by more than one call.
type Transcoder struct {
	BinPath string
	Timeout time.Duration
	Profile TargetProfile

	run RunFunc
}

// Result reports where the deliverable file ended up.
type Result struct {
	// Path is the final on-disk path: the converted output on success, the
	// untouched original on fallback.
	Path string
	// Degraded is true when conversion failed and the original upload was
	// kept as the deliverable.
	Degraded bool
}

// NewTranscoder creates a Transcoder invoking the given binary.
func NewTranscoder(binPath string, timeout time.Duration) *Transcoder {
	if binPath == "" {
		binPath = "ffmpeg"
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Transcoder{
		BinPath: binPath,
		Timeout: timeout,
		Profile: DefaultProfile,
		run:     runFFmpeg,
	}
}

// Convert transcodes inputPath into the target profile at outputPath.
//
// The output is written to a temp path first and promoted with an atomic
// rename, so no reader ever observes a half-written file at the canonical
// path; the consumed original is removed afterwards. On any conversion
// failure the original input file is left byte-for-byte untouched and
// becomes the deliverable: availability beats format uniformity here, so
// the error is logged as degraded instead of failing the upload.
func (t *Transcoder) Convert(ctx context.Context, inputPath, outputPath string) (Result, error) {
	logger := log.WithComponentFromContext(ctx, "media.transcoder")

	args, err := BuildConvertArgs(inputPath, outputPath+".part", t.Profile)
	if err != nil {
		return Result{}, err
	}
	tmpPath := outputPath + ".part"

	ctx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	start := time.Now()
	stderr, err := t.run(ctx, t.BinPath, args)
	elapsed := time.Since(start)

	if err != nil {
		// Remove whatever partial artifact ffmpeg left behind; the original
		// stays in place as the fallback deliverable.
		if rmErr := os.Remove(tmpPath); rmErr != nil && !os.IsNotExist(rmErr) {
			logger.Warn().Err(rmErr).Str(log.FieldPath, tmpPath).Msg("failed to remove partial transcode output")
		}
		logger.Warn().
			Err(err).
			Str(log.FieldEvent, "transcode.fallback").
			Str(log.FieldPath, inputPath).
			Str("stderr", lastLines(stderr, 10)).
			Dur("elapsed", elapsed).
			Msg("conversion failed, keeping original file")
		metrics.ObserveTranscode("fallback", elapsed)
		return Result{Path: inputPath, Degraded: true}, nil
	}

	if err := os.Rename(tmpPath, outputPath); err != nil {
		_ = os.Remove(tmpPath)
		metrics.ObserveTranscode("swap_error", elapsed)
		return Result{}, fmt.Errorf("promote transcoded file: %w", err)
	}

	if inputPath != outputPath {
		if err := os.Remove(inputPath); err != nil {
			logger.Warn().Err(err).Str(log.FieldPath, inputPath).Msg("failed to remove consumed original")
		}
	}

	logger.Info().
		Str(log.FieldEvent, "transcode.done").
		Str(log.FieldPath, outputPath).
		Dur("elapsed", elapsed).
		Msg("conversion completed")
	metrics.ObserveTranscode("ok", elapsed)
	return Result{Path: outputPath}, nil
}

// runFFmpeg is the production RunFunc.
func runFFmpeg(ctx context.Context, bin string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...) // #nosec G204 -- args built internally, bin from trusted config
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return stderr.Bytes(), fmt.Errorf("ffmpeg timed out: %w", ctx.Err())
		}
		return stderr.Bytes(), fmt.Errorf("ffmpeg failed: %w", err)
	}
	return stderr.Bytes(), nil
}

// lastLines trims captured stderr to its final n lines for log payloads.
func lastLines(b []byte, n int) string {
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
