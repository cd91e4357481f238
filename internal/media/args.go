package media

import "fmt"

// TargetProfile describes the single conversion target. Every converted
// upload ends up mono, 44.1 kHz, AAC-LC at ~128 kbps in an MP4 container
// with the moov atom relocated to the front for progressive playback.
type TargetProfile struct {
	Bitrate    string
	Channels   int
	SampleRate int
}

// DefaultProfile matches what the mobile recorder itself produces, so
// converted and native uploads are indistinguishable to players.
var DefaultProfile = TargetProfile{
	Bitrate:    "128k",
	Channels:   1,
	SampleRate: 44100,
}

// BuildConvertArgs constructs the ffmpeg arguments for one file conversion.
// Arguments are passed as a vector (no shell), so paths need no quoting.
func BuildConvertArgs(inputPath, outputPath string, prof TargetProfile) ([]string, error) {
	if inputPath == "" {
		return nil, fmt.Errorf("missing input path")
	}
	if outputPath == "" {
		return nil, fmt.Errorf("missing output path")
	}
	if inputPath == outputPath {
		return nil, fmt.Errorf("input and output paths must differ")
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "error", // stderr is captured for diagnostics
		"-nostats",
		"-y", // the output path is a fresh temp file, overwriting is safe

		"-i", inputPath,

		// Audio only; drop any video track from screen/video recordings.
		"-vn",

		"-c:a", "aac",
		"-profile:a", "aac_low", // AAC-LC, the broadly supported profile
		"-b:a", prof.Bitrate,
		"-ac", fmt.Sprintf("%d", prof.Channels),
		"-ar", fmt.Sprintf("%d", prof.SampleRate),

		// Relocate moov so playback can start before the full download.
		"-movflags", "+faststart",

		"-f", "mp4",
		outputPath,
	}

	return args, nil
}
