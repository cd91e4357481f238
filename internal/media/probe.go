// Package media implements format probing and conversion of uploaded audio
// into the single mobile-playable target profile (mono 44.1 kHz AAC-LC in an
// MP4 container with relocated metadata).
package media

import (
	"bytes"
	"io"
	"os"

	"github.com/vocalis-app/vocalis/internal/log"
	"github.com/vocalis-app/vocalis/internal/metrics"
)

// Verdict classifies a stored file relative to the target profile.
type Verdict string

const (
	// AlreadyCompatible means the file carries the target container and
	// needs no conversion.
	AlreadyCompatible Verdict = "already_compatible"
	// ConvertibleKnown means the container was recognised and conversion
	// should succeed.
	ConvertibleKnown Verdict = "convertible_known"
	// ConvertibleUnknown means the signature was not recognised (or the
	// file could not be read); conversion is attempted anyway.
	ConvertibleUnknown Verdict = "convertible_unknown"
)

// Format names a recognised audio container/codec family.
type Format string

const (
	FormatM4A  Format = "m4a"
	FormatMP4  Format = "mp4"
	FormatWebM Format = "webm"
	FormatMP3  Format = "mp3"
	FormatWAV  Format = "wav"
	FormatOgg  Format = "ogg"
	FormatFLAC Format = "flac"
	FormatAAC  Format = "aac" // raw ADTS stream, needs the MP4 container
)

// Classification is the probe result.
type Classification struct {
	Verdict Verdict
	Format  Format // set for ConvertibleKnown and AlreadyCompatible
}

// sniffLen covers every signature we check: 4 bytes of magic, or 12 bytes
// for the RIFF/WAVE and ftyp layouts.
const sniffLen = 12

// m4aBrands are the ftyp major brands produced by audio-only MP4 muxers.
var m4aBrands = [][]byte{
	[]byte("M4A "), []byte("M4B "), []byte("M4P "),
}

// Classify inspects the container signature bytes of the file at path.
// The file extension is untrusted and never consulted. Classification is
// read-only and never fails: unreadable or unrecognised inputs degrade to
// ConvertibleUnknown so a misclassification can't block an upload.
func Classify(path string) Classification {
	c := classifyFile(path)
	metrics.IncProbe(string(c.Verdict))
	return c
}

func classifyFile(path string) Classification {
	logger := log.WithComponent("media.probe")

	f, err := os.Open(path) // #nosec G304 -- path is a server-generated upload path
	if err != nil {
		logger.Warn().Err(err).Str(log.FieldPath, path).Msg("probe open failed, degrading to unknown")
		return Classification{Verdict: ConvertibleUnknown}
	}
	defer func() { _ = f.Close() }()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && n < 4 {
		logger.Warn().Err(err).Str(log.FieldPath, path).Msg("probe read failed, degrading to unknown")
		return Classification{Verdict: ConvertibleUnknown}
	}
	head = head[:n]

	return classifySignature(head)
}

// classifySignature maps magic bytes to a Classification.
func classifySignature(head []byte) Classification {
	if len(head) >= 12 && bytes.Equal(head[4:8], []byte("ftyp")) {
		brand := head[8:12]
		for _, b := range m4aBrands {
			if bytes.Equal(brand, b) {
				return Classification{Verdict: AlreadyCompatible, Format: FormatM4A}
			}
		}
		// generic ISO media (video MP4, 3GP recordings); the audio track
		// still gets re-encoded into the target profile
		return Classification{Verdict: ConvertibleKnown, Format: FormatMP4}
	}

	switch {
	case len(head) >= 4 && bytes.Equal(head[:4], []byte{0x1A, 0x45, 0xDF, 0xA3}):
		// EBML header, WebM/Matroska (desktop browser MediaRecorder output)
		return Classification{Verdict: ConvertibleKnown, Format: FormatWebM}

	case len(head) >= 12 && bytes.Equal(head[:4], []byte("RIFF")) && bytes.Equal(head[8:12], []byte("WAVE")):
		return Classification{Verdict: ConvertibleKnown, Format: FormatWAV}

	case len(head) >= 4 && bytes.Equal(head[:4], []byte("OggS")):
		return Classification{Verdict: ConvertibleKnown, Format: FormatOgg}

	case len(head) >= 4 && bytes.Equal(head[:4], []byte("fLaC")):
		return Classification{Verdict: ConvertibleKnown, Format: FormatFLAC}

	case len(head) >= 3 && bytes.Equal(head[:3], []byte("ID3")):
		return Classification{Verdict: ConvertibleKnown, Format: FormatMP3}

	case len(head) >= 2 && head[0] == 0xFF && head[1]&0xE0 == 0xE0:
		// MPEG sync word. Layer bits 00 mean ADTS AAC, anything else is
		// an MPEG audio frame (MP3).
		if head[1]&0x06 == 0 {
			return Classification{Verdict: ConvertibleKnown, Format: FormatAAC}
		}
		return Classification{Verdict: ConvertibleKnown, Format: FormatMP3}
	}

	return Classification{Verdict: ConvertibleUnknown}
}
