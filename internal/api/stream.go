package api

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/text/unicode/norm"

	"github.com/vocalis-app/vocalis/internal/log"
	"github.com/vocalis-app/vocalis/internal/metrics"
)

// contentTypeFor maps a stored file extension to its media type. Stored
// extensions are truthful (the ingest pipeline renames converted files),
// so a table lookup is all that is needed here.
func contentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".m4a", ".mp4", ".aac":
		// explicit codec parameter keeps iOS Safari from refusing playback
		return `audio/aac; codecs="mp4a.40.2"`
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".ogg", ".oga":
		return "audio/ogg"
	case ".webm":
		return "audio/webm"
	case ".flac":
		return "audio/flac"
	default:
		return "application/octet-stream"
	}
}

// handleStream serves a stored audio file with single-range support.
//
// The route is keyed by filename, not asset id, and carries no auth: stream
// URLs are handed out by the list/get endpoints and the filenames are
// unguessable UUIDs. That makes the URL itself the capability, which is a
// deliberate trade so <audio> tags and native players with no header
// support can play back directly.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "api.stream")
	ranged := r.Header.Get("Range") != ""

	name, ok := safeFilename(r)
	if !ok {
		logger.Warn().
			Str(log.FieldEvent, "stream.denied").
			Str(log.FieldPath, r.URL.Path).
			Msg("rejected stream filename")
		metrics.IncStreamRequest(http.StatusBadRequest, ranged)
		writeError(w, http.StatusBadRequest, "invalid filename", "")
		return
	}

	path := filepath.Join(s.uploadDir, name)
	f, err := os.Open(path) // #nosec G304 -- name is validated against traversal above
	if err != nil {
		if os.IsNotExist(err) {
			metrics.IncStreamRequest(http.StatusNotFound, ranged)
			writeNotFound(w)
			return
		}
		logger.Error().Err(err).Str(log.FieldPath, path).Msg("open stream file")
		metrics.IncStreamRequest(http.StatusInternalServerError, ranged)
		writeInternal(w)
		return
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil || fi.IsDir() {
		metrics.IncStreamRequest(http.StatusNotFound, ranged)
		writeNotFound(w)
		return
	}
	size := fi.Size()

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentTypeFor(name))
	w.Header().Set("Content-Disposition", `inline; filename="`+name+`"`)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Last-Modified", fi.ModTime().UTC().Format(http.TimeFormat))

	if !ranged || size == 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			metrics.IncStreamRequest(http.StatusOK, false)
			return
		}
		n, err := io.Copy(w, f)
		metrics.AddStreamBytes(n)
		metrics.IncStreamRequest(http.StatusOK, false)
		if err != nil {
			// client went away mid-stream, nothing to send anymore
			logger.Debug().Err(err).Str(log.FieldFilename, name).Msg("stream aborted")
		}
		return
	}

	rng, err := parseRange(r.Header.Get("Range"), size)
	if err != nil {
		if errors.Is(err, ErrUnsatisfiableRange) {
			w.Header().Set("Content-Range", format416ContentRange(size))
			metrics.IncStreamRequest(http.StatusRequestedRangeNotSatisfiable, true)
			writeError(w, http.StatusRequestedRangeNotSatisfiable, "range not satisfiable", "")
			return
		}
		// malformed or multi-range: serve the whole file like a rangeless
		// request instead of failing playback
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			n, _ := io.Copy(w, f)
			metrics.AddStreamBytes(n)
		}
		metrics.IncStreamRequest(http.StatusOK, true)
		return
	}

	if _, err := f.Seek(rng.Start, io.SeekStart); err != nil {
		logger.Error().Err(err).Str(log.FieldFilename, name).Msg("seek stream file")
		metrics.IncStreamRequest(http.StatusInternalServerError, true)
		writeInternal(w)
		return
	}

	w.Header().Set("Content-Range", formatContentRange(rng, size))
	w.Header().Set("Content-Length", strconv.FormatInt(rng.length(), 10))
	w.WriteHeader(http.StatusPartialContent)
	if r.Method == http.MethodHead {
		metrics.IncStreamRequest(http.StatusPartialContent, true)
		return
	}

	n, err := io.Copy(w, io.LimitReader(f, rng.length()))
	metrics.AddStreamBytes(n)
	metrics.IncStreamRequest(http.StatusPartialContent, true)
	if err != nil {
		logger.Debug().Err(err).Str(log.FieldFilename, name).Msg("ranged stream aborted")
	}
}

// safeFilename extracts and validates the filename route parameter. The
// check runs on decoded and NFC-normalized text so encoded or Unicode
// traversal variants cannot slip through.
func safeFilename(r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "filename")
	if raw == "" {
		return "", false
	}

	decoded := raw
	for i := 0; i < 3; i++ {
		prev := decoded
		if d, err := url.PathUnescape(decoded); err == nil {
			decoded = d
		}
		if decoded == prev {
			break
		}
	}
	decoded = norm.NFC.String(decoded)

	if strings.Contains(decoded, "..") ||
		strings.ContainsAny(decoded, "/\\") ||
		strings.IndexByte(decoded, 0x00) >= 0 {
		return "", false
	}
	if filepath.Base(decoded) != decoded {
		return "", false
	}
	return decoded, true
}
