// Package ingest implements the upload pipeline: validate, materialize to
// disk, probe the container, convert when needed, persist metadata. The
// asset row and its file are created together; any failure after the file
// lands removes it again so no orphan bytes survive a failed upload.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vocalis-app/vocalis/internal/log"
	"github.com/vocalis-app/vocalis/internal/media"
	"github.com/vocalis-app/vocalis/internal/metrics"
	"github.com/vocalis-app/vocalis/internal/store"
)

// Converter turns a stored file into the target profile. Satisfied by
// *media.Transcoder; tests inject fakes.
type Converter interface {
	Convert(ctx context.Context, inputPath, outputPath string) (media.Result, error)
}

// Upload carries one incoming file and its metadata.
type Upload struct {
	OwnerID        string
	Title          string
	Description    string
	Filename       string // client-supplied, untrusted
	ContentType    string // client-supplied, untrusted
	DurationMillis int64  // 0 when the client sent none
	Data           io.Reader
}

// Service runs the ingestion pipeline. Independent uploads run concurrently;
// per-upload state never leaves the Ingest call.
type Service struct {
	store     store.Store
	uploadDir string
	maxBytes  int64
	conv      Converter
}

// NewService wires the pipeline. maxBytes caps the accepted file size.
func NewService(st store.Store, uploadDir string, maxBytes int64, conv Converter) *Service {
	return &Service{
		store:     st,
		uploadDir: uploadDir,
		maxBytes:  maxBytes,
		conv:      conv,
	}
}

// acceptedTypes lists non-"audio/*" content types recorders are known to
// declare for audio payloads.
var acceptedTypes = map[string]bool{
	"video/webm": true, // browser MediaRecorder labels audio-only captures this way
	"video/mp4":  true,
}

// Ingest validates and stores one upload, returning the persisted asset.
//
// The file is materialized atomically, probed by signature (never by the
// client-declared type) and converted into the target profile unless it
// already carries it. A conversion failure does not fail the upload: the
// original file is kept and the asset is flagged degraded. Every error
// after materialization removes the on-disk file before returning.
func (s *Service) Ingest(ctx context.Context, up Upload) (store.Asset, error) {
	logger := log.WithComponentFromContext(ctx, "ingest")

	if up.Data == nil {
		metrics.IncUpload("rejected", "no_file")
		return store.Asset{}, &ValidationError{Err: ErrNoFile}
	}
	if !typeAccepted(up.ContentType) {
		metrics.IncUpload("rejected", "unsupported_type")
		return store.Asset{}, &ValidationError{Err: ErrUnsupportedType, Detail: up.ContentType}
	}

	id := uuid.NewString()
	storedPath := filepath.Join(s.uploadDir, id+storedExt(up.Filename, up.ContentType))

	size, err := s.materialize(storedPath, up.Data)
	if err != nil {
		if IsValidation(err) {
			metrics.IncUpload("rejected", rejectReason(err))
			return store.Asset{}, err
		}
		return store.Asset{}, fmt.Errorf("materialize upload: %w", err)
	}
	metrics.ObserveUploadBytes(size)

	finalPath := storedPath
	degraded := false
	if c := media.Classify(storedPath); c.Verdict != media.AlreadyCompatible {
		res, convErr := s.conv.Convert(ctx, storedPath, filepath.Join(s.uploadDir, id+".m4a"))
		if convErr != nil {
			s.removeFile(logger, storedPath)
			metrics.IncUpload("error", "convert")
			return store.Asset{}, fmt.Errorf("convert upload: %w", convErr)
		}
		finalPath = res.Path
		degraded = res.Degraded
		if c.Format != "" {
			logger.Debug().
				Str(log.FieldFormat, string(c.Format)).
				Bool("degraded", degraded).
				Msg("upload converted")
		}
	}

	if fi, statErr := os.Stat(finalPath); statErr == nil {
		size = fi.Size()
	}

	asset := store.Asset{
		ID:             id,
		OwnerID:        up.OwnerID,
		Title:          strings.TrimSpace(up.Title),
		Description:    strings.TrimSpace(up.Description),
		StoragePath:    finalPath,
		ByteSize:       size,
		DurationMillis: up.DurationMillis,
		Degraded:       degraded,
		CreatedAt:      time.Now().UTC(),
	}
	if asset.Title == "" {
		asset.Title = "Recording " + asset.CreatedAt.Format("2006-01-02 15:04")
	}

	if err := s.store.Create(ctx, asset); err != nil {
		s.removeFile(logger, finalPath)
		metrics.IncUpload("error", "store")
		return store.Asset{}, fmt.Errorf("persist asset: %w", err)
	}

	logger.Info().
		Str(log.FieldAssetID, asset.ID).
		Str(log.FieldOwnerID, asset.OwnerID).
		Int64(log.FieldSize, asset.ByteSize).
		Bool("degraded", asset.Degraded).
		Str(log.FieldEvent, "upload.stored").
		Msg("upload ingested")
	metrics.IncUpload("ok", "")
	return asset, nil
}

// Delete removes the asset row and then its file. A missing file is logged
// and swallowed: the row is the source of truth, leftover bytes are debris.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	logger := log.WithComponentFromContext(ctx, "ingest")

	a, err := s.store.Get(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, ownerID, id); err != nil {
		return err
	}
	if err := os.Remove(a.StoragePath); err != nil && !os.IsNotExist(err) {
		logger.Warn().Err(err).
			Str(log.FieldAssetID, id).
			Str(log.FieldPath, a.StoragePath).
			Msg("asset file removal failed")
	}
	logger.Info().
		Str(log.FieldAssetID, id).
		Str(log.FieldOwnerID, ownerID).
		Str(log.FieldEvent, "asset.deleted").
		Msg("asset deleted")
	return nil
}

// materialize streams the upload into path with an atomic commit, enforcing
// the size cap and rejecting empty payloads. On any error nothing remains
// at path.
func (s *Service) materialize(path string, r io.Reader) (int64, error) {
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o600))
	if err != nil {
		return 0, fmt.Errorf("create pending file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	// Read one byte past the cap so oversize is detectable without
	// buffering the whole payload.
	n, err := io.Copy(pending, io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return 0, fmt.Errorf("write upload: %w", err)
	}
	if n == 0 {
		return 0, &ValidationError{Err: ErrEmptyFile}
	}
	if n > s.maxBytes {
		return 0, &ValidationError{Err: ErrTooLarge, Detail: fmt.Sprintf("limit %d bytes", s.maxBytes)}
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return 0, fmt.Errorf("commit upload file: %w", err)
	}
	return n, nil
}

func (s *Service) removeFile(logger zerolog.Logger, path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn().Err(err).Str(log.FieldPath, path).Msg("cleanup of failed upload left a file behind")
	}
}

func typeAccepted(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return strings.HasPrefix(ct, "audio/") || acceptedTypes[ct]
}

// knownExts are extensions we keep from the client filename; anything else
// gets a neutral one. The final extension may change after conversion.
var knownExts = map[string]bool{
	".m4a": true, ".mp4": true, ".aac": true, ".mp3": true,
	".wav": true, ".ogg": true, ".oga": true, ".webm": true, ".flac": true,
}

func storedExt(filename, contentType string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if knownExts[ext] {
		return ext
	}
	switch {
	case strings.HasPrefix(contentType, "audio/mpeg"):
		return ".mp3"
	case strings.HasPrefix(contentType, "audio/wav"), strings.HasPrefix(contentType, "audio/x-wav"):
		return ".wav"
	case strings.HasPrefix(contentType, "audio/ogg"):
		return ".ogg"
	case strings.Contains(contentType, "webm"):
		return ".webm"
	case strings.Contains(contentType, "mp4"):
		return ".m4a"
	}
	return ".bin"
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrTooLarge):
		return "too_large"
	case errors.Is(err, ErrEmptyFile):
		return "empty"
	case errors.Is(err, ErrUnsupportedType):
		return "unsupported_type"
	case errors.Is(err, ErrNoFile):
		return "no_file"
	default:
		return "invalid"
	}
}
