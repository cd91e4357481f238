package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vocalis-app/vocalis/internal/ingest"
	"github.com/vocalis-app/vocalis/internal/log"
	"github.com/vocalis-app/vocalis/internal/store"
)

// assetDTO is the client-facing asset shape. StoragePath never leaves the
// server; clients get the stream filename and an absolute URL instead.
type assetDTO struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Filename       string    `json:"filename"`
	FileURL        string    `json:"file_url"`
	SizeBytes      int64     `json:"size_bytes"`
	DurationMillis int64     `json:"duration_ms,omitempty"`
	Degraded       bool      `json:"degraded"`
	CreatedAt      time.Time `json:"created_at"`
}

func (s *Server) toDTO(r *http.Request, a store.Asset) assetDTO {
	name := filepath.Base(a.StoragePath)
	return assetDTO{
		ID:             a.ID,
		Title:          a.Title,
		Description:    a.Description,
		Filename:       name,
		FileURL:        s.baseURL(r) + "/api/audio/stream/" + name,
		SizeBytes:      a.ByteSize,
		DurationMillis: a.DurationMillis,
		Degraded:       a.Degraded,
		CreatedAt:      a.CreatedAt,
	}
}

// baseURL reconstructs the externally visible origin from the request, so
// stream URLs stay valid no matter which discovered host the client used.
func (s *Server) baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

// handleUpload ingests one multipart audio file.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "api.upload")
	owner := ownerFromContext(r.Context())

	// cap the whole request body; the multipart framing adds a little on
	// top of the file size limit
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+(1<<20))

	file, header, err := r.FormFile("audio")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			// still a 400: the client sent a malformed request by contract,
			// but the error name distinguishes it from other validation
			writeError(w, http.StatusBadRequest, "file too large", "limit "+strconv.FormatInt(s.maxUploadBytes, 10)+" bytes")
			return
		}
		writeError(w, http.StatusBadRequest, "no audio file provided", `multipart field "audio" is required`)
		return
	}
	defer func() { _ = file.Close() }()

	durationMillis := int64(0)
	for _, field := range []string{"duration", "duration_ms"} {
		if v := r.FormValue(field); v != "" {
			if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed >= 0 {
				durationMillis = parsed
				break
			}
		}
	}

	asset, err := s.ingest.Ingest(r.Context(), ingest.Upload{
		OwnerID:        owner,
		Title:          r.FormValue("title"),
		Description:    r.FormValue("description"),
		Filename:       header.Filename,
		ContentType:    header.Header.Get("Content-Type"),
		DurationMillis: durationMillis,
		Data:           file,
	})
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrTooLarge):
			writeError(w, http.StatusBadRequest, "file too large", err.Error())
		case ingest.IsValidation(err):
			writeError(w, http.StatusBadRequest, "invalid upload", err.Error())
		default:
			logger.Error().Err(err).Str(log.FieldOwnerID, owner).Msg("upload failed")
			writeInternal(w)
		}
		return
	}

	s.invalidateList(owner)
	writeJSON(w, http.StatusCreated, s.toDTO(r, asset))
}

// handleList returns the caller's assets, newest first. The store result
// is cached per owner; DTOs are rebuilt per request because the absolute
// URL depends on the host the client reached us on.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "api.list")
	owner := ownerFromContext(r.Context())

	assets, ok := s.cachedList(owner)
	if !ok {
		var err error
		assets, err = s.store.ListByOwner(r.Context(), owner)
		if err != nil {
			logger.Error().Err(err).Str(log.FieldOwnerID, owner).Msg("list assets failed")
			writeInternal(w)
			return
		}
		s.storeList(owner, assets)
	}

	dtos := make([]assetDTO, 0, len(assets))
	for _, a := range assets {
		dtos = append(dtos, s.toDTO(r, a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"recordings": dtos})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromContext(r.Context())
	id := chi.URLParam(r, "id")

	asset, err := s.store.Get(r.Context(), owner, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeNotFound(w)
			return
		}
		logger := log.WithComponentFromContext(r.Context(), "api.get")
		logger.Error().Err(err).Str(log.FieldAssetID, id).Msg("get asset failed")
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusOK, s.toDTO(r, asset))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := s.ingest.Delete(r.Context(), owner, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeNotFound(w)
			return
		}
		logger := log.WithComponentFromContext(r.Context(), "api.delete")
		logger.Error().Err(err).Str(log.FieldAssetID, id).Msg("delete asset failed")
		writeInternal(w)
		return
	}

	s.invalidateList(owner)
	writeJSON(w, http.StatusOK, map[string]string{"message": "recording deleted", "id": id})
}

const listCacheTTL = 30 * time.Second

func listCacheKey(owner string) string { return "assets:" + owner }

func (s *Server) cachedList(owner string) ([]store.Asset, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, ok := s.cache.Get(listCacheKey(owner))
	if !ok {
		return nil, false
	}
	var assets []store.Asset
	if err := json.Unmarshal(data, &assets); err != nil {
		// stale or foreign payload, drop it
		s.cache.Delete(listCacheKey(owner))
		return nil, false
	}
	return assets, true
}

func (s *Server) storeList(owner string, assets []store.Asset) {
	if s.cache == nil {
		return
	}
	if data, err := json.Marshal(assets); err == nil {
		s.cache.Set(listCacheKey(owner), data, listCacheTTL)
	}
}

func (s *Server) invalidateList(owner string) {
	if s.cache != nil {
		s.cache.Delete(listCacheKey(owner))
	}
}
