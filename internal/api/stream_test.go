package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeStreamFile(t *testing.T, dir, name string, size int) []byte {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o600))
	return data
}

func TestStreamFullFile(t *testing.T) {
	ts := newTestServer(t)
	data := writeStreamFile(t, ts.dir, "abc.m4a", 4096)

	rec := ts.do(http.MethodGet, "/api/audio/stream/abc.m4a", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, data, rec.Body.Bytes())
	assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
	assert.Equal(t, `audio/aac; codecs="mp4a.40.2"`, rec.Header().Get("Content-Type"))
	assert.Equal(t, "4096", rec.Header().Get("Content-Length"))
	assert.Equal(t, `inline; filename="abc.m4a"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))
}

func TestStreamRangeRequests(t *testing.T) {
	ts := newTestServer(t)
	data := writeStreamFile(t, ts.dir, "clip.m4a", 1000)

	tests := []struct {
		name        string
		rangeHeader string
		wantBody    []byte
		wantCR      string
		wantLength  string
	}{
		{"bounded", "bytes=0-499", data[:500], "bytes 0-499/1000", "500"},
		{"interior", "bytes=100-199", data[100:200], "bytes 100-199/1000", "100"},
		{"open ended", "bytes=900-", data[900:], "bytes 900-999/1000", "100"},
		{"suffix", "bytes=-100", data[900:], "bytes 900-999/1000", "100"},
		{"clamped end", "bytes=990-5000", data[990:], "bytes 990-999/1000", "10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(http.MethodGet, "/api/audio/stream/clip.m4a", nil, map[string]string{"Range": tt.rangeHeader})

			require.Equal(t, http.StatusPartialContent, rec.Code)
			assert.Equal(t, tt.wantBody, rec.Body.Bytes())
			assert.Equal(t, tt.wantCR, rec.Header().Get("Content-Range"))
			assert.Equal(t, tt.wantLength, rec.Header().Get("Content-Length"))
		})
	}
}

func TestStreamUnsatisfiableRange(t *testing.T) {
	ts := newTestServer(t)
	writeStreamFile(t, ts.dir, "clip.m4a", 1000)

	rec := ts.do(http.MethodGet, "/api/audio/stream/clip.m4a", nil, map[string]string{"Range": "bytes=1000-"})

	require.Equal(t, http.StatusRequestedRangeNotSatisfiable, rec.Code)
	assert.Equal(t, "bytes */1000", rec.Header().Get("Content-Range"))
}

func TestStreamMalformedRangeServesWholeFile(t *testing.T) {
	ts := newTestServer(t)
	data := writeStreamFile(t, ts.dir, "clip.m4a", 256)

	for _, h := range []string{"bytes=abc-", "bytes=0-10,20-30", "octets=0-10"} {
		rec := ts.do(http.MethodGet, "/api/audio/stream/clip.m4a", nil, map[string]string{"Range": h})
		require.Equal(t, http.StatusOK, rec.Code, "header %q", h)
		assert.Equal(t, data, rec.Body.Bytes())
	}
}

func TestStreamHead(t *testing.T) {
	ts := newTestServer(t)
	writeStreamFile(t, ts.dir, "clip.m4a", 512)

	rec := ts.do(http.MethodHead, "/api/audio/stream/clip.m4a", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "512", rec.Header().Get("Content-Length"))
	assert.Zero(t, rec.Body.Len())

	rec = ts.do(http.MethodHead, "/api/audio/stream/clip.m4a", nil, map[string]string{"Range": "bytes=0-99"})
	require.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "100", rec.Header().Get("Content-Length"))
	assert.Zero(t, rec.Body.Len())
}

func TestStreamMissingFile(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/audio/stream/nope.m4a", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStreamRequiresNoAuth(t *testing.T) {
	ts := newTestServer(t)
	writeStreamFile(t, ts.dir, "open.m4a", 64)

	req := httptest.NewRequest(http.MethodGet, "/api/audio/stream/open.m4a", nil)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStreamRejectsTraversal(t *testing.T) {
	ts := newTestServer(t)

	for _, name := range []string{
		"..%2f..%2fetc%2fpasswd",
		"%2e%2e%2fsecret",
		"a%00.m4a",
		"%252e%252e%252fdeep",
	} {
		rec := ts.do(http.MethodGet, "/api/audio/stream/"+name, nil, nil)
		assert.Contains(t, []int{http.StatusBadRequest, http.StatusNotFound}, rec.Code, "name %q", name)
		if rec.Code == http.StatusNotFound {
			// the router may decode before us; make sure nothing was served
			assert.NotContains(t, rec.Body.String(), "root:")
		}
	}
}

func TestContentTypeFor(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"a.m4a", `audio/aac; codecs="mp4a.40.2"`},
		{"a.mp4", `audio/aac; codecs="mp4a.40.2"`},
		{"a.aac", `audio/aac; codecs="mp4a.40.2"`},
		{"a.MP3", "audio/mpeg"},
		{"a.wav", "audio/wav"},
		{"a.ogg", "audio/ogg"},
		{"a.oga", "audio/ogg"},
		{"a.webm", "audio/webm"},
		{"a.flac", "audio/flac"},
		{"a.bin", "application/octet-stream"},
		{"noext", "application/octet-stream"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, contentTypeFor(tt.name), "file %q", tt.name)
	}
}

func TestStreamEmptyFile(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(ts.dir, "empty.m4a"), nil, 0o600))

	rec := ts.do(http.MethodGet, "/api/audio/stream/empty.m4a", nil, map[string]string{"Range": "bytes=0-"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("Content-Length"))
}

func TestStreamLargeOffsets(t *testing.T) {
	ts := newTestServer(t)
	data := writeStreamFile(t, ts.dir, "big.m4a", 10_000)

	rec := ts.do(http.MethodGet, "/api/audio/stream/big.m4a", nil, map[string]string{
		"Range": fmt.Sprintf("bytes=%d-", len(data)-1),
	})
	require.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, data[len(data)-1:], rec.Body.Bytes())
}
