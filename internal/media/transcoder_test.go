package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertPromotesOutputAtomically(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "raw.webm")
	out := filepath.Join(dir, "raw.m4a")
	require.NoError(t, os.WriteFile(in, []byte("original webm bytes"), 0o600))

	tr := NewTranscoder("ffmpeg", time.Minute)
	tr.run = func(ctx context.Context, bin string, args []string) ([]byte, error) {
		// stand in for ffmpeg: write the temp output the real binary would
		return nil, os.WriteFile(args[len(args)-1], []byte("converted aac bytes"), 0o600)
	}

	res, err := tr.Convert(context.Background(), in, out)
	require.NoError(t, err)
	assert.Equal(t, out, res.Path)
	assert.False(t, res.Degraded)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "converted aac bytes", string(data))

	_, err = os.Stat(in)
	assert.True(t, os.IsNotExist(err), "consumed original should be removed")
	_, err = os.Stat(out + ".part")
	assert.True(t, os.IsNotExist(err), "temp artifact should not remain")
}

func TestConvertFallbackKeepsOriginalBytes(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "raw.webm")
	out := filepath.Join(dir, "raw.m4a")
	original := []byte("original webm bytes")
	require.NoError(t, os.WriteFile(in, original, 0o600))

	tr := NewTranscoder("ffmpeg", time.Minute)
	tr.run = func(ctx context.Context, bin string, args []string) ([]byte, error) {
		// partial output then failure, like a mid-encode crash
		_ = os.WriteFile(args[len(args)-1], []byte("half-writ"), 0o600)
		return []byte("Error: invalid data found when processing input\n"), errors.New("exit status 1")
	}

	res, err := tr.Convert(context.Background(), in, out)
	require.NoError(t, err, "conversion failure is recovered, not surfaced")
	assert.Equal(t, in, res.Path, "fallback deliverable is the original")
	assert.True(t, res.Degraded)

	data, err := os.ReadFile(in)
	require.NoError(t, err)
	assert.Equal(t, original, data, "original must stay byte-for-byte untouched")

	_, err = os.Stat(out)
	assert.True(t, os.IsNotExist(err), "no output at the canonical path on failure")
	_, err = os.Stat(out + ".part")
	assert.True(t, os.IsNotExist(err), "partial artifact must be cleaned up")
}

func TestConvertTimeoutHonoursContext(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "raw.webm")
	require.NoError(t, os.WriteFile(in, []byte("x"), 0o600))

	tr := NewTranscoder("ffmpeg", 10*time.Millisecond)
	tr.run = func(ctx context.Context, bin string, args []string) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	res, err := tr.Convert(context.Background(), in, filepath.Join(dir, "raw.m4a"))
	require.NoError(t, err)
	assert.True(t, res.Degraded, "timeout degrades to fallback")
	assert.Equal(t, in, res.Path)
}

func TestNewTranscoderDefaults(t *testing.T) {
	tr := NewTranscoder("", 0)
	assert.Equal(t, "ffmpeg", tr.BinPath)
	assert.Equal(t, 2*time.Minute, tr.Timeout)
	assert.Equal(t, DefaultProfile, tr.Profile)
}

func TestLastLines(t *testing.T) {
	assert.Equal(t, "c\nd", lastLines([]byte("a\nb\nc\nd\n"), 2))
	assert.Equal(t, "a", lastLines([]byte("a"), 5))
	assert.Equal(t, "", lastLines(nil, 3))
}
