package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRange(t *testing.T) {
	const size = 1000

	tests := []struct {
		name   string
		header string
		want   byteRange
	}{
		{"full from zero", "bytes=0-", byteRange{0, 999}},
		{"bounded", "bytes=0-499", byteRange{0, 499}},
		{"interior", "bytes=250-750", byteRange{250, 750}},
		{"open ended from offset", "bytes=500-", byteRange{500, 999}},
		{"end clamped to eof", "bytes=900-5000", byteRange{900, 999}},
		{"single byte", "bytes=42-42", byteRange{42, 42}},
		{"last byte", "bytes=999-", byteRange{999, 999}},
		{"suffix", "bytes=-500", byteRange{500, 999}},
		{"suffix larger than file", "bytes=-5000", byteRange{0, 999}},
		{"whitespace tolerated", "bytes= 10 - 20 ", byteRange{10, 20}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRange(tt.header, size)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRangeErrors(t *testing.T) {
	const size = 1000

	tests := []struct {
		name    string
		header  string
		wantErr error
	}{
		{"empty header", "", ErrInvalidRange},
		{"wrong unit", "items=0-10", ErrInvalidRange},
		{"no spec", "bytes=", ErrInvalidRange},
		{"bare dash", "bytes=-", ErrInvalidRange},
		{"non numeric", "bytes=abc-def", ErrInvalidRange},
		{"negative start", "bytes=-0", ErrInvalidRange},
		{"end before start", "bytes=500-100", ErrInvalidRange},
		{"multi range", "bytes=0-100,200-300", ErrMultiRange},
		{"start at eof", "bytes=1000-", ErrUnsatisfiableRange},
		{"start past eof", "bytes=2000-3000", ErrUnsatisfiableRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseRange(tt.header, size)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestFormatContentRange(t *testing.T) {
	assert.Equal(t, "bytes 0-499/1000", formatContentRange(byteRange{0, 499}, 1000))
	assert.Equal(t, "bytes */1000", format416ContentRange(1000))
}

func TestByteRangeLength(t *testing.T) {
	assert.Equal(t, int64(500), byteRange{0, 499}.length())
	assert.Equal(t, int64(1), byteRange{42, 42}.length())
}
