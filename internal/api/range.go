package api

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidRange marks a syntactically bad Range header.
	ErrInvalidRange = errors.New("invalid range")
	// ErrMultiRange marks a multi-range request; only single ranges are
	// served.
	ErrMultiRange = errors.New("multi-range not supported")
	// ErrUnsatisfiableRange marks a range starting at or past the end of
	// the file. The response carries the file size so clients can retry.
	ErrUnsatisfiableRange = errors.New("range not satisfiable")
)

// byteRange is an inclusive byte interval [Start, End].
type byteRange struct {
	Start int64
	End   int64
}

func (r byteRange) length() int64 { return r.End - r.Start + 1 }

// parseRange parses a Range header against a resource of the given size.
// Multi-range requests are strictly rejected. A syntactically valid range
// starting beyond the end of the file yields ErrUnsatisfiableRange, which
// maps to a 416 with the total size.
func parseRange(header string, size int64) (byteRange, error) {
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return byteRange{}, ErrInvalidRange
	}

	spec := strings.TrimPrefix(header, prefix)
	if strings.Contains(spec, ",") {
		return byteRange{}, ErrMultiRange
	}

	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return byteRange{}, ErrInvalidRange
	}
	startStr := strings.TrimSpace(parts[0])
	endStr := strings.TrimSpace(parts[1])

	var r byteRange

	if startStr == "" {
		// suffix range: bytes=-500 means the last 500 bytes
		if endStr == "" {
			return byteRange{}, ErrInvalidRange
		}
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n <= 0 {
			return byteRange{}, ErrInvalidRange
		}
		if n > size {
			n = size
		}
		r.Start = size - n
		r.End = size - 1
		return r, nil
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return byteRange{}, ErrInvalidRange
	}
	if start >= size {
		return byteRange{}, ErrUnsatisfiableRange
	}
	r.Start = start

	if endStr == "" {
		r.End = size - 1
		return r, nil
	}
	end, err := strconv.ParseInt(endStr, 10, 64)
	if err != nil || end < r.Start {
		return byteRange{}, ErrInvalidRange
	}
	if end >= size {
		// ends past EOF are clamped, not rejected
		end = size - 1
	}
	r.End = end
	return r, nil
}

// formatContentRange renders the Content-Range header for a 206.
func formatContentRange(r byteRange, size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}

// format416ContentRange renders the Content-Range header for a 416.
func format416ContentRange(size int64) string {
	return fmt.Sprintf("bytes */%d", size)
}
