// Package contentrange parses and formats the Content-Range values used
// by the resumable upload protocol.
//
// Three shapes are recognized:
//
//	bytes <start>-<end>/<total>   data chunk
//	bytes <start>-<end>/*         data chunk, total unspecified
//	bytes */<total>               status probe
//	bytes */*                     status probe, total unspecified
//
// A status probe carries no body and asks the server to report the
// current offset.
package contentrange

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidRange is returned for Content-Range values that do not match
// any of the recognized shapes.
var ErrInvalidRange = errors.New("invalid content range")

// UnknownTotal is the Total value for ranges whose size segment is "*".
const UnknownTotal int64 = -1

// Range is a parsed Content-Range header value.
type Range struct {
	// Start is the inclusive first byte offset of the chunk.
	// Zero for status probes.
	Start int64

	// End is the inclusive last byte offset of the chunk.
	// Zero for status probes.
	End int64

	// Total is the declared total size, or UnknownTotal for "*".
	Total int64

	// StatusProbe indicates a "bytes */N" or "bytes */*" value.
	StatusProbe bool
}

// Length returns the number of bytes covered by a chunk range.
func (r *Range) Length() int64 {
	if r.StatusProbe {
		return 0
	}
	return r.End - r.Start + 1
}

// Parse parses a Content-Range header value.
//
// Returns ErrInvalidRange for malformed input: wrong unit, non-numeric
// offsets, negative values, start > end, or end >= total.
func Parse(header string) (*Range, error) {
	value, ok := strings.CutPrefix(strings.TrimSpace(header), "bytes ")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRange, header)
	}
	value = strings.TrimSpace(value)

	rangePart, totalPart, ok := strings.Cut(value, "/")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRange, header)
	}

	total := UnknownTotal
	if totalPart != "*" {
		n, err := strconv.ParseInt(totalPart, 10, 64)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: bad total %q", ErrInvalidRange, totalPart)
		}
		total = n
	}

	if rangePart == "*" {
		return &Range{Total: total, StatusProbe: true}, nil
	}

	startStr, endStr, ok := strings.Cut(rangePart, "-")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRange, header)
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return nil, fmt.Errorf("%w: bad start %q", ErrInvalidRange, startStr)
	}
	end, err := strconv.ParseInt(endStr, 10, 64)
	if err != nil || end < 0 {
		return nil, fmt.Errorf("%w: bad end %q", ErrInvalidRange, endStr)
	}

	if start > end {
		return nil, fmt.Errorf("%w: start %d > end %d", ErrInvalidRange, start, end)
	}
	if total != UnknownTotal && end >= total {
		return nil, fmt.Errorf("%w: end %d >= total %d", ErrInvalidRange, end, total)
	}

	return &Range{Start: start, End: end, Total: total}, nil
}

// FormatChunk formats a data-chunk Content-Range value.
// A negative total formats as "*".
func FormatChunk(start, end, total int64) string {
	if total < 0 {
		return fmt.Sprintf("bytes %d-%d/*", start, end)
	}
	return fmt.Sprintf("bytes %d-%d/%d", start, end, total)
}

// FormatProbe formats a status-probe Content-Range value.
// A negative total formats as "*".
func FormatProbe(total int64) string {
	if total < 0 {
		return "bytes */*"
	}
	return fmt.Sprintf("bytes */%d", total)
}

// ProgressRange returns the Range response header value for a 308
// progress response: "bytes=0-<bytesReceived-1>". The second return is
// false when bytesReceived is zero and the header must be omitted.
func ProgressRange(bytesReceived int64) (string, bool) {
	if bytesReceived <= 0 {
		return "", false
	}
	return fmt.Sprintf("bytes=0-%d", bytesReceived-1), true
}

// PartNumber computes the 1-based multipart part number for a chunk
// starting at the given offset.
func PartNumber(start, chunkSize int64) int32 {
	if chunkSize <= 0 {
		return 0
	}
	return int32(start/chunkSize) + 1
}
