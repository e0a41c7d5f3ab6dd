package domain

import (
	"fmt"
	"regexp"
	"strconv"
)

const (
	// ReferenceDigits is the zero-padded width of the sequence part.
	ReferenceDigits = 6
	// MaxSequenceValue is the largest value that fits ReferenceDigits.
	MaxSequenceValue int64 = 999999
)

var referenceRe = regexp.MustCompile(`^([A-Z]{2,8})-(\d{4})-(\d{6})$`)

// SequenceCounter is the persisted state of one allocator counter.
type SequenceCounter struct {
	Kind  ArtifactKind `json:"kind"`
	Year  int          `json:"year,omitempty"` // zero unless counters reset yearly
	Value int64        `json:"value"`
}

// FormatReference renders <PREFIX>-<YEAR>-<000000>.
func FormatReference(prefix string, year int, value int64) string {
	return fmt.Sprintf("%s-%04d-%0*d", prefix, year, ReferenceDigits, value)
}

// ParseReference splits a reference number into its parts.
func ParseReference(ref string) (prefix string, year int, value int64, err error) {
	m := referenceRe.FindStringSubmatch(ref)
	if m == nil {
		return "", 0, 0, fmt.Errorf("malformed reference number %q", ref)
	}
	year, _ = strconv.Atoi(m[2])
	value, _ = strconv.ParseInt(m[3], 10, 64)
	return m[1], year, value, nil
}
