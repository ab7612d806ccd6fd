package tokens

import (
	"fmt"
	"strconv"
)

// Segment types found in partial postback payloads.
const (
	DeltaPageRedirect = "pageRedirect"
	DeltaError        = "error"
)

// DeltaSegment is one `length|type|id|content|` record of a partial
// postback payload.
type DeltaSegment struct {
	Type    string
	Id      string
	Content string
}

// DeltaFormatError means a payload is not a well formed sequence of delta
// segments.
type DeltaFormatError struct {
	Offset int
	Reason string
}

func (e *DeltaFormatError) Error() string {
	return fmt.Sprintf("malformed partial payload at %d: %s", e.Offset, e.Reason)
}

// ParseDelta splits a partial postback payload into its segments. The
// length prefix counts characters, not bytes.
func ParseDelta(payload string) ([]DeltaSegment, error) {
	runes := []rune(payload)
	pos := 0

	readField := func() (string, error) {
		start := pos
		for pos < len(runes) {
			if runes[pos] == '|' {
				field := string(runes[start:pos])
				pos++
				return field, nil
			}
			pos++
		}
		return "", &DeltaFormatError{Offset: start, Reason: "unterminated field"}
	}

	var segments []DeltaSegment
	for pos < len(runes) {
		start := pos
		lengthStr, err := readField()
		if err != nil {
			return segments, err
		}
		length, err := strconv.Atoi(lengthStr)
		if err != nil || length < 0 {
			return segments, &DeltaFormatError{
				Offset: start,
				Reason: fmt.Sprintf("bad length %q", lengthStr),
			}
		}
		segType, err := readField()
		if err != nil {
			return segments, err
		}
		id, err := readField()
		if err != nil {
			return segments, err
		}
		if pos+length >= len(runes) || runes[pos+length] != '|' {
			return segments, &DeltaFormatError{
				Offset: pos,
				Reason: fmt.Sprintf("content of %s does not span %d characters", segType, length),
			}
		}
		content := string(runes[pos : pos+length])
		pos += length + 1

		segments = append(segments, DeltaSegment{
			Type:    segType,
			Id:      id,
			Content: content,
		})
	}

	return segments, nil
}

// FindSegment returns the first segment of the given type.
func FindSegment(segments []DeltaSegment, segType string) (DeltaSegment, bool) {
	for _, s := range segments {
		if s.Type == segType {
			return s, true
		}
	}
	return DeltaSegment{}, false
}
