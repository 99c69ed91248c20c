// Package chunker splits document text into bounded-size windows for
// embedding.
package chunker

import (
	"fmt"

	"manual-rag/internal/errs"
)

const (
	DefaultChunkSize    = 1000 // runes
	DefaultChunkOverlap = 0    // runes
)

// Splitter produces consecutive windows of at most Size runes. With a
// zero Overlap the windows concatenate back to the original text; with
// a positive Overlap each window starts Overlap runes before the end of
// the previous one, so coverage stays gap-free.
type Splitter struct {
	Size    int
	Overlap int
}

func New(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", errs.ErrInvalidInput, size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: chunk overlap must not be negative, got %d", errs.ErrInvalidInput, overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d", errs.ErrInvalidInput, overlap, size)
	}
	return &Splitter{Size: size, Overlap: overlap}, nil
}

// Split returns the windows in original order. The final window may be
// shorter than Size. Empty text yields nil.
func (s *Splitter) Split(text string) []string {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= s.Size {
		return []string{text}
	}

	step := s.Size - s.Overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + s.Size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
