// Package segment splits normalized document sections into bounded,
// overlapping text windows for indexing.
//
// Splitting prefers the largest separator that keeps a chunk under the
// size bound — paragraph break, then line break, then sentence end, then
// word boundary — and falls back to a hard character cut only when no
// separator applies. Separators stay attached to the preceding chunk, so
// concatenating a section's chunks (minus the applied overlap) reproduces
// the section text exactly. Chunks never cross a section boundary.
package segment

import (
	"fmt"
	"strings"

	"github.com/brightfield-ai/scout/internal/model"
)

// separators in priority order. Sentence separators include the trailing
// space so "3.5" style tokens are not treated as sentence ends.
var separators = []string{"\n\n", "\n", ". ", "? ", "! ", " "}

// Splitter produces bounded overlapping segments from document sections.
type Splitter struct {
	size    int // maximum chunk length, overlap included
	overlap int // characters repeated from the previous chunk of the same section
}

// New creates a Splitter. size is the maximum chunk length in bytes
// (overlap included); overlap must be smaller than size.
func New(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("segment: size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("segment: overlap must be in [0, size), got %d", overlap)
	}
	return &Splitter{size: size, overlap: overlap}, nil
}

// Split segments each section independently. A section with empty text
// yields zero segments; this is not an error.
func (s *Splitter) Split(sections []model.Section) []model.Segment {
	var out []model.Segment
	for _, sec := range sections {
		if sec.Text == "" {
			continue
		}
		for _, chunk := range s.splitText(sec.Text) {
			out = append(out, model.Segment{
				Text:        chunk,
				SourceTitle: sec.Title,
				SourceDoc:   sec.SourceID,
				Role:        sec.Role,
			})
		}
	}
	return out
}

// splitText chunks one section's text and applies overlap between
// adjacent chunks.
func (s *Splitter) splitText(text string) []string {
	capacity := s.size - s.overlap
	pieces := split(text, separators, capacity)
	chunks := pack(pieces, capacity)

	if s.overlap == 0 || len(chunks) < 2 {
		return chunks
	}

	// Prefix each chunk after the first with the tail of its predecessor.
	// The overlap is always an exact suffix, so consumers can strip it to
	// reconstruct the section.
	out := make([]string, len(chunks))
	out[0] = chunks[0]
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		tail := prev
		if len(prev) > s.overlap {
			tail = prev[len(prev)-s.overlap:]
		}
		out[i] = tail + chunks[i]
	}
	return out
}

// split breaks text into pieces no longer than capacity, preferring the
// first separator in seps that occurs in the text. A piece that still
// exceeds capacity is re-split with the remaining separators; when none
// apply, it is hard-cut at capacity. Concatenating the pieces yields text
// unchanged.
func split(text string, seps []string, capacity int) []string {
	if len(text) <= capacity {
		return []string{text}
	}
	if len(seps) == 0 {
		return hardCut(text, capacity)
	}

	sep := seps[0]
	if !strings.Contains(text, sep) {
		return split(text, seps[1:], capacity)
	}

	var out []string
	rest := text
	for {
		i := strings.Index(rest, sep)
		if i < 0 {
			break
		}
		piece := rest[:i+len(sep)] // keep the separator on the left piece
		if len(piece) > capacity {
			out = append(out, split(piece, seps[1:], capacity)...)
		} else {
			out = append(out, piece)
		}
		rest = rest[i+len(sep):]
	}
	if rest != "" {
		if len(rest) > capacity {
			out = append(out, split(rest, seps[1:], capacity)...)
		} else {
			out = append(out, rest)
		}
	}
	return out
}

// hardCut slices text into capacity-sized pieces with no separator logic.
func hardCut(text string, capacity int) []string {
	var out []string
	for len(text) > capacity {
		out = append(out, text[:capacity])
		text = text[capacity:]
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}

// pack greedily merges adjacent pieces into chunks of at most capacity.
// Every piece is already <= capacity, so every chunk is non-empty.
func pack(pieces []string, capacity int) []string {
	var out []string
	var cur strings.Builder
	for _, p := range pieces {
		if cur.Len() > 0 && cur.Len()+len(p) > capacity {
			out = append(out, cur.String())
			cur.Reset()
		}
		cur.WriteString(p)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}
