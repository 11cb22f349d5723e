// Package ingest turns policy documents into embedded, searchable
// chunks. Documents are split along markdown headings first, then
// oversized sections are divided by a recursive character splitter
// with overlap so rule text is never cut mid-sentence when a softer
// boundary exists.
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/apca/claimaudit/internal/model"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200

	// maxHeadingDepth is the deepest heading level that contributes to
	// a chunk's section path. Deeper headings stay inside their parent
	// section's text.
	maxHeadingDepth = 3
)

// section is a run of document text under one heading path.
type section struct {
	Path string
	Text string
}

// Splitter divides policy text into chunks bounded by chunkSize with
// chunkOverlap characters carried between adjacent chunks.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
}

func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = DefaultChunkOverlap
	}
	return &Splitter{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// Split chunks a document for the given policy. Chunk IDs are derived
// from the policy ID and chunk index so re-ingesting the same document
// replaces its chunks instead of duplicating them.
func (s *Splitter) Split(meta model.PolicyMetadata, text string) []model.PolicyChunk {
	var chunks []model.PolicyChunk
	for _, sec := range splitByHeadings(text) {
		for _, piece := range s.splitBySize(sec.Text) {
			piece = strings.TrimSpace(piece)
			if piece == "" {
				continue
			}
			index := len(chunks)
			chunks = append(chunks, model.PolicyChunk{
				ChunkID:     ChunkID(meta.PolicyID, index),
				Text:        piece,
				PolicyID:    meta.PolicyID,
				PolicyName:  meta.Name,
				Payer:       meta.Payer,
				SectionPath: sec.Path,
			})
		}
	}
	return chunks
}

// ChunkID derives a stable chunk identifier from the policy ID and the
// chunk's position within the document.
func ChunkID(policyID string, index int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", policyID, index)))
	return hex.EncodeToString(sum[:])[:16]
}

// splitByHeadings walks the document line by line and groups text under
// its markdown heading path. Text before the first heading, or in a
// document with no headings at all, lands in the fallback section.
func splitByHeadings(text string) []section {
	var sections []section
	path := make([]string, 0, maxHeadingDepth)
	var buf strings.Builder

	flush := func() {
		body := strings.TrimSpace(buf.String())
		buf.Reset()
		if body == "" {
			return
		}
		sectionPath := model.SectionFallback
		if len(path) > 0 {
			sectionPath = strings.Join(path, " > ")
		}
		sections = append(sections, section{Path: sectionPath, Text: body})
	}

	for _, line := range strings.Split(text, "\n") {
		level, title := parseHeading(line)
		if level == 0 || level > maxHeadingDepth {
			buf.WriteString(line)
			buf.WriteString("\n")
			continue
		}
		flush()
		if level <= len(path) {
			path = path[:level-1]
		}
		path = append(path, title)
	}
	flush()
	return sections
}

// parseHeading reports the level and title of a markdown ATX heading,
// or level 0 when the line is not a heading.
func parseHeading(line string) (int, string) {
	trimmed := strings.TrimSpace(line)
	level := 0
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level == 0 || level >= len(trimmed) || trimmed[level] != ' ' {
		return 0, ""
	}
	title := strings.TrimSpace(trimmed[level:])
	if title == "" {
		return 0, ""
	}
	return level, title
}

// separators are tried in order when a section exceeds the chunk size.
var separators = []string{"\n\n", "\n", ". ", " "}

// splitBySize divides text into pieces no longer than chunkSize,
// preferring paragraph and sentence boundaries and carrying
// chunkOverlap characters of context between adjacent pieces.
func (s *Splitter) splitBySize(text string) []string {
	if len(text) <= s.chunkSize {
		return []string{text}
	}
	return s.split(text, 0)
}

func (s *Splitter) split(text string, sepIndex int) []string {
	if len(text) <= s.chunkSize {
		return []string{text}
	}
	if sepIndex >= len(separators) {
		return s.hardSplit(text)
	}

	sep := separators[sepIndex]
	parts := strings.Split(text, sep)
	if len(parts) == 1 {
		return s.split(text, sepIndex+1)
	}

	var pieces []string
	var current strings.Builder
	for _, part := range parts {
		candidate := part
		if current.Len() > 0 {
			candidate = current.String() + sep + part
		}
		if len(candidate) <= s.chunkSize {
			current.Reset()
			current.WriteString(candidate)
			continue
		}
		if current.Len() > 0 {
			pieces = append(pieces, current.String())
			current.Reset()
		}
		if len(part) > s.chunkSize {
			pieces = append(pieces, s.split(part, sepIndex+1)...)
		} else {
			current.WriteString(part)
		}
	}
	if current.Len() > 0 {
		pieces = append(pieces, current.String())
	}
	return s.applyOverlap(pieces)
}

// hardSplit cuts text at fixed offsets when no separator fits.
func (s *Splitter) hardSplit(text string) []string {
	var pieces []string
	step := s.chunkSize - s.chunkOverlap
	for start := 0; start < len(text); start += step {
		end := start + s.chunkSize
		if end > len(text) {
			end = len(text)
		}
		pieces = append(pieces, text[start:end])
		if end == len(text) {
			break
		}
	}
	return pieces
}

// applyOverlap prepends the tail of each piece to its successor so
// context spanning a boundary appears in both chunks.
func (s *Splitter) applyOverlap(pieces []string) []string {
	if s.chunkOverlap == 0 || len(pieces) < 2 {
		return pieces
	}
	out := make([]string, len(pieces))
	out[0] = pieces[0]
	for i := 1; i < len(pieces); i++ {
		prev := pieces[i-1]
		tail := prev
		if len(prev) > s.chunkOverlap {
			tail = prev[len(prev)-s.chunkOverlap:]
		}
		if idx := strings.IndexByte(tail, ' '); idx >= 0 && idx < len(tail)-1 {
			tail = tail[idx+1:]
		}
		out[i] = tail + " " + pieces[i]
	}
	return out
}
