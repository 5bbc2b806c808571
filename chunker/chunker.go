package chunker

import (
	"errors"
	"strconv"
	"strings"

	"corpinsight-backend/models"
)

// ErrInvalidConfig is returned when the overlap is not smaller than the
// chunk size
var ErrInvalidConfig = errors.New("chunk overlap must be smaller than chunk size")

// separators in priority order: paragraph break, line break, sentence end,
// space. A hard cut is the fallback when none is found near a boundary.
var separators = [][]rune{
	[]rune("\n\n"),
	[]rune("\n"),
	[]rune("."),
	[]rune("。"),
	[]rune("!"),
	[]rune("?"),
	[]rune(" "),
}

// Chunker splits document text into overlapping chunks. Boundaries are
// placed evenly across the text, then nudged onto the nearest separator so
// chunks tend to begin at paragraph or sentence starts.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// New creates a Chunker. chunkSize is the character budget per chunk and
// chunkOverlap the maximum number of characters duplicated between
// neighboring chunks.
func New(chunkSize, chunkOverlap int) (*Chunker, error) {
	if chunkSize <= 0 || chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, ErrInvalidConfig
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}, nil
}

// Split cuts the document's text into chunks. Empty or whitespace-only
// documents produce no chunks. Adjacent chunks share at most chunkOverlap
// characters, and removing the shared prefix of every chunk after the first
// reconstructs the original text exactly.
func (c *Chunker) Split(doc models.Document) []models.Chunk {
	if strings.TrimSpace(doc.RawText) == "" {
		return nil
	}

	runes := []rune(doc.RawText)
	total := len(runes)

	if total <= c.chunkSize {
		return []models.Chunk{c.makeChunk(doc, 0, string(runes))}
	}

	// One more chunk than plain ceil division, so every boundary has room
	// for overlap without any chunk exceeding chunkSize.
	n := (total + c.chunkSize - 1) / c.chunkSize
	if c.chunkOverlap > 0 {
		n++
	}

	cuts := c.cutPoints(runes, total, n)

	chunks := make([]models.Chunk, 0, n)
	for i := 0; i < n; i++ {
		start, end := cuts[i], cuts[i+1]
		if end <= start {
			continue
		}
		// Extend backward into the previous segment for overlap, capped so
		// the chunk never exceeds chunkSize.
		overlap := c.chunkOverlap
		if room := c.chunkSize - (end - start); overlap > room {
			overlap = room
		}
		if overlap > start {
			overlap = start
		}
		chunks = append(chunks, c.makeChunk(doc, len(chunks), string(runes[start-overlap:end])))
	}
	return chunks
}

// cutPoints places n+1 boundaries over the text: evenly spaced, then each
// interior boundary is snapped to the closest separator within a small
// window. The window is sized so no segment can outgrow chunkSize.
func (c *Chunker) cutPoints(runes []rune, total, n int) []int {
	cuts := make([]int, n+1)
	cuts[n] = total

	segment := total / n
	window := (c.chunkSize - segment) / 2
	if w := c.chunkOverlap / 2; window > w {
		window = w
	}

	for i := 1; i < n; i++ {
		ideal := i * total / n
		cut := snapToSeparator(runes, ideal, window)
		if cut <= cuts[i-1] {
			cut = cuts[i-1] + 1
		}
		cuts[i] = cut
	}
	return cuts
}

// snapToSeparator returns the position just after the separator closest to
// ideal, trying separators in priority order. Hard cut at ideal when the
// window holds none.
func snapToSeparator(runes []rune, ideal, window int) int {
	lo := ideal - window
	if lo < 1 {
		lo = 1
	}
	hi := ideal + window
	if hi > len(runes) {
		hi = len(runes)
	}

	for _, sep := range separators {
		best := -1
		bestDist := window + 1
		for pos := lo; pos+len(sep) <= hi; pos++ {
			if !runesMatch(runes, pos, sep) {
				continue
			}
			cut := pos + len(sep)
			dist := cut - ideal
			if dist < 0 {
				dist = -dist
			}
			if dist < bestDist {
				best = cut
				bestDist = dist
			}
		}
		if best > 0 {
			return best
		}
	}
	return ideal
}

func runesMatch(runes []rune, pos int, sep []rune) bool {
	for i, r := range sep {
		if runes[pos+i] != r {
			return false
		}
	}
	return true
}

func (c *Chunker) makeChunk(doc models.Document, ordinal int, text string) models.Chunk {
	return models.Chunk{
		ChunkID:    ChunkID(doc.DocumentID, ordinal),
		DocumentID: doc.DocumentID,
		CompanyID:  doc.CompanyID,
		Ordinal:    ordinal,
		Text:       text,
	}
}

// ChunkID builds the canonical chunk identifier for a document ordinal
func ChunkID(documentID string, ordinal int) string {
	return documentID + ":" + strconv.Itoa(ordinal)
}
