package ingestion_engine

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/oselabs/paperbase/internal/models"
)

// Chunker splits extracted text into bounded, overlapping segments. It is a
// pure function of its input and configuration: no I/O, fully deterministic,
// so re-running it over unchanged text reproduces identical segments.
type Chunker struct {
	Size    int // max runes per piece
	Overlap int // runes shared between consecutive pieces
}

// Piece is one chunk of text with its 0-based reading-order position.
type Piece struct {
	Position int
	Text     string
}

// NewChunker builds a chunker, clamping nonsensical configuration: Size must
// be positive and Overlap must leave the window moving forward.
func NewChunker(size, overlap int) Chunker {
	if size < 1 {
		size = 1
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}
	return Chunker{Size: size, Overlap: overlap}
}

// Chunk splits text into pieces of at most Size runes where consecutive
// pieces share exactly Overlap runes. Pieces cover the whole input with no
// gaps; only the last piece may be shorter than Size.
func (c Chunker) Chunk(text string) []Piece {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := c.Size - c.Overlap
	pieces := make([]Piece, 0, (len(runes)+step-1)/step)
	for start, pos := 0, 0; start < len(runes); start, pos = start+step, pos+1 {
		end := start + c.Size
		if end > len(runes) {
			end = len(runes)
		}
		pieces = append(pieces, Piece{Position: pos, Text: string(runes[start:end])})
		if end == len(runes) {
			break
		}
	}
	return pieces
}

// Segments chunks text and maps each piece onto a Segment row with its
// deterministic id.
func (c Chunker) Segments(docID, text string) []models.Segment {
	pieces := c.Chunk(text)
	segs := make([]models.Segment, len(pieces))
	for i, p := range pieces {
		segs[i] = models.Segment{
			ID:         SegmentID(docID, p.Position),
			DocumentID: docID,
			Position:   p.Position,
			Text:       p.Text,
		}
	}
	return segs
}

// SegmentID derives a stable segment id from (document id, position): the
// first 16 bytes of sha256, hex encoded. Never random, so reprocessing a
// document upserts over its previous segments instead of duplicating them.
func SegmentID(docID string, position int) string {
	h := sha256.New()
	h.Write([]byte(docID))
	h.Write([]byte("/"))
	h.Write([]byte(strconv.Itoa(position)))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}
