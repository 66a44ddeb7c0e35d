// Package chunk splits document text into the bounded-size units that are
// embedded and indexed. Chunking is pure and deterministic: the chunks of a
// text concatenate back to the text exactly, in order.
package chunk

import "github.com/docschat/docschat-go/internal/corpus"

// MaxSize is the hard ceiling on chunk length in characters, imposed by the
// embedding provider's input limit. Requested sizes above it are clamped.
const MaxSize = 8192

// Field selects which document field is chunked and indexed.
type Field string

const (
	// FieldTitle indexes document titles. Each hit joins back to the full
	// document content at retrieval time.
	FieldTitle Field = "title"
	// FieldContent indexes document contents directly.
	FieldContent Field = "content"
)

// Chunk is one bounded substring of a document, the atomic search granule.
type Chunk struct {
	// Source is the title of the document this chunk was cut from.
	Source string `json:"source"`
	// Ordinal is the 0-based position of this chunk within its document.
	Ordinal int `json:"ordinal"`
	// Text is the chunk content.
	Text string `json:"text"`
}

// Clamp normalizes a requested chunk size: non-positive or oversized values
// become MaxSize.
func Clamp(size int) int {
	if size <= 0 || size > MaxSize {
		return MaxSize
	}
	return size
}

// Split cuts each document's selected field into consecutive, non-overlapping
// chunks of at most size characters (clamped to MaxSize), preserving document
// order and in-document order. A text shorter than size yields exactly one
// chunk; an empty text yields none.
func Split(docs []corpus.Document, field Field, size int) []Chunk {
	size = Clamp(size)

	var chunks []Chunk
	for _, doc := range docs {
		text := doc.Title
		if field == FieldContent {
			text = doc.Content
		}
		for ord, part := range cut(text, size) {
			chunks = append(chunks, Chunk{Source: doc.Title, Ordinal: ord, Text: part})
		}
	}
	return chunks
}

// cut splits text into consecutive substrings of at most size characters.
// Boundaries fall between code points, never inside a multi-byte rune, so
// every part is valid UTF-8 whenever the input is.
func cut(text string, size int) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	parts := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		parts = append(parts, string(runes[start:end]))
	}
	return parts
}
