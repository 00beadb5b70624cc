// Package textsplit implements the fixed-size sliding-window chunker used by
// document ingestion. Boundaries are rune-based and may fall mid-word; the
// overlap keeps matches near a split boundary retrievable from both sides.
package textsplit

// Split cuts text into chunks of at most size runes, each chunk starting
// size-overlap runes after the previous one. The zero-value policy of the
// callers is size 1000, overlap 200.
func Split(text string, size, overlap int) []string {
	if size <= 0 {
		return nil
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 2
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	step := size - overlap
	for start := 0; start < len(runes); start += step {
		end := start + size
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
