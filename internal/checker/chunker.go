package checker

import "strings"

// DefaultChunkSize is the maximum chunk length in runes sent to a provider
// in one request.
const DefaultChunkSize = 8000

var sentenceBoundaries = []string{". ", "? ", "! ", ".\n", "?\n", "!\n"}

// ChunkText splits text into chunks of at most chunkSize runes, preferring
// sentence boundaries found in the last 20% of each chunk window so a
// sentence is not handed to the model in two halves. Concatenating the
// chunks reproduces the input exactly.
func ChunkText(text string, chunkSize int) []string {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	runes := []rune(text)
	if len(runes) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	pos := 0
	for pos < len(runes) {
		end := pos + chunkSize
		if end >= len(runes) {
			chunks = append(chunks, string(runes[pos:]))
			break
		}

		// Look for a sentence ending within the last 20% of the window.
		searchStart := pos + chunkSize*4/5
		window := string(runes[searchStart:end])

		best := -1
		for _, boundary := range sentenceBoundaries {
			if i := strings.LastIndex(window, boundary); i > best {
				best = i
			}
		}
		if best > 0 {
			// Cut just after the sentence-ending punctuation.
			end = searchStart + len([]rune(window[:best])) + 1
		}

		chunks = append(chunks, string(runes[pos:end]))
		pos = end
	}
	return chunks
}
