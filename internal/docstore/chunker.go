package docstore

// chunkText splits text into fixed-size rune windows with overlap. Text at
// most size runes long becomes a single chunk. The step is size-overlap; a
// final window shorter than the overlap is still emitted so no tail is lost.
func chunkText(text string, size, overlap int) []string {
	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	step := size - overlap
	if step < 1 {
		step = 1
	}

	var chunks []string
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
