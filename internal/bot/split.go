package bot

import "strings"

const (
	telegramMessageMaxLength = 4096

	// Escaping can double the length of a chunk, so chunks stay well
	// below the limit before it.
	replyChunkRunes   = telegramMessageMaxLength / 2
	historyEntryRunes = 600
)

// splitText cuts text into chunks of at most limit runes, preferring to cut
// after a newline or a space.
func splitText(text string, limit int) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= limit {
		return []string{string(runes)}
	}

	var chunks []string
	for len(runes) > limit {
		cut := limit
		if i := lastIndex(runes[:limit], '\n'); i > limit/2 {
			cut = i + 1
		} else if i = lastIndex(runes[:limit], ' '); i > limit/2 {
			cut = i + 1
		}

		chunks = append(chunks, strings.TrimSpace(string(runes[:cut])))
		runes = runes[cut:]
	}
	if rest := strings.TrimSpace(string(runes)); rest != "" {
		chunks = append(chunks, rest)
	}

	return chunks
}

func truncate(text string, limit int) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit]) + "…"
}

func lastIndex(runes []rune, r rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}
