package bot

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitTextShortTextIsOneChunk(t *testing.T) {
	chunks := splitText("  short reply  ", 100)
	if len(chunks) != 1 || chunks[0] != "short reply" {
		t.Fatalf("unexpected chunks: %q", chunks)
	}
}

func TestSplitTextPrefersNewlines(t *testing.T) {
	text := strings.Repeat("a", 70) + "\n" + strings.Repeat("b", 70)
	chunks := splitText(text, 100)

	if len(chunks) != 2 {
		t.Fatalf("expected two chunks, got %d", len(chunks))
	}
	if chunks[0] != strings.Repeat("a", 70) || chunks[1] != strings.Repeat("b", 70) {
		t.Fatalf("unexpected split: %q", chunks)
	}
}

func TestSplitTextHardCutsLongWords(t *testing.T) {
	chunks := splitText(strings.Repeat("x", 250), 100)

	if len(chunks) != 3 {
		t.Fatalf("expected three chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len([]rune(c)) > 100 {
			t.Fatalf("chunk %d over limit: %d", i, len([]rune(c)))
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("héllo wörld", 5); got != "héllo…" {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if got := truncate("hi", 5); got != "hi" {
		t.Fatalf("unexpected truncation: %q", got)
	}
}

func TestRenderReplyFitsAfterEscaping(t *testing.T) {
	messages := renderReply(strings.Repeat(".", replyChunkRunes))

	if len(messages) != 2 {
		t.Fatalf("expected the escaped chunk to be split in two, got %d", len(messages))
	}
	if !strings.HasPrefix(messages[0], replyPrefix) || strings.HasPrefix(messages[1], replyPrefix) {
		t.Fatalf("prefix must lead the first message only: %q", messages[0][:20])
	}
	for i, m := range messages {
		if n := utf8.RuneCountInString(m); n > telegramMessageMaxLength {
			t.Fatalf("message %d over limit: %d", i, n)
		}
	}
}

func TestRenderReplyShortOutput(t *testing.T) {
	messages := renderReply("I hear you.")
	if len(messages) != 1 || messages[0] != replyPrefix+`I hear you\.` {
		t.Fatalf("unexpected messages: %q", messages)
	}
}
