package cognition

import "testing"

func TestSentenceBufferReleasesOnBoundary(t *testing.T) {
	var buf SentenceBuffer

	if got := buf.Add("Hello"); got != "" {
		t.Fatalf("Add(%q) = %q, want empty", "Hello", got)
	}
	if got := buf.Add(" there."); got != "" {
		t.Fatalf("Add(%q) = %q, want empty (no trailing whitespace yet)", " there.", got)
	}
	if got := buf.Add(" How are you?"); got != "Hello there." {
		t.Fatalf("Add(%q) = %q, want %q", " How are you?", got, "Hello there.")
	}
}

func TestSentenceBufferFlushReturnsRemainder(t *testing.T) {
	var buf SentenceBuffer
	buf.Add("trailing fragment without a boundary")

	if got := buf.Flush(); got != "trailing fragment without a boundary" {
		t.Fatalf("Flush() = %q, want the unflushed fragment", got)
	}
	if got := buf.Flush(); got != "" {
		t.Fatalf("second Flush() = %q, want empty", got)
	}
}

func TestSentenceBufferHandlesMultipleBoundariesInOneToken(t *testing.T) {
	var buf SentenceBuffer
	got := buf.Add("One. Two. Three")
	if got != "One. Two." {
		t.Fatalf("Add(...) = %q, want %q", got, "One. Two.")
	}
	if tail := buf.Flush(); tail != "Three" {
		t.Fatalf("Flush() = %q, want %q", tail, "Three")
	}
}

func TestSentenceBufferWaitsForTrailingWhitespace(t *testing.T) {
	var buf SentenceBuffer
	// A sentence-ending period with nothing after it yet is not a confirmed
	// boundary: the next token could still be "5" turning this into "3.14".
	if got := buf.Add("The total is 3.14 dollars."); got != "" {
		t.Fatalf("Add(...) = %q, want empty until a boundary is confirmed", got)
	}
	if got := buf.Flush(); got != "The total is 3.14 dollars." {
		t.Fatalf("Flush() = %q, want the full fragment", got)
	}
}
