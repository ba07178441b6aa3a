package services

import (
	"fmt"
	"strings"
	"testing"

	"ai-learning-platform/models"
)

func newTestChunker() *ChunkingService {
	return NewChunkingService(1000, 200, 100, 50, 10)
}

func TestChunkTextEveryParagraphSurvives(t *testing.T) {
	cs := newTestChunker()

	paragraphs := make([]string, 12)
	for i := range paragraphs {
		paragraphs[i] = fmt.Sprintf("Paragraph %d talks about lecture topic number %d in reasonable detail, with enough words that several of them together overflow a single chunk window.", i, i)
	}
	text := strings.Join(paragraphs, "\n\n")

	chunks := cs.ChunkText(text, models.ChunkTypeText)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	for i, p := range paragraphs {
		found := false
		for _, c := range chunks {
			if strings.Contains(c.Text, p) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("paragraph %d missing from all chunks", i)
		}
	}
}

func TestChunkTextOverlapCarried(t *testing.T) {
	cs := newTestChunker()

	paragraphs := make([]string, 10)
	for i := range paragraphs {
		paragraphs[i] = strings.Repeat(fmt.Sprintf("sentence %d about schedulers. ", i), 12)
	}
	chunks := cs.ChunkText(strings.Join(paragraphs, "\n\n"), models.ChunkTypeText)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1].Text
		carry := prev
		if len(carry) > 200 {
			carry = carry[len(carry)-200:]
		}
		if !strings.HasPrefix(chunks[i].Text, carry) {
			t.Errorf("chunk %d does not start with the tail of chunk %d", i, i-1)
		}
	}
}

func TestChunkTextOversizedParagraphEmittedWhole(t *testing.T) {
	cs := newTestChunker()

	big := strings.Repeat("word ", 600) // well past the 1000-char window
	chunks := cs.ChunkText(big, models.ChunkTypeText)

	if len(chunks) != 1 {
		t.Fatalf("expected a single chunk for an unbroken paragraph, got %d", len(chunks))
	}
	if chunks[0].Text != strings.TrimSpace(big) {
		t.Error("oversized paragraph was not preserved whole")
	}
}

func TestChunkTextRemainderRespectsSizeBound(t *testing.T) {
	// Overlap smaller than the minimum chunk size: folding the trailing
	// remainder into a full previous chunk would breach chunkSize+overlap,
	// so the remainder must stay its own chunk instead.
	cs := NewChunkingService(100, 4, 50, 50, 10)

	p1 := strings.TrimSpace(strings.Repeat("alpha ", 15)) // fills the window
	p2 := strings.TrimSpace(strings.Repeat("beta ", 8))   // short remainder
	chunks := cs.ChunkText(p1+"\n\n"+p2, models.ChunkTypeText)

	if len(chunks) != 2 {
		t.Fatalf("expected the remainder as its own chunk, got %d chunks", len(chunks))
	}
	for i, c := range chunks {
		if len(c.Text) > 100+4 {
			t.Errorf("chunk %d is %d chars, past the chunkSize+overlap bound", i, len(c.Text))
		}
	}
	if !strings.Contains(chunks[1].Text, "beta") {
		t.Error("trailing remainder content was lost")
	}
}

func TestChunkTextShortTailStaysInWindow(t *testing.T) {
	cs := newTestChunker()

	p1 := strings.TrimSpace(strings.Repeat("gamma ", 160)) // ~960 chars
	p2 := "short tail."
	chunks := cs.ChunkText(p1+"\n\n"+p2, models.ChunkTypeText)

	if len(chunks) != 1 {
		t.Fatalf("expected the short tail in the same chunk, got %d chunks", len(chunks))
	}
	if !strings.Contains(chunks[0].Text, p2) {
		t.Error("trailing content missing from chunk")
	}
	if len(chunks[0].Text) > 1000+200 {
		t.Errorf("chunk is %d chars, past the chunkSize+overlap bound", len(chunks[0].Text))
	}
}

func TestChunkTextEmptyInput(t *testing.T) {
	cs := newTestChunker()

	if chunks := cs.ChunkText("", models.ChunkTypeText); len(chunks) != 0 {
		t.Errorf("expected no chunks for empty text, got %d", len(chunks))
	}
	if chunks := cs.ChunkText("   \n\n  \n", models.ChunkTypeText); len(chunks) != 0 {
		t.Errorf("expected no chunks for whitespace text, got %d", len(chunks))
	}
}

func TestChunkTextIndexesAreSequential(t *testing.T) {
	cs := newTestChunker()

	paragraphs := make([]string, 8)
	for i := range paragraphs {
		paragraphs[i] = strings.Repeat(fmt.Sprintf("topic %d. ", i), 40)
	}
	chunks := cs.ChunkText(strings.Join(paragraphs, "\n\n"), models.ChunkTypeText)

	for i, c := range chunks {
		if c.Index != i {
			t.Fatalf("chunk %d has index %d", i, c.Index)
		}
		if c.ID == "" {
			t.Fatalf("chunk %d has empty id", i)
		}
	}
}

func TestChunkMarkdownSplitsOnHeadings(t *testing.T) {
	cs := newTestChunker()

	md := `# Week 3: Concurrency

Threads share an address space.

## Mutexes

A mutex guards a critical section.

## Condition Variables

Condition variables let a thread wait for a predicate.`

	chunks := cs.ChunkMarkdown(md)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 section chunks, got %d", len(chunks))
	}

	for i, want := range []string{"# Week 3: Concurrency", "## Mutexes", "## Condition Variables"} {
		if !strings.HasPrefix(chunks[i].Text, want) {
			t.Errorf("chunk %d does not start with %q: %q", i, want, chunks[i].Text)
		}
		if chunks[i].ChunkType != models.ChunkTypeHeading {
			t.Errorf("chunk %d type = %q, want heading", i, chunks[i].ChunkType)
		}
	}
}

func TestChunkMarkdownOversizedSectionSubChunked(t *testing.T) {
	cs := newTestChunker()

	section := "# Big Section\n\n" + strings.Repeat("A sentence about virtual memory management and page tables.\n\n", 60)
	chunks := cs.ChunkMarkdown(section)

	if len(chunks) < 2 {
		t.Fatalf("expected the oversized section to be sub-chunked, got %d chunks", len(chunks))
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Fatalf("chunk %d has index %d", i, c.Index)
		}
	}
}

func TestProcessDocumentSizingBound(t *testing.T) {
	cs := newTestChunker()

	// ~50KB of plain text should land in the expected chunk-count range
	// for a 1000-char window with 200-char overlap.
	paragraph := strings.Repeat("Lecture notes discuss cache coherency protocols at length. ", 8)
	var sb strings.Builder
	for sb.Len() < 50*1024 {
		sb.WriteString(paragraph)
		sb.WriteString("\n\n")
	}

	chunks, text, err := cs.ProcessDocument([]byte(sb.String()), "notes.txt", "text/plain")
	if err != nil {
		t.Fatalf("ProcessDocument: %v", err)
	}
	if text == "" {
		t.Fatal("expected extracted text")
	}

	if len(chunks) < 40 || len(chunks) > 120 {
		t.Errorf("expected roughly 50-90 chunks for 50KB, got %d", len(chunks))
	}
}

func TestProcessDocumentDispatchesCode(t *testing.T) {
	cs := newTestChunker()

	code := "def foo():\n    return 1\n\ndef bar():\n    return 2\n"
	chunks, _, err := cs.ProcessDocument([]byte(code), "example.py", "text/x-python")
	if err != nil {
		t.Fatalf("ProcessDocument: %v", err)
	}

	for _, c := range chunks {
		if c.ChunkType != models.ChunkTypeCode {
			t.Errorf("expected code chunk, got %q", c.ChunkType)
		}
		if c.Language != "python" {
			t.Errorf("expected python language tag, got %q", c.Language)
		}
	}
}

func TestProcessDocumentDispatchesMarkdown(t *testing.T) {
	cs := newTestChunker()

	chunks, _, err := cs.ProcessDocument([]byte("# Title\n\nBody text."), "readme.md", "")
	if err != nil {
		t.Fatalf("ProcessDocument: %v", err)
	}
	if len(chunks) != 1 || chunks[0].ChunkType != models.ChunkTypeHeading {
		t.Fatalf("expected one heading chunk, got %+v", chunks)
	}
}

func TestProcessDocumentHTML(t *testing.T) {
	cs := newTestChunker()

	html := `<html><head><style>p{color:red}</style></head><body>
<h1>Deadlocks</h1>
<p>A deadlock needs four conditions.</p>
<script>alert("hi")</script>
</body></html>`

	chunks, text, err := cs.ProcessDocument([]byte(html), "page.html", "text/html")
	if err != nil {
		t.Fatalf("ProcessDocument: %v", err)
	}
	if !strings.Contains(text, "Deadlocks") || !strings.Contains(text, "four conditions") {
		t.Errorf("extracted text missing content: %q", text)
	}
	if strings.Contains(text, "alert") || strings.Contains(text, "color:red") {
		t.Errorf("extracted text contains markup internals: %q", text)
	}
	if len(chunks) == 0 {
		t.Fatal("expected chunks from html document")
	}
}
