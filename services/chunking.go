package services

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"ai-learning-platform/models"

	"github.com/google/uuid"
)

// ChunkingService splits course documents into retrieval-sized chunks.
type ChunkingService struct {
	chunkSize      int
	overlap        int
	minChunkSize   int
	paragraphRegex *regexp.Regexp
	headingRegex   *regexp.Regexp

	codeChunkers *codeChunkerRegistry
	extractor    *ExtractorService
}

// NewChunkingService creates a chunking service. Overlap must be smaller
// than chunkSize; config validation guarantees that upstream.
func NewChunkingService(chunkSize, overlap, minChunkSize, codeLines, codeOverlap int) *ChunkingService {
	return &ChunkingService{
		chunkSize:      chunkSize,
		overlap:        overlap,
		minChunkSize:   minChunkSize,
		paragraphRegex: regexp.MustCompile(`\n\s*\n+`),
		headingRegex:   regexp.MustCompile(`(?m)^#{1,6}\s`),
		codeChunkers:   newCodeChunkerRegistry(codeLines, codeOverlap),
		extractor:      NewExtractorService(),
	}
}

// ChunkText splits plain text into paragraph-aware sliding-window chunks.
// Paragraphs accumulate until the window is full; each following chunk
// starts with the last overlap characters of its predecessor so no context
// is lost at a boundary. A single paragraph longer than the window is
// emitted whole rather than split mid-sentence.
func (cs *ChunkingService) ChunkText(text, chunkType string) []models.Chunk {
	paragraphs := cs.paragraphRegex.Split(text, -1)

	var chunks []models.Chunk
	current := new(strings.Builder)
	startPos := 0
	cursor := 0

	flush := func(endPos int) {
		body := strings.TrimSpace(current.String())
		if body == "" {
			return
		}
		chunks = append(chunks, cs.newChunk(body, chunkType, len(chunks), startPos, endPos))
	}

	for _, paragraph := range paragraphs {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}

		paraStart := strings.Index(text[cursor:], paragraph)
		if paraStart >= 0 {
			paraStart += cursor
			cursor = paraStart + len(paragraph)
		} else {
			paraStart = cursor
		}

		if current.Len() > 0 && current.Len()+len(paragraph) > cs.chunkSize {
			flush(paraStart)

			// Carry the tail of the previous chunk into the next one.
			carry := current.String()
			if len(carry) > cs.overlap {
				carry = carry[len(carry)-cs.overlap:]
			}
			current = new(strings.Builder)
			if cs.overlap > 0 {
				current.WriteString(carry)
			}
			startPos = paraStart
		}

		if current.Len() == 0 {
			startPos = paraStart
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(paragraph)
	}

	// A short trailing remainder folds into the previous chunk instead of
	// becoming a fragment below the minimum size, but never past the
	// chunkSize+overlap bound; an overflowing remainder stays its own chunk.
	if body := strings.TrimSpace(current.String()); body != "" && len(body) < cs.minChunkSize && len(chunks) > 0 {
		last := &chunks[len(chunks)-1]
		if len(last.Text)+2+len(body) <= cs.chunkSize+cs.overlap {
			last.Text += "\n\n" + body
			last.EndPos = cursor
			return chunks
		}
	}

	flush(cursor)
	return chunks
}

// ChunkMarkdown splits markdown on heading boundaries. Sections that fit the
// window become one chunk tagged as heading content; oversized sections are
// sub-chunked with the plain text splitter.
func (cs *ChunkingService) ChunkMarkdown(text string) []models.Chunk {
	lines := strings.Split(text, "\n")

	type section struct {
		heading string
		body    []string
	}

	var sections []section
	current := section{}
	for _, line := range lines {
		if cs.headingRegex.MatchString(line) {
			if current.heading != "" || len(current.body) > 0 {
				sections = append(sections, current)
			}
			current = section{heading: strings.TrimSpace(line)}
			continue
		}
		current.body = append(current.body, line)
	}
	if current.heading != "" || len(current.body) > 0 {
		sections = append(sections, current)
	}

	var chunks []models.Chunk
	pos := 0
	for _, sec := range sections {
		body := strings.TrimSpace(strings.Join(sec.body, "\n"))

		full := sec.heading
		if body != "" {
			if full != "" {
				full += "\n"
			}
			full += body
		}
		if full == "" {
			continue
		}

		chunkType := models.ChunkTypeText
		if sec.heading != "" {
			chunkType = models.ChunkTypeHeading
		}

		if len(full) <= cs.chunkSize {
			chunks = append(chunks, cs.newChunk(full, chunkType, len(chunks), pos, pos+len(full)))
		} else {
			for _, sub := range cs.ChunkText(full, chunkType) {
				sub.Index = len(chunks)
				sub.StartPos += pos
				sub.EndPos += pos
				chunks = append(chunks, sub)
			}
		}
		pos += len(full) + 1
	}

	return chunks
}

// ProcessDocument extracts text from raw content and chunks it according to
// the file format. It returns the chunks plus the extracted plain text so
// the indexer can persist it on the content record.
func (cs *ChunkingService) ProcessDocument(content []byte, filename, mimeType string) ([]models.Chunk, string, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	switch {
	case mimeType == "application/pdf" || ext == ".pdf":
		text, err := cs.extractor.ExtractPDFText(content)
		if err != nil {
			return nil, "", fmt.Errorf("failed to extract pdf text: %w", err)
		}
		return cs.ChunkText(text, models.ChunkTypeText), text, nil

	case isCodeExtension(ext):
		code := string(content)
		return cs.codeChunkers.Chunk(code, languageForExtension(ext)), code, nil

	case ext == ".md" || ext == ".markdown":
		text := string(content)
		return cs.ChunkMarkdown(text), text, nil

	case mimeType == "text/html" || ext == ".html" || ext == ".htm":
		text, err := cs.extractor.ExtractHTMLText(content)
		if err != nil {
			return nil, "", fmt.Errorf("failed to extract html text: %w", err)
		}
		return cs.ChunkText(text, models.ChunkTypeText), text, nil

	default:
		text := string(content)
		return cs.ChunkText(text, models.ChunkTypeText), text, nil
	}
}

// ChunkCode splits source code using the registered chunker for the
// language, falling back to the generic line-window chunker.
func (cs *ChunkingService) ChunkCode(code, language string) []models.Chunk {
	return cs.codeChunkers.Chunk(code, language)
}

func (cs *ChunkingService) newChunk(text, chunkType string, index, startPos, endPos int) models.Chunk {
	return models.Chunk{
		ID:        uuid.NewString(),
		Text:      text,
		ChunkType: chunkType,
		Index:     index,
		StartPos:  startPos,
		EndPos:    endPos,
	}
}

var codeExtensions = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".jsx":  "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".java": "java",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".cc":   "cpp",
	".cs":   "csharp",
	".rs":   "rust",
	".rb":   "ruby",
	".php":  "php",
}

func isCodeExtension(ext string) bool {
	_, ok := codeExtensions[ext]
	return ok
}

func languageForExtension(ext string) string {
	return codeExtensions[ext]
}
