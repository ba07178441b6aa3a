package services

import (
	"go/ast"
	"go/parser"
	"go/token"
	"regexp"
	"strings"

	"ai-learning-platform/models"

	"github.com/google/uuid"
)

// codeChunker splits source code into chunks aligned to its structure where
// possible. Implementations never fail: anything unparseable degrades to the
// generic line-window chunker.
type codeChunker interface {
	Chunk(code string) []models.Chunk
}

// codeChunkerRegistry maps a language to its chunker. Unknown languages get
// the generic line-window chunker.
type codeChunkerRegistry struct {
	chunkers map[string]codeChunker
	generic  *genericCodeChunker
}

func newCodeChunkerRegistry(maxLines, overlap int) *codeChunkerRegistry {
	generic := &genericCodeChunker{language: "", maxLines: maxLines, overlap: overlap}

	reg := &codeChunkerRegistry{
		chunkers: make(map[string]codeChunker),
		generic:  generic,
	}

	reg.chunkers["go"] = &goCodeChunker{fallback: generic.forLanguage("go")}

	heuristics := []struct {
		languages []string
		funcRe    string
		classRe   string
	}{
		{
			languages: []string{"python"},
			funcRe:    `^(?:async\s+)?def\s+(\w+)`,
			classRe:   `^class\s+(\w+)`,
		},
		{
			languages: []string{"javascript", "typescript"},
			funcRe:    `^(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s*\*?\s*(\w+)|^(?:export\s+)?const\s+(\w+)\s*=\s*(?:async\s*)?\(`,
			classRe:   `^(?:export\s+)?(?:default\s+)?(?:abstract\s+)?class\s+(\w+)`,
		},
		{
			languages: []string{"java", "c", "cpp", "csharp"},
			funcRe:    `^\s{0,4}(?:(?:public|private|protected|static|final|abstract|virtual|inline|extern)\s+)*[\w<>\[\]\*&:,\s]+?\s[\*&]?(\w+)\s*\([^;]*$`,
			classRe:   `^\s{0,4}(?:(?:public|private|protected|static|final|abstract)\s+)*(?:class|struct|interface|enum)\s+(\w+)`,
		},
		{
			languages: []string{"rust"},
			funcRe:    `^\s{0,4}(?:pub(?:\([^)]*\))?\s+)?(?:async\s+)?(?:unsafe\s+)?fn\s+(\w+)`,
			classRe:   `^(?:pub(?:\([^)]*\))?\s+)?(?:struct|enum|trait)\s+(\w+)|^impl(?:<[^>]*>)?\s+(\w+)`,
		},
		{
			languages: []string{"ruby"},
			funcRe:    `^\s{0,4}def\s+([\w.?!]+)`,
			classRe:   `^\s{0,4}(?:class|module)\s+(\w+)`,
		},
		{
			languages: []string{"php"},
			funcRe:    `^\s{0,4}(?:(?:public|private|protected|static)\s+)*function\s+(\w+)`,
			classRe:   `^(?:abstract\s+|final\s+)?(?:class|interface|trait)\s+(\w+)`,
		},
	}

	for _, h := range heuristics {
		for _, lang := range h.languages {
			reg.chunkers[lang] = &regexCodeChunker{
				language: lang,
				funcRe:   regexp.MustCompile(h.funcRe),
				classRe:  regexp.MustCompile(h.classRe),
				fallback: generic.forLanguage(lang),
			}
		}
	}

	return reg
}

func (r *codeChunkerRegistry) Chunk(code, language string) []models.Chunk {
	if chunker, ok := r.chunkers[language]; ok {
		return chunker.Chunk(code)
	}
	return r.generic.forLanguage(language).Chunk(code)
}

// goCodeChunker aligns chunks to top-level declarations using the syntax
// tree. Files that fail to parse go through the generic chunker instead.
type goCodeChunker struct {
	fallback codeChunker
}

func (g *goCodeChunker) Chunk(code string) []models.Chunk {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "source.go", code, parser.ParseComments)
	if err != nil {
		return g.fallback.Chunk(code)
	}

	lines := strings.Split(code, "\n")
	var chunks []models.Chunk

	for _, decl := range file.Decls {
		start := fset.Position(decl.Pos()).Line
		end := fset.Position(decl.End()).Line

		var funcName, className string
		switch d := decl.(type) {
		case *ast.FuncDecl:
			funcName = d.Name.Name
			if d.Recv != nil && len(d.Recv.List) > 0 {
				className = receiverTypeName(d.Recv.List[0].Type)
			}
			if d.Doc != nil {
				start = fset.Position(d.Doc.Pos()).Line
			}
		case *ast.GenDecl:
			if d.Tok == token.IMPORT {
				continue
			}
			for _, spec := range d.Specs {
				if ts, ok := spec.(*ast.TypeSpec); ok {
					className = ts.Name.Name
					break
				}
			}
			if d.Doc != nil {
				start = fset.Position(d.Doc.Pos()).Line
			}
		}

		if start < 1 || end > len(lines) {
			continue
		}

		chunks = append(chunks, models.Chunk{
			ID:           uuid.NewString(),
			Text:         strings.Join(lines[start-1:end], "\n"),
			ChunkType:    models.ChunkTypeCode,
			Index:        len(chunks),
			Language:     "go",
			FunctionName: funcName,
			ClassName:    className,
			LineStart:    start,
			LineEnd:      end,
		})
	}

	if len(chunks) == 0 {
		return g.fallback.Chunk(code)
	}
	return chunks
}

func receiverTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return receiverTypeName(t.X)
	case *ast.IndexExpr:
		return receiverTypeName(t.X)
	}
	return ""
}

// regexCodeChunker splits code at definition boundaries found by per-language
// regexes. Everything before the first definition forms a preamble chunk.
type regexCodeChunker struct {
	language string
	funcRe   *regexp.Regexp
	classRe  *regexp.Regexp
	fallback codeChunker
}

func (r *regexCodeChunker) Chunk(code string) []models.Chunk {
	lines := strings.Split(code, "\n")

	type boundary struct {
		line      int // zero-based
		funcName  string
		className string
	}

	var boundaries []boundary
	for i, line := range lines {
		if m := r.classRe.FindStringSubmatch(line); m != nil {
			boundaries = append(boundaries, boundary{line: i, className: firstGroup(m)})
			continue
		}
		if m := r.funcRe.FindStringSubmatch(line); m != nil {
			boundaries = append(boundaries, boundary{line: i, funcName: firstGroup(m)})
		}
	}

	if len(boundaries) == 0 {
		return r.fallback.Chunk(code)
	}

	var chunks []models.Chunk
	appendBlock := func(startLine, endLine int, funcName, className string) {
		text := strings.TrimRight(strings.Join(lines[startLine:endLine], "\n"), "\n \t")
		if strings.TrimSpace(text) == "" {
			return
		}
		chunks = append(chunks, models.Chunk{
			ID:           uuid.NewString(),
			Text:         text,
			ChunkType:    models.ChunkTypeCode,
			Index:        len(chunks),
			Language:     r.language,
			FunctionName: funcName,
			ClassName:    className,
			LineStart:    startLine + 1,
			LineEnd:      endLine,
		})
	}

	if boundaries[0].line > 0 {
		appendBlock(0, boundaries[0].line, "", "")
	}
	for i, b := range boundaries {
		end := len(lines)
		if i+1 < len(boundaries) {
			end = boundaries[i+1].line
		}
		appendBlock(b.line, end, b.funcName, b.className)
	}

	return chunks
}

func firstGroup(match []string) string {
	for _, g := range match[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}

// genericCodeChunker is the last-resort splitter: fixed line windows with a
// small overlap, no structural metadata beyond line ranges.
type genericCodeChunker struct {
	language string
	maxLines int
	overlap  int
}

func (g *genericCodeChunker) forLanguage(language string) *genericCodeChunker {
	return &genericCodeChunker{language: language, maxLines: g.maxLines, overlap: g.overlap}
}

func (g *genericCodeChunker) Chunk(code string) []models.Chunk {
	maxLines := g.maxLines
	if maxLines <= 0 {
		maxLines = 50
	}
	overlap := g.overlap
	if overlap < 0 || overlap >= maxLines {
		overlap = 0
	}

	lines := strings.Split(code, "\n")
	var chunks []models.Chunk

	for start := 0; start < len(lines); start += maxLines - overlap {
		end := start + maxLines
		if end > len(lines) {
			end = len(lines)
		}

		text := strings.Join(lines[start:end], "\n")
		if strings.TrimSpace(text) != "" {
			chunks = append(chunks, models.Chunk{
				ID:        uuid.NewString(),
				Text:      text,
				ChunkType: models.ChunkTypeCode,
				Index:     len(chunks),
				Language:  g.language,
				LineStart: start + 1,
				LineEnd:   end,
			})
		}

		if end == len(lines) {
			break
		}
	}

	return chunks
}
