package services

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
)

// ExtractorService turns uploaded file formats into plain text for chunking.
type ExtractorService struct {
	whitespaceRegex *regexp.Regexp
}

func NewExtractorService() *ExtractorService {
	return &ExtractorService{
		whitespaceRegex: regexp.MustCompile(`[ \t]+`),
	}
}

// ExtractPDFText extracts the text layer of a PDF. Scanned pages without a
// text layer come back empty; OCR is out of scope here.
func (es *ExtractorService) ExtractPDFText(content []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	plainText, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plainText); err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}

	return strings.TrimSpace(buf.String()), nil
}

// ExtractHTMLText strips markup and returns readable text, preserving
// paragraph boundaries so the chunker can split on them.
func (es *ExtractorService) ExtractHTMLText(content []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	doc.Find("script, style, noscript").Remove()

	var paragraphs []string
	doc.Find("h1, h2, h3, h4, h5, h6, p, li, pre, td").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text != "" {
			paragraphs = append(paragraphs, es.whitespaceRegex.ReplaceAllString(text, " "))
		}
	})

	if len(paragraphs) == 0 {
		// No block elements; fall back to the whole body text.
		text := strings.TrimSpace(doc.Text())
		return es.whitespaceRegex.ReplaceAllString(text, " "), nil
	}

	return strings.Join(paragraphs, "\n\n"), nil
}
