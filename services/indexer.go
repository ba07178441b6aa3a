package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"ai-learning-platform/internal/ai"
	"ai-learning-platform/internal/logger"
	"ai-learning-platform/internal/search"
	"ai-learning-platform/internal/telemetry"
	"ai-learning-platform/models"
)

// IndexerService runs the ingest pipeline: extract, chunk, embed, then swap
// the document's rows in both indexes. Writes for one document are
// serialized; different documents index concurrently.
type IndexerService struct {
	store    *ContentStore
	chunker  *ChunkingService
	provider *ai.Provider
	vectors  search.VectorIndex
	keywords *search.KeywordIndex
	cache    *SearchCacheService
	metrics  *telemetry.Metrics
	workers  int

	locks sync.Map // documentID -> *sync.Mutex
}

func NewIndexerService(
	store *ContentStore,
	chunker *ChunkingService,
	provider *ai.Provider,
	vectors search.VectorIndex,
	keywords *search.KeywordIndex,
	cache *SearchCacheService,
	metrics *telemetry.Metrics,
	workers int,
) *IndexerService {
	if workers <= 0 {
		workers = 4
	}
	return &IndexerService{
		store:    store,
		chunker:  chunker,
		provider: provider,
		vectors:  vectors,
		keywords: keywords,
		cache:    cache,
		metrics:  metrics,
		workers:  workers,
	}
}

// IndexDocument processes raw uploaded content and replaces the document's
// index entries. Individual chunk failures are collected in the report, not
// fatal; the job fails only when nothing could be indexed at all.
func (ix *IndexerService) IndexDocument(ctx context.Context, documentID string, content []byte, filename, mimeType string) (*models.IndexReport, error) {
	lock := ix.lockFor(documentID)
	lock.Lock()
	defer lock.Unlock()

	started := time.Now()

	doc, err := ix.store.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}

	if err := ix.store.SetStatus(ctx, documentID, models.StatusProcessing); err != nil {
		logger.Warn("Failed to mark document processing", "document_id", documentID, "error", err)
	}

	chunks, text, err := ix.chunker.ProcessDocument(content, filename, mimeType)
	if err != nil {
		ix.failDocument(ctx, documentID, started)
		return nil, err
	}

	report, err := ix.index(ctx, doc, chunks, text)
	if err != nil {
		ix.failDocument(ctx, documentID, started)
		return nil, err
	}

	if ix.metrics != nil {
		ix.metrics.RecordIndexing(time.Since(started).Seconds(), models.StatusIndexed)
	}
	return report, nil
}

// ReindexDocument rebuilds the index entries from the text stored during the
// original indexing run. Used when chunking parameters change or entries
// were lost.
func (ix *IndexerService) ReindexDocument(ctx context.Context, documentID string) (*models.IndexReport, error) {
	text, err := ix.store.ExtractedText(ctx, documentID)
	if err != nil {
		return nil, err
	}

	doc, err := ix.store.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}

	filename := doc.FileName
	if filename == "" {
		filename = documentID + ".txt"
	}

	// Stored text is already extracted; re-chunk it by format without
	// re-running pdf or html extraction.
	var chunks []models.Chunk
	switch ext := strings.ToLower(filepath.Ext(filename)); {
	case isCodeExtension(ext):
		chunks = ix.chunker.ChunkCode(text, languageForExtension(ext))
	case ext == ".md" || ext == ".markdown":
		chunks = ix.chunker.ChunkMarkdown(text)
	default:
		chunks = ix.chunker.ChunkText(text, models.ChunkTypeText)
	}

	lock := ix.lockFor(documentID)
	lock.Lock()
	defer lock.Unlock()

	started := time.Now()
	report, err := ix.index(ctx, doc, chunks, text)
	if err != nil {
		ix.failDocument(ctx, documentID, started)
		return nil, err
	}

	if ix.metrics != nil {
		ix.metrics.RecordIndexing(time.Since(started).Seconds(), models.StatusIndexed)
	}
	return report, nil
}

// IndexStatus reports whether the document currently has chunk rows and a
// document-level embedding.
func (ix *IndexerService) IndexStatus(ctx context.Context, documentID string) (*models.IndexStatus, error) {
	doc, err := ix.store.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}

	count, err := ix.keywords.CountByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	return &models.IndexStatus{
		DocumentID: documentID,
		Title:      doc.Title,
		IsIndexed:  count > 0 && len(doc.Embedding) > 0,
		ChunkCount: int(count),
	}, nil
}

// ReindexSweep finds documents without index entries and rebuilds them.
// Returns how many documents were repaired.
func (ix *IndexerService) ReindexSweep(ctx context.Context, limit int64) (int, error) {
	ids, err := ix.store.ListIDsByStatus(ctx, nil, limit)
	if err != nil {
		return 0, err
	}

	repaired := 0
	for _, id := range ids {
		count, err := ix.keywords.CountByDocument(ctx, id)
		if err != nil {
			return repaired, err
		}
		if count > 0 {
			continue
		}

		if _, err := ix.ReindexDocument(ctx, id); err != nil {
			logger.Warn("Reindex sweep failed for document", "document_id", id, "error", err)
			continue
		}
		repaired++
	}
	return repaired, nil
}

func (ix *IndexerService) index(ctx context.Context, doc *models.Document, chunks []models.Chunk, text string) (*models.IndexReport, error) {
	report := &models.IndexReport{
		DocumentID:  doc.ID,
		TotalChunks: len(chunks),
		TextLength:  len(text),
	}

	embedded := ix.embedChunks(ctx, doc.ID, chunks, report)

	if len(embedded) == 0 && len(chunks) > 0 {
		return nil, fmt.Errorf("no chunks could be embedded for document %s", doc.ID)
	}

	// Document-level embedding over the leading text, used for
	// whole-document similarity.
	docVector, err := ix.provider.Embed(ctx, text, ai.ModeDocument)
	if err != nil {
		return nil, fmt.Errorf("failed to embed document text: %w", err)
	}

	points := make([]search.Point, len(embedded))
	rows := make([]search.ChunkPayload, len(embedded))
	for i, chunk := range embedded {
		payload := payloadFor(doc, chunk)
		points[i] = search.Point{ID: chunk.ID, Vector: chunk.Embedding, Payload: payload}
		rows[i] = payload
	}

	// Delete-then-recreate: stale entries from a previous version must not
	// survive a successful rerun.
	if err := ix.vectors.DeleteByDocument(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("failed to clear vector index: %w", err)
	}
	if err := ix.vectors.Upsert(ctx, points); err != nil {
		return nil, fmt.Errorf("failed to write vector index: %w", err)
	}
	if err := ix.keywords.ReplaceDocument(ctx, doc.ID, rows); err != nil {
		return nil, fmt.Errorf("failed to write keyword index: %w", err)
	}

	if err := ix.store.SetIndexed(ctx, doc.ID, docVector, text); err != nil {
		return nil, fmt.Errorf("failed to update content record: %w", err)
	}

	if ix.cache != nil {
		ix.cache.InvalidateAll(ctx)
	}
	if ix.metrics != nil {
		for _, chunk := range embedded {
			ix.metrics.RecordChunksIndexed(1, chunk.ChunkType)
		}
	}

	report.ChunksCreated = len(embedded)
	report.FinishedAt = time.Now().UTC()

	logger.Info("Document indexed",
		"document_id", doc.ID,
		"chunks", report.ChunksCreated,
		"total_chunks", report.TotalChunks,
		"errors", len(report.Errors),
	)
	return report, nil
}

// embedChunks embeds chunk texts with bounded concurrency. Failed chunks are
// dropped and recorded on the report.
func (ix *IndexerService) embedChunks(ctx context.Context, documentID string, chunks []models.Chunk, report *models.IndexReport) []models.Chunk {
	type result struct {
		index int
		err   error
	}

	sem := make(chan struct{}, ix.workers)
	results := make(chan result, len(chunks))
	var wg sync.WaitGroup

	for i := range chunks {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			vec, err := ix.provider.Embed(ctx, chunks[i].Text, ai.ModeDocument)
			if err == nil {
				chunks[i].Embedding = vec
			}
			results <- result{index: i, err: err}
		}(i)
	}

	wg.Wait()
	close(results)

	failed := make(map[int]bool)
	for r := range results {
		if r.err != nil {
			failed[r.index] = true
			report.Errors = append(report.Errors, fmt.Sprintf("chunk %d: %v", r.index, r.err))
			logger.Warn("Chunk embedding failed", "document_id", documentID, "chunk_index", r.index, "error", r.err)
		}
	}

	embedded := make([]models.Chunk, 0, len(chunks))
	for i, chunk := range chunks {
		if !failed[i] {
			embedded = append(embedded, chunk)
		}
	}
	return embedded
}

func (ix *IndexerService) failDocument(ctx context.Context, documentID string, started time.Time) {
	if err := ix.store.SetStatus(ctx, documentID, models.StatusFailed); err != nil {
		logger.Error("Failed to mark document failed", "document_id", documentID, "error", err)
	}
	if ix.metrics != nil {
		ix.metrics.RecordIndexing(time.Since(started).Seconds(), models.StatusFailed)
	}
}

func (ix *IndexerService) lockFor(documentID string) *sync.Mutex {
	v, _ := ix.locks.LoadOrStore(documentID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func payloadFor(doc *models.Document, chunk models.Chunk) search.ChunkPayload {
	return search.ChunkPayload{
		ChunkID:    chunk.ID,
		DocumentID: doc.ID,
		Text:       chunk.Text,
		ChunkType:  chunk.ChunkType,
		ChunkIndex: chunk.Index,

		DocumentTitle:       doc.Title,
		DocumentDescription: doc.Description,
		DocumentCategory:    doc.Category,
		DocumentType:        doc.ContentType,
		DocumentTopic:       doc.Topic,
		DocumentWeek:        doc.Week,

		Language:     chunk.Language,
		FunctionName: chunk.FunctionName,
		ClassName:    chunk.ClassName,
		LineStart:    chunk.LineStart,
		LineEnd:      chunk.LineEnd,
	}
}
