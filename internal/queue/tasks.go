package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"ai-learning-platform/internal/logger"
	"ai-learning-platform/services"
)

const (
	TaskIndexContent   = "content:index"
	TaskReindexContent = "content:reindex"
)

type IndexContentPayload struct {
	DocumentID string `json:"document_id"`
	FileName   string `json:"file_name"`
	MimeType   string `json:"mime_type"`
}

type ReindexContentPayload struct {
	DocumentID string `json:"document_id"`
}

// Task creators
func NewIndexContentTask(documentID, fileName, mimeType string) (*asynq.Task, error) {
	payload, err := json.Marshal(IndexContentPayload{
		DocumentID: documentID,
		FileName:   fileName,
		MimeType:   mimeType,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIndexContent,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("critical"),
	), nil
}

func NewReindexContentTask(documentID string) (*asynq.Task, error) {
	payload, err := json.Marshal(ReindexContentPayload{DocumentID: documentID})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskReindexContent,
		payload,
		asynq.MaxRetry(2),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("low"),
	), nil
}

// TaskProcessor executes queued indexing jobs in the worker process.
type TaskProcessor struct {
	indexer *services.IndexerService
	store   *services.ContentStore
}

func NewTaskProcessor(indexer *services.IndexerService, store *services.ContentStore) *TaskProcessor {
	return &TaskProcessor{indexer: indexer, store: store}
}

func (p *TaskProcessor) HandleIndexContent(ctx context.Context, t *asynq.Task) error {
	var payload IndexContentPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	content, filename, mimeType, err := p.store.RawFile(ctx, payload.DocumentID)
	if err != nil {
		logger.Error("Raw file missing for indexing task", "document_id", payload.DocumentID, "error", err)
		return fmt.Errorf("raw file unavailable: %w", asynq.SkipRetry)
	}
	if payload.FileName != "" {
		filename = payload.FileName
	}
	if payload.MimeType != "" {
		mimeType = payload.MimeType
	}

	report, err := p.indexer.IndexDocument(ctx, payload.DocumentID, content, filename, mimeType)
	if err != nil {
		return err // Will retry
	}

	logger.Info("Indexing task finished",
		"document_id", payload.DocumentID,
		"chunks_created", report.ChunksCreated,
		"errors", len(report.Errors),
	)
	return nil
}

func (p *TaskProcessor) HandleReindexContent(ctx context.Context, t *asynq.Task) error {
	var payload ReindexContentPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	report, err := p.indexer.ReindexDocument(ctx, payload.DocumentID)
	if err != nil {
		return err
	}

	logger.Info("Reindexing task finished",
		"document_id", payload.DocumentID,
		"chunks_created", report.ChunksCreated,
	)
	return nil
}
