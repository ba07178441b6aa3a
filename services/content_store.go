package services

import (
	"context"
	"fmt"
	"time"

	"ai-learning-platform/models"
	"ai-learning-platform/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"
)

const (
	contentCollection = "content"
	filesCollection   = "content_files"
)

// ContentStore reads and updates course document records. The records are
// owned by the upload pipeline; this store only touches the fields the
// indexer maintains.
type ContentStore struct {
	db *mongo.Database
}

func NewContentStore(db *mongo.Database) *ContentStore {
	return &ContentStore{db: db}
}

func (cs *ContentStore) Get(ctx context.Context, documentID string) (*models.Document, error) {
	var doc models.Document
	err := cs.db.Collection(contentCollection).FindOne(ctx, bson.M{"_id": documentID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("document %s not found", documentID)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (cs *ContentStore) SetStatus(ctx context.Context, documentID, status string) error {
	_, err := cs.db.Collection(contentCollection).UpdateOne(ctx,
		bson.M{"_id": documentID},
		bson.M{"$set": bson.M{"status": status}},
	)
	return err
}

// SetIndexed stores the document-level embedding and the compressed
// extracted text, and stamps the record as indexed.
func (cs *ContentStore) SetIndexed(ctx context.Context, documentID string, embedding []float32, text string) error {
	compressed, compression, err := utils.CompressText(text)
	if err != nil {
		return fmt.Errorf("failed to compress document text: %w", err)
	}

	_, err = cs.db.Collection(contentCollection).UpdateOne(ctx,
		bson.M{"_id": documentID},
		bson.M{"$set": bson.M{
			"status":       models.StatusIndexed,
			"embedding":    embedding,
			"text_content": compressed,
			"compression":  string(compression),
			"indexed_at":   time.Now().UTC(),
		}},
	)
	return err
}

// ExtractedText returns the stored plain text of a document, decompressed.
func (cs *ContentStore) ExtractedText(ctx context.Context, documentID string) (string, error) {
	doc, err := cs.Get(ctx, documentID)
	if err != nil {
		return "", err
	}
	if len(doc.TextContent) == 0 {
		return "", fmt.Errorf("document %s has no stored text", documentID)
	}
	return utils.DecompressText(doc.TextContent, utils.CompressionAlgorithm(doc.Compression))
}

// SaveRawFile stashes the uploaded bytes so the detached indexing job can
// pick them up from the worker process.
func (cs *ContentStore) SaveRawFile(ctx context.Context, documentID string, data []byte, filename, mimeType string) error {
	_, err := cs.db.Collection(filesCollection).UpdateOne(ctx,
		bson.M{"_id": documentID},
		bson.M{"$set": bson.M{
			"data":      data,
			"file_name": filename,
			"mime_type": mimeType,
		}},
		mongooptions.Update().SetUpsert(true),
	)
	return err
}

// RawFile returns the stored upload bytes plus filename and mime type.
func (cs *ContentStore) RawFile(ctx context.Context, documentID string) ([]byte, string, string, error) {
	var row struct {
		Data     []byte `bson:"data"`
		FileName string `bson:"file_name"`
		MimeType string `bson:"mime_type"`
	}
	err := cs.db.Collection(filesCollection).FindOne(ctx, bson.M{"_id": documentID}).Decode(&row)
	if err == mongo.ErrNoDocuments {
		return nil, "", "", fmt.Errorf("no raw file stored for document %s", documentID)
	}
	if err != nil {
		return nil, "", "", err
	}
	return row.Data, row.FileName, row.MimeType, nil
}

// ListIDsByStatus returns document ids in the given statuses, capped by
// limit. Used by the reindex sweep.
func (cs *ContentStore) ListIDsByStatus(ctx context.Context, statuses []string, limit int64) ([]string, error) {
	filter := bson.M{}
	if len(statuses) > 0 {
		filter["status"] = bson.M{"$in": statuses}
	}

	cursor, err := cs.db.Collection(contentCollection).Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var ids []string
	for cursor.Next(ctx) {
		var row struct {
			ID string `bson:"_id"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		ids = append(ids, row.ID)
		if limit > 0 && int64(len(ids)) >= limit {
			break
		}
	}
	return ids, cursor.Err()
}
