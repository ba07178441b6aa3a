package search

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"ai-learning-platform/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const chunksCollection = "content_chunks"

// KeywordMatcher is the term-matching leg of hybrid retrieval.
type KeywordMatcher interface {
	Match(ctx context.Context, term string, filters models.SearchFilters, limit int) ([]Match, error)
}

// KeywordIndex matches query terms against chunk text and the parent
// document's title, description and topic, all denormalized onto the chunk
// row at index time. Scoring is location-weighted: a title hit outranks a
// body-only hit regardless of how often the term repeats in the body.
type KeywordIndex struct {
	db *mongo.Database
}

func NewKeywordIndex(db *mongo.Database) *KeywordIndex {
	return &KeywordIndex{db: db}
}

// ReplaceDocument swaps all chunk rows of a document in one delete-then-insert
// sequence. Callers serialize per document.
func (k *KeywordIndex) ReplaceDocument(ctx context.Context, documentID string, rows []ChunkPayload) error {
	coll := k.db.Collection(chunksCollection)

	if _, err := coll.DeleteMany(ctx, bson.M{"document_id": documentID}); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	docs := make([]interface{}, len(rows))
	for i, row := range rows {
		docs[i] = row
	}
	_, err := coll.InsertMany(ctx, docs)
	return err
}

func (k *KeywordIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := k.db.Collection(chunksCollection).DeleteMany(ctx, bson.M{"document_id": documentID})
	return err
}

// CountByDocument reports how many chunk rows a document currently has.
func (k *KeywordIndex) CountByDocument(ctx context.Context, documentID string) (int64, error) {
	return k.db.Collection(chunksCollection).CountDocuments(ctx, bson.M{"document_id": documentID})
}

// Match returns chunks whose text or parent-document metadata contains the
// term, scored by match location.
func (k *KeywordIndex) Match(ctx context.Context, term string, filters models.SearchFilters, limit int) ([]Match, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	pattern := regexp.QuoteMeta(term)
	re := bson.M{"$regex": pattern, "$options": "i"}

	query := bson.M{
		"$or": []bson.M{
			{"text": re},
			{"document_title": re},
			{"document_description": re},
			{"document_topic": re},
		},
	}
	applyRowFilters(query, filters)

	// Over-fetch so location-weighted re-ranking has room to reorder.
	findOpts := options.Find().SetLimit(int64(limit * 5))
	cursor, err := k.db.Collection(chunksCollection).Find(ctx, query, findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []ChunkPayload
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(rows))
	for _, row := range rows {
		matches = append(matches, Match{Score: scoreRow(row, term), Payload: row})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Payload.ChunkIndex < matches[j].Payload.ChunkIndex
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func applyRowFilters(query bson.M, f models.SearchFilters) {
	if f.Category != "" {
		query["document_category"] = f.Category
	}
	if f.ContentType != "" {
		query["document_type"] = f.ContentType
	}
	if f.Week != 0 {
		query["document_week"] = f.Week
	}
	if f.Language != "" {
		query["language"] = f.Language
	}
	if f.ChunkType != "" {
		query["chunk_type"] = f.ChunkType
	}
}

// scoreRow weights a term hit by where it lands. Body score grows with
// occurrence count but stays below a direct title hit plus body hit, and the
// total is capped at 1.
func scoreRow(row ChunkPayload, term string) float64 {
	term = strings.ToLower(term)
	score := 0.0

	if strings.Contains(strings.ToLower(row.DocumentTitle), term) {
		score += 0.4
	}
	if strings.Contains(strings.ToLower(row.DocumentDescription), term) {
		score += 0.3
	}
	if strings.Contains(strings.ToLower(row.DocumentTopic), term) {
		score += 0.3
	}

	if count := strings.Count(strings.ToLower(row.Text), term); count > 0 {
		body := 0.3 + 0.1*float64(count-1)
		if body > 0.9 {
			body = 0.9
		}
		score += body
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}
