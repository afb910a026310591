package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/AnshRaj112/usedgoods-backend/internal/database"
	"github.com/AnshRaj112/usedgoods-backend/internal/models"
)

// SearchRecorder stores the queries signed-in users run.
type SearchRecorder interface {
	Record(ctx context.Context, entry models.SearchHistory) error
	Recent(ctx context.Context, userID string, limit int) ([]models.SearchHistory, error)
}

type SQLSearchHistory struct {
	db *database.DB
}

func NewSQLSearchHistory(db *database.DB) *SQLSearchHistory {
	return &SQLSearchHistory{db: db}
}

func (h *SQLSearchHistory) Record(ctx context.Context, e models.SearchHistory) error {
	if e.SearchedAt.IsZero() {
		e.SearchedAt = time.Now().UTC()
	}
	_, err := h.db.Exec(ctx, `
		INSERT INTO search_history (id, user_id, search_query, result_count, searched_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), e.UserID, truncate(e.Query, 200), e.ResultCount, e.SearchedAt.UTC())
	return err
}

func (h *SQLSearchHistory) Recent(ctx context.Context, userID string, limit int) ([]models.SearchHistory, error) {
	rows, err := h.db.Query(ctx, `
		SELECT id, user_id, search_query, result_count, searched_at
		FROM search_history WHERE user_id = ? ORDER BY searched_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.SearchHistory{}
	for rows.Next() {
		var e models.SearchHistory
		if err := rows.Scan(&e.ID, &e.UserID, &e.Query, &e.ResultCount, &e.SearchedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MongoSearchHistory keeps search history as documents in the
// "search_history" collection.
type MongoSearchHistory struct {
	coll *mongo.Collection
}

func NewMongoSearchHistory(db *mongo.Database) *MongoSearchHistory {
	return &MongoSearchHistory{coll: db.Collection("search_history")}
}

func (h *MongoSearchHistory) Record(ctx context.Context, e models.SearchHistory) error {
	if e.SearchedAt.IsZero() {
		e.SearchedAt = time.Now().UTC()
	}
	e.Query = truncate(e.Query, 200)
	_, err := h.coll.InsertOne(ctx, e)
	return err
}

func (h *MongoSearchHistory) Recent(ctx context.Context, userID string, limit int) ([]models.SearchHistory, error) {
	opts := options.Find().SetSort(bson.D{{Key: "searched_at", Value: -1}}).SetLimit(int64(limit))
	cursor, err := h.coll.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []models.SearchHistory{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].ID = out[i].ObjectID.Hex()
	}
	return out, nil
}

// EnsureIndexes creates the (user_id, searched_at) index Recent relies on.
func (h *MongoSearchHistory) EnsureIndexes(ctx context.Context) error {
	_, err := h.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "searched_at", Value: -1},
		},
		Options: options.Index().SetName("idx_user_searched_at"),
	})
	return err
}
