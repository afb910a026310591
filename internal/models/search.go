package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SearchHistory is stored either as a SQL row or a MongoDB document.
type SearchHistory struct {
	ID          string             `bson:"-" json:"id,omitempty"`
	ObjectID    primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	UserID      string             `bson:"user_id" json:"user_id"`
	Query       string             `bson:"search_query" json:"search_query"`
	ResultCount int                `bson:"result_count" json:"result_count"`
	SearchedAt  time.Time          `bson:"searched_at" json:"searched_at"`
}
