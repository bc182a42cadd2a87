package config

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureMongoIndexes creates the chat_log indexes used for replaying a
// conversation in order and filtering by speaker.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := db.Collection("chat_log").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "timestamp", Value: 1}},
			Options: options.Index().SetName("by_timestamp"),
		},
		{
			Keys:    bson.D{{Key: "role", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("by_role_ts"),
		},
	})
	return err
}
