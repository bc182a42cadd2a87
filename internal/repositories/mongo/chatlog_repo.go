package mongo

import (
	"context"
	"time"

	"github.com/yoockh/voicerelay/internal/models"
	"go.mongodb.org/mongo-driver/mongo"
)

const ChatLogCollection = "chat_log"

type ChatLogRepository interface {
	Insert(ctx context.Context, e *models.ChatLogEntry) error
}

type chatLogRepo struct {
	col *mongo.Collection
}

func NewChatLogRepo(db *mongo.Database) ChatLogRepository {
	return &chatLogRepo{col: db.Collection(ChatLogCollection)}
}

func (r *chatLogRepo) Insert(ctx context.Context, e *models.ChatLogEntry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, e)
	return err
}
