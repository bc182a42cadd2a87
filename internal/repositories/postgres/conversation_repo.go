package postgres

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/yoockh/voicerelay/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ConversationRepo interface {
	Insert(ctx context.Context, e *models.ChatLogEntry) error
}

type conversationRepo struct {
	db *gorm.DB
}

func NewConversationRepo(db *gorm.DB) ConversationRepo {
	return &conversationRepo{db: db}
}

func (r *conversationRepo) Insert(ctx context.Context, e *models.ChatLogEntry) error {
	meta, err := json.Marshal(map[string]any{"type": e.Type})
	if err != nil {
		return err
	}
	row := &models.ConversationLog{
		ID:        uuid.NewString(),
		Role:      e.Role,
		Content:   e.Content,
		Timestamp: e.Timestamp.UTC(),
		Metadata:  datatypes.JSON(meta),
	}
	return r.db.WithContext(ctx).Create(row).Error
}

// Migrate creates the conversation_logs table when missing.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.ConversationLog{})
}
