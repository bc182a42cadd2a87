package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/yoockh/voicerelay/internal/models"
)

// ChatLogRepo appends one JSON object per line.
type ChatLogRepo struct {
	path string
	mu   sync.Mutex
}

func NewChatLogRepo(path string) *ChatLogRepo {
	return &ChatLogRepo{path: path}
}

func (r *ChatLogRepo) Path() string { return r.path }

func (r *ChatLogRepo) Insert(_ context.Context, e *models.ChatLogEntry) error {
	line, err := json.Marshal(e)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	r.mu.Lock()
	defer r.mu.Unlock()

	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
