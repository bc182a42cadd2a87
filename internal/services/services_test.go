package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/voicerelay/internal/logger"
	"github.com/yoockh/voicerelay/internal/models"
	"github.com/yoockh/voicerelay/internal/storage"
	"github.com/yoockh/voicerelay/internal/utils"
	"github.com/yoockh/voicerelay/internal/workers"
)

type memSink struct {
	mu      sync.Mutex
	entries []models.ChatLogEntry
	err     error
}

func (m *memSink) Insert(_ context.Context, e *models.ChatLogEntry) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *e)
	return nil
}

func TestChatLogAppendFillsTimestampAndMirrors(t *testing.T) {
	t.Parallel()

	primary := &memSink{}
	broken := &memSink{err: errors.New("mongo down")}
	pg := &memSink{}
	svc := NewChatLogService(primary, logger.Discard(),
		ChatLogMirror{Name: "mongo", Sink: broken},
		ChatLogMirror{Name: "postgres", Sink: pg},
	)

	require.NoError(t, svc.Append(context.Background(), models.ChatLogEntry{Type: "ConversationText", Role: "assistant", Content: "Hi there"}))
	require.Len(t, primary.entries, 1)
	assert.False(t, primary.entries[0].Timestamp.IsZero())

	require.NoError(t, svc.Close())
	require.Len(t, pg.entries, 1)
	assert.Equal(t, "Hi there", pg.entries[0].Content)
}

// stuckSink blocks every insert until its context is done.
type stuckSink struct {
	calls chan struct{}
}

func (s *stuckSink) Insert(ctx context.Context, _ *models.ChatLogEntry) error {
	s.calls <- struct{}{}
	<-ctx.Done()
	return ctx.Err()
}

func TestChatLogAppendDoesNotWaitForHungMirror(t *testing.T) {
	t.Parallel()

	primary := &memSink{}
	stuck := &stuckSink{calls: make(chan struct{}, 8)}
	pg := &memSink{}
	svc := NewChatLogService(primary, logger.Discard(),
		ChatLogMirror{Name: "mongo", Sink: stuck, Timeout: 50 * time.Millisecond},
		ChatLogMirror{Name: "postgres", Sink: pg},
	)

	start := time.Now()
	for _, text := range []string{"one", "two", "three"} {
		require.NoError(t, svc.Append(context.Background(), models.ChatLogEntry{Content: text}))
	}
	assert.Less(t, time.Since(start), 40*time.Millisecond)
	require.Len(t, primary.entries, 3)

	select {
	case <-stuck.calls:
	case <-time.After(time.Second):
		t.Fatal("mirror was never called")
	}

	done := make(chan struct{})
	go func() {
		_ = svc.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return; mirror timeout not applied")
	}

	pg.mu.Lock()
	defer pg.mu.Unlock()
	require.Len(t, pg.entries, 3)
	assert.Equal(t, "one", pg.entries[0].Content)
	assert.Equal(t, "three", pg.entries[2].Content)
}

func TestChatLogCloseWithoutMirrors(t *testing.T) {
	t.Parallel()

	svc := NewChatLogService(&memSink{}, logger.Discard())
	require.NoError(t, svc.Close())
	require.NoError(t, svc.Close())
}

func TestChatLogAppendPrimaryFailure(t *testing.T) {
	t.Parallel()

	svc := NewChatLogService(&memSink{err: errors.New("disk full")}, logger.Discard())
	err := svc.Append(context.Background(), models.ChatLogEntry{Content: "x"})
	assert.True(t, utils.IsCode(err, utils.CodeInternal))

	err = svc.Append(context.Background(), models.ChatLogEntry{})
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}

type recordingQueue struct {
	jobs []workers.UploadJob
}

func (q *recordingQueue) Enqueue(job workers.UploadJob) error {
	q.jobs = append(q.jobs, job)
	return nil
}

func TestArtifactPersistWritesReadsBackAndQueuesUpload(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	q := &recordingQueue{}
	svc := NewArtifactService(storage.NewLocalDir(root), q, logger.Discard())

	stored, err := svc.Persist(context.Background(), 4, []byte("RIFF....WAVE"))
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFF....WAVE"), stored)

	onDisk, err := os.ReadFile(filepath.Join(root, "output-4.wav"))
	require.NoError(t, err)
	assert.Equal(t, stored, onDisk)

	require.Len(t, q.jobs, 1)
	assert.Equal(t, "output-4.wav", q.jobs[0].Name)
	assert.Equal(t, int64(4), q.jobs[0].Turn)
}

func TestArtifactPersistWithoutUploads(t *testing.T) {
	t.Parallel()

	svc := NewArtifactService(storage.NewLocalDir(t.TempDir()), nil, logger.Discard())
	_, err := svc.Persist(context.Background(), 0, []byte("x"))
	require.NoError(t, err)

	_, err = svc.Persist(context.Background(), -1, []byte("x"))
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}
