package workers

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/voicerelay/internal/logger"
)

type fakeUploader struct {
	mu      sync.Mutex
	objects map[string][]byte
	failFor string
}

func (f *fakeUploader) Upload(_ context.Context, objectName, _ string, r io.Reader) (string, error) {
	if objectName == f.failFor {
		return "", errors.New("bucket unavailable")
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[objectName] = b
	return "gs://bucket/" + objectName, nil
}

func (f *fakeUploader) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.objects))
	for k := range f.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func TestUploadPoolUploadsEveryJob(t *testing.T) {
	t.Parallel()

	up := &fakeUploader{failFor: "output-1.wav"}
	pool := &UploadPool{Uploader: up, NumWorkers: 3, Logger: logger.Discard()}
	require.NoError(t, pool.Start(context.Background()))

	for _, name := range []string{"output-0.wav", "output-1.wav", "output-2.wav"} {
		require.NoError(t, pool.Enqueue(UploadJob{Name: name, ContentType: "audio/wav", Data: []byte(name)}))
	}
	pool.Stop()

	assert.Equal(t, []string{"output-0.wav", "output-2.wav"}, up.names())
	assert.ErrorIs(t, pool.Enqueue(UploadJob{Name: "late"}), ErrPoolStopped)
}

func TestUploadPoolRequiresUploader(t *testing.T) {
	t.Parallel()

	assert.Error(t, (&UploadPool{}).Start(context.Background()))
	assert.ErrorIs(t, (&UploadPool{}).Enqueue(UploadJob{}), ErrPoolStopped)
}
