package workers

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/voicerelay/internal/storage"
)

var ErrPoolStopped = errors.New("upload pool stopped")

// UploadJob mirrors one persisted artifact to remote storage.
type UploadJob struct {
	Name        string
	ContentType string
	Data        []byte
	Turn        int64
}

// UploadPool copies artifacts to an Uploader off the session goroutine so a
// slow bucket never delays a broadcast.
type UploadPool struct {
	Uploader   storage.Uploader
	NumWorkers int
	QueueSize  int
	Timeout    time.Duration
	Logger     *logrus.Logger

	jobs chan UploadJob
	wg   sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

func (p *UploadPool) Start(ctx context.Context) error {
	if p.Uploader == nil {
		return errors.New("UploadPool missing dependency: Uploader must be set")
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 2
	}
	if p.QueueSize <= 0 {
		p.QueueSize = 64
	}
	if p.Timeout <= 0 {
		p.Timeout = 30 * time.Second
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}

	p.jobs = make(chan UploadJob, p.QueueSize)
	for i := 0; i < p.NumWorkers; i++ {
		worker := "u-" + strconv.Itoa(i+1)
		p.wg.Add(1)
		go p.runWorker(ctx, worker)
	}
	return nil
}

// Enqueue hands a job to the pool without blocking; a full queue drops the job.
func (p *UploadPool) Enqueue(job UploadJob) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped || p.jobs == nil {
		return ErrPoolStopped
	}
	select {
	case p.jobs <- job:
		return nil
	default:
		return errors.New("upload queue full")
	}
}

// Stop drains queued jobs and waits for workers to exit.
func (p *UploadPool) Stop() {
	p.mu.Lock()
	if p.stopped || p.jobs == nil {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *UploadPool) runWorker(ctx context.Context, worker string) {
	defer p.wg.Done()
	for job := range p.jobs {
		p.handle(ctx, worker, job)
	}
}

func (p *UploadPool) handle(ctx context.Context, worker string, job UploadJob) {
	log := p.Logger.WithFields(logrus.Fields{
		"worker": worker,
		"name":   job.Name,
		"turn":   job.Turn,
		"bytes":  len(job.Data),
	})

	uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.Timeout)
	defer cancel()

	start := time.Now()
	stored, err := p.Uploader.Upload(uctx, job.Name, job.ContentType, bytes.NewReader(job.Data))
	if err != nil {
		log.WithError(err).Warn("artifact upload failed")
		return
	}
	log.WithFields(logrus.Fields{
		"stored":     stored,
		"latency_ms": time.Since(start).Milliseconds(),
	}).Info("artifact uploaded")
}
