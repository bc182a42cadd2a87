package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/voicerelay/internal/models"
	"github.com/yoockh/voicerelay/internal/utils"
)

const (
	DefaultMirrorTimeout = 2 * time.Second
	mirrorQueueSize      = 256
)

type ChatLogSink interface {
	Insert(ctx context.Context, e *models.ChatLogEntry) error
}

// ChatLogMirror is a best-effort secondary copy of the chat log.
type ChatLogMirror struct {
	Name string
	Sink ChatLogSink
	// Timeout bounds each insert; defaults to DefaultMirrorTimeout.
	Timeout time.Duration
}

type ChatLogService interface {
	Append(ctx context.Context, e models.ChatLogEntry) error
	// Close flushes queued mirror writes.
	Close() error
}

type chatLogService struct {
	primary ChatLogSink
	mirrors []ChatLogMirror
	log     *logrus.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan models.ChatLogEntry
	done   chan struct{}
}

// NewChatLogService writes synchronously to primary. Mirrors are written by
// one background goroutine in append order, so a slow mirror never delays
// the caller.
func NewChatLogService(primary ChatLogSink, log *logrus.Logger, mirrors ...ChatLogMirror) ChatLogService {
	if log == nil {
		log = logrus.New()
	}
	s := &chatLogService{primary: primary, mirrors: mirrors, log: log}
	for i := range s.mirrors {
		if s.mirrors[i].Timeout <= 0 {
			s.mirrors[i].Timeout = DefaultMirrorTimeout
		}
	}
	if len(s.mirrors) > 0 {
		s.queue = make(chan models.ChatLogEntry, mirrorQueueSize)
		s.done = make(chan struct{})
		go s.runMirrors()
	}
	return s
}

// Append writes to the primary log; mirror failures are logged only.
func (s *chatLogService) Append(ctx context.Context, e models.ChatLogEntry) error {
	const op = "ChatLogService.Append"

	if e.Content == "" {
		return utils.E(utils.CodeInvalidArgument, op, "content is required", nil)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	if err := s.primary.Insert(ctx, &e); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to append chat log", err)
	}

	s.enqueueMirror(e)
	return nil
}

func (s *chatLogService) enqueueMirror(e models.ChatLogEntry) {
	if s.queue == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- e:
	default:
		s.log.WithField("content", e.Content).Warn("chat log mirror queue full, entry not mirrored")
	}
}

func (s *chatLogService) runMirrors() {
	defer close(s.done)
	for e := range s.queue {
		for _, m := range s.mirrors {
			s.mirror(m, e)
		}
	}
}

func (s *chatLogService) mirror(m ChatLogMirror, e models.ChatLogEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), m.Timeout)
	defer cancel()

	if err := m.Sink.Insert(ctx, &e); err != nil {
		s.log.WithError(err).WithField("mirror", m.Name).Warn("chat log mirror failed")
	}
}

func (s *chatLogService) Close() error {
	if s.queue == nil {
		return nil
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done
	return nil
}
