package services

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/voicerelay/internal/storage"
	"github.com/yoockh/voicerelay/internal/utils"
	"github.com/yoockh/voicerelay/internal/workers"
)

type UploadQueue interface {
	Enqueue(job workers.UploadJob) error
}

type ArtifactService interface {
	// Persist stores container as the artifact for turn and returns the bytes
	// read back from storage.
	Persist(ctx context.Context, turn int64, container []byte) ([]byte, error)
}

type artifactService struct {
	dir     *storage.LocalDir
	uploads UploadQueue
	log     *logrus.Logger
}

// NewArtifactService writes into dir; uploads may be nil.
func NewArtifactService(dir *storage.LocalDir, uploads UploadQueue, log *logrus.Logger) ArtifactService {
	if log == nil {
		log = logrus.New()
	}
	return &artifactService{dir: dir, uploads: uploads, log: log}
}

func (s *artifactService) Persist(ctx context.Context, turn int64, container []byte) ([]byte, error) {
	const op = "ArtifactService.Persist"

	if turn < 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "turn must be >= 0", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, utils.E(utils.CodeTimeout, op, "context done", err)
	}

	name := storage.ArtifactName(turn)
	path, err := s.dir.Write(name, container)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to write artifact", err)
	}
	s.log.WithFields(logrus.Fields{"turn": turn, "path": path, "bytes": len(container)}).Info("agent audio saved")

	stored, err := s.dir.Read(name)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to read artifact back", err)
	}

	if s.uploads != nil {
		job := workers.UploadJob{Name: name, ContentType: "audio/wav", Data: stored, Turn: turn}
		if err := s.uploads.Enqueue(job); err != nil {
			s.log.WithError(err).WithField("turn", turn).Warn("artifact upload not queued")
		}
	}
	return stored, nil
}
