package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/voicerelay/internal/storage"
)

type ArtifactHandler struct {
	dir *storage.LocalDir
}

func NewArtifactHandler(dir *storage.LocalDir) *ArtifactHandler {
	return &ArtifactHandler{dir: dir}
}

// Get serves a persisted turn, e.g. /artifacts/output-3.wav.
func (h *ArtifactHandler) Get(c *gin.Context) {
	b, err := h.dir.Read(c.Param("name"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "audio/wav", b)
}
