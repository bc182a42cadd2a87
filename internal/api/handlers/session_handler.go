package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/voicerelay/internal/models"
)

type StatusSource interface {
	Status() models.SessionStatus
}

type ClientCounter interface {
	Count() int
}

type SessionHandler struct {
	session StatusSource
	clients ClientCounter
}

func NewSessionHandler(session StatusSource, clients ClientCounter) *SessionHandler {
	return &SessionHandler{session: session, clients: clients}
}

// Get reports the agent session snapshot plus the local client count.
func (h *SessionHandler) Get(c *gin.Context) {
	st := h.session.Status()
	st.Clients = h.clients.Count()
	c.JSON(http.StatusOK, st)
}
