package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/voicerelay/internal/gateway"
	"github.com/yoockh/voicerelay/internal/models"
	"github.com/yoockh/voicerelay/internal/utils"
)

// AgentInput is the part of the agent session the gateway forwards into.
type AgentInput interface {
	SendUserText(ctx context.Context, text string) error
	SendAudio(ctx context.Context, pcm []byte) error
}

type WSHandler struct {
	agent        AgentInput
	hub          *gateway.Hub
	log          *logrus.Logger
	writeTimeout time.Duration
	upgrader     websocket.Upgrader
}

func NewWSHandler(agent AgentInput, hub *gateway.Hub, log *logrus.Logger, writeTimeout time.Duration) *WSHandler {
	return &WSHandler{
		agent:        agent,
		hub:          hub,
		log:          log,
		writeTimeout: writeTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Connect upgrades the request and registers the client with the hub for the
// lifetime of the socket.
func (h *WSHandler) Connect(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response
		return
	}

	client := gateway.NewClient(conn, h.writeTimeout)
	log := h.log.WithField("client_id", client.ID())

	h.hub.Register(client)
	log.WithField("clients", h.hub.Count()).Info("client connected")

	go func() {
		if err := client.WriteLoop(); err != nil {
			log.WithError(err).Debug("client writer stopped")
		}
	}()

	defer func() {
		h.hub.Unregister(client.ID())
		client.Close()
		log.WithField("clients", h.hub.Count()).Info("client disconnected")
	}()

	ctx := c.Request.Context()
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Debug("client read ended")
			}
			return
		}
		h.onMessage(ctx, client, log, mt, data)
	}
}

func (h *WSHandler) onMessage(ctx context.Context, client *gateway.Client, log *logrus.Entry, mt int, data []byte) {
	var err error
	switch mt {
	case websocket.TextMessage:
		var msg models.ClientMessage
		if jerr := json.Unmarshal(data, &msg); jerr != nil {
			log.WithError(jerr).Warn("dropping malformed client message")
			return
		}
		if msg.UserText == "" {
			log.Warn("dropping client message without userText")
			return
		}
		log.WithField("text", msg.UserText).Info("user text received")
		err = h.agent.SendUserText(ctx, msg.UserText)
	case websocket.BinaryMessage:
		err = h.agent.SendAudio(ctx, data)
	default:
		return
	}

	if err == nil {
		return
	}
	if utils.IsCode(err, utils.CodeNotReady) {
		log.Warn("client input before agent ready")
		h.reply(client, log, models.ErrorMessage(string(utils.CodeNotReady), "agent is not ready yet"))
		return
	}
	log.WithError(err).WithField("code", utils.CodeOf(err)).Error("failed to forward client input")
	h.reply(client, log, models.ErrorMessage(string(utils.CodeOf(err)), "input was not forwarded"))
}

// reply goes to the sender only.
func (h *WSHandler) reply(client *gateway.Client, log *logrus.Entry, msg models.OutboundMessage) {
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := client.Send(b); err != nil {
		log.WithError(err).Debug("reply not delivered")
	}
}
