package voiceagent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const DefaultDeepgramAgentURL = "wss://agent.deepgram.com/v1/agent/converse"

// DeepgramDialer opens Deepgram Voice Agent conversations.
type DeepgramDialer struct {
	APIKey string
	URL    string

	// WSDialer defaults to websocket.DefaultDialer.
	WSDialer *websocket.Dialer
}

func (d *DeepgramDialer) Name() string { return "deepgram" }

func (d *DeepgramDialer) Dial(ctx context.Context) (Conn, error) {
	key := strings.TrimSpace(d.APIKey)
	if key == "" {
		return nil, fmt.Errorf("deepgram api key is required")
	}
	url := strings.TrimSpace(d.URL)
	if url == "" {
		url = DefaultDeepgramAgentURL
	}
	dialer := d.WSDialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	header := http.Header{}
	header.Set("Authorization", "Token "+key)

	ws, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("deepgram dial: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("deepgram dial: %w", err)
	}

	c := &deepgramConn{
		ws:     ws,
		events: make(chan Event, 256),
		closed: make(chan struct{}),
	}
	c.events <- Event{Kind: EventOpen}
	go c.readLoop()
	return c, nil
}

type deepgramConn struct {
	ws *websocket.Conn

	writeMu sync.Mutex

	events    chan Event
	closed    chan struct{}
	closeOnce sync.Once
}

func (c *deepgramConn) Events() <-chan Event { return c.events }

func (c *deepgramConn) Configure(ctx context.Context, s Settings) error {
	if s.Type == "" {
		s.Type = "Settings"
	}
	return c.writeJSON(ctx, s)
}

func (c *deepgramConn) SendUserText(ctx context.Context, text string) error {
	return c.writeJSON(ctx, map[string]any{
		"type":    "InjectUserMessage",
		"content": text,
	})
}

func (c *deepgramConn) KeepAlive(ctx context.Context) error {
	return c.writeJSON(ctx, map[string]any{"type": "KeepAlive"})
}

func (c *deepgramConn) SendAudio(ctx context.Context, pcm []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.setWriteDeadline(ctx)
	return c.ws.WriteMessage(websocket.BinaryMessage, pcm)
}

func (c *deepgramConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		_ = c.ws.Close()
	})
	return nil
}

func (c *deepgramConn) writeJSON(ctx context.Context, payload any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.setWriteDeadline(ctx)
	return c.ws.WriteJSON(payload)
}

func (c *deepgramConn) setWriteDeadline(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.ws.SetWriteDeadline(deadline)
	} else {
		_ = c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
	}
}

func (c *deepgramConn) readLoop() {
	defer close(c.events)
	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			c.emitClose(err)
			return
		}

		var ev Event
		switch messageType {
		case websocket.BinaryMessage:
			ev = Event{Kind: EventAudio, Audio: data}
		case websocket.TextMessage:
			ev = parseServerMessage(data)
		default:
			continue
		}

		select {
		case c.events <- ev:
		case <-c.closed:
			c.emitClose(nil)
			return
		}
	}
}

func (c *deepgramConn) emitClose(err error) {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseNormalClosure {
		err = nil
	}
	select {
	case c.events <- Event{Kind: EventClose, Err: err}:
	default:
	}
}

type serverMessage struct {
	Type        string `json:"type"`
	Role        string `json:"role"`
	Content     string `json:"content"`
	Text        string `json:"text"`
	Code        string `json:"code"`
	Description string `json:"description"`
	Message     string `json:"message"`
}

func parseServerMessage(data []byte) Event {
	raw := json.RawMessage(append([]byte(nil), data...))

	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return Event{Kind: EventUnhandled, Err: fmt.Errorf("invalid server message: %w", err), Raw: raw}
	}

	ev := Event{Type: msg.Type, Raw: raw}
	switch msg.Type {
	case "Welcome":
		ev.Kind = EventWelcome
	case "SettingsApplied":
		ev.Kind = EventSettingsApplied
	case "ConversationText":
		ev.Kind = EventConversationText
		ev.Role = msg.Role
		ev.Text = msg.Text
		ev.Content = msg.Content
	case "UserStartedSpeaking":
		ev.Kind = EventUserStartedSpeaking
	case "AgentAudioDone":
		ev.Kind = EventAgentAudioDone
	case "Error":
		ev.Kind = EventError
		desc := msg.Description
		if desc == "" {
			desc = msg.Message
		}
		ev.Err = &UpstreamError{Code: msg.Code, Description: desc}
	default:
		ev.Kind = EventUnhandled
	}
	return ev
}
