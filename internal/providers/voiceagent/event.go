package voiceagent

import (
	"context"
	"encoding/json"
	"fmt"
)

type EventKind int

const (
	EventUnhandled EventKind = iota
	EventOpen
	EventWelcome
	EventSettingsApplied
	EventConversationText
	EventUserStartedSpeaking
	EventAudio
	EventAgentAudioDone
	EventError
	EventClose
)

func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventWelcome:
		return "welcome"
	case EventSettingsApplied:
		return "settings_applied"
	case EventConversationText:
		return "conversation_text"
	case EventUserStartedSpeaking:
		return "user_started_speaking"
	case EventAudio:
		return "audio"
	case EventAgentAudioDone:
		return "agent_audio_done"
	case EventError:
		return "error"
	case EventClose:
		return "close"
	default:
		return "unhandled"
	}
}

// Event is one upstream occurrence. Only the fields relevant to Kind are set.
type Event struct {
	Kind EventKind
	Type string // upstream message type, when there is one

	Role    string
	Text    string
	Content string

	Audio []byte
	Err   error
	Raw   json.RawMessage
}

// Utterance returns the conversation text, accepting either field name.
func (e Event) Utterance() string {
	if e.Text != "" {
		return e.Text
	}
	return e.Content
}

// UpstreamError is the payload of an Error event.
type UpstreamError struct {
	Code        string
	Description string
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Code != "" && e.Description != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Description)
	case e.Description != "":
		return e.Description
	case e.Code != "":
		return e.Code
	default:
		return "upstream error"
	}
}

// Conn is one live upstream conversation. Events is closed after the Close
// event has been delivered.
type Conn interface {
	Events() <-chan Event
	Configure(ctx context.Context, s Settings) error
	SendUserText(ctx context.Context, text string) error
	SendAudio(ctx context.Context, pcm []byte) error
	KeepAlive(ctx context.Context) error
	Close() error
}

type Dialer interface {
	Name() string
	Dial(ctx context.Context) (Conn, error)
}
