package voiceagent

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/yoockh/voicerelay/internal/providers/llm"
	"github.com/yoockh/voicerelay/internal/providers/stt"
)

// CascadeDialer emulates the agent surface with Google Speech for listening
// and Vertex Gemini for answers. It never synthesizes audio, so every turn it
// completes is text-only.
type CascadeDialer struct {
	STT stt.Provider
	LLM llm.Provider

	// UtteranceBytes is how much client PCM is collected before one
	// transcription; defaults to three seconds of 16 kHz linear16.
	UtteranceBytes int
}

func (d *CascadeDialer) Name() string { return "google" }

func (d *CascadeDialer) Dial(ctx context.Context) (Conn, error) {
	if d.STT == nil || d.LLM == nil {
		return nil, errors.New("cascade dialer missing dependency: STT/LLM must be set")
	}
	window := d.UtteranceBytes
	if window <= 0 {
		window = 3 * SampleRate * 2
	}
	window -= window % 2

	cctx, cancel := context.WithCancel(ctx)
	c := &cascadeConn{
		stt:    d.STT,
		llm:    d.LLM,
		window: window,
		ctx:    cctx,
		cancel: cancel,
		events: make(chan Event, 64),
		jobs:   make(chan cascadeJob, 16),
	}
	c.events <- Event{Kind: EventOpen}
	c.events <- Event{Kind: EventWelcome, Type: "Welcome"}
	go c.run()
	return c, nil
}

type cascadeJob struct {
	text  string
	audio []byte
}

type cascadeConn struct {
	stt    stt.Provider
	llm    llm.Provider
	window int

	ctx    context.Context
	cancel context.CancelFunc

	events chan Event
	jobs   chan cascadeJob

	mu       sync.Mutex
	prompt   string
	language string
	pending  []byte
}

func (c *cascadeConn) Events() <-chan Event { return c.events }

func (c *cascadeConn) Configure(ctx context.Context, s Settings) error {
	c.mu.Lock()
	c.prompt = s.Agent.Think.Prompt
	c.language = s.Agent.Language
	c.mu.Unlock()

	if err := c.emit(ctx, Event{Kind: EventSettingsApplied, Type: "SettingsApplied"}); err != nil {
		return err
	}
	if g := strings.TrimSpace(s.Agent.Greeting); g != "" {
		return c.emit(ctx, Event{Kind: EventConversationText, Type: "ConversationText", Role: "assistant", Content: g})
	}
	return nil
}

func (c *cascadeConn) SendUserText(ctx context.Context, text string) error {
	return c.enqueue(ctx, cascadeJob{text: text})
}

func (c *cascadeConn) SendAudio(ctx context.Context, pcm []byte) error {
	c.mu.Lock()
	c.pending = append(c.pending, pcm...)
	var full []byte
	if len(c.pending) >= c.window {
		full = c.pending
		c.pending = nil
	}
	c.mu.Unlock()

	if full == nil {
		return nil
	}
	return c.enqueue(ctx, cascadeJob{audio: full})
}

func (c *cascadeConn) KeepAlive(context.Context) error {
	if c.ctx.Err() != nil {
		return c.ctx.Err()
	}
	return nil
}

func (c *cascadeConn) Close() error {
	c.cancel()
	return nil
}

func (c *cascadeConn) enqueue(ctx context.Context, job cascadeJob) error {
	select {
	case c.jobs <- job:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *cascadeConn) emit(ctx context.Context, ev Event) error {
	select {
	case c.events <- ev:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *cascadeConn) run() {
	defer close(c.events)
	for {
		select {
		case <-c.ctx.Done():
			select {
			case c.events <- Event{Kind: EventClose}:
			default:
			}
			return
		case job := <-c.jobs:
			c.handle(job)
		}
	}
}

func (c *cascadeConn) handle(job cascadeJob) {
	c.mu.Lock()
	prompt, language := c.prompt, c.language
	c.mu.Unlock()

	text := strings.TrimSpace(job.text)
	if job.audio != nil {
		_ = c.emit(c.ctx, Event{Kind: EventUserStartedSpeaking, Type: "UserStartedSpeaking"})

		transcript, _, err := c.stt.Transcribe(c.ctx, job.audio, language)
		if err != nil {
			_ = c.emit(c.ctx, Event{Kind: EventError, Type: "Error", Err: &UpstreamError{Code: "STT_FAILED", Description: err.Error()}})
			return
		}
		text = strings.TrimSpace(transcript)
		if text == "" {
			return
		}
		_ = c.emit(c.ctx, Event{Kind: EventConversationText, Type: "ConversationText", Role: "user", Content: text})
	}
	if text == "" {
		return
	}

	chunks, errs := c.llm.StreamAnswer(c.ctx, prompt, text)
	var full strings.Builder
	for chunk := range chunks {
		full.WriteString(chunk)
	}
	if err := <-errs; err != nil {
		_ = c.emit(c.ctx, Event{Kind: EventError, Type: "Error", Err: &UpstreamError{Code: "LLM_FAILED", Description: err.Error()}})
		return
	}

	answer := strings.TrimSpace(full.String())
	if answer == "" {
		return
	}
	_ = c.emit(c.ctx, Event{Kind: EventConversationText, Type: "ConversationText", Role: "assistant", Content: answer})
	_ = c.emit(c.ctx, Event{Kind: EventAgentAudioDone, Type: "AgentAudioDone"})
}
