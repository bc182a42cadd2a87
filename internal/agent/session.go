package agent

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/voicerelay/internal/audio"
	"github.com/yoockh/voicerelay/internal/models"
	"github.com/yoockh/voicerelay/internal/providers/voiceagent"
	"github.com/yoockh/voicerelay/internal/services"
	"github.com/yoockh/voicerelay/internal/utils"
)

// ErrUpstreamClosed ends Run when the agent service hangs up. There is no
// reconnect: a closed upstream ends the service instance.
var ErrUpstreamClosed = errors.New("upstream agent connection closed")

const DefaultKeepAliveInterval = 4 * time.Second

// Broadcaster delivers one outbound message to every connected front-end.
type Broadcaster interface {
	Broadcast(ctx context.Context, payload []byte) error
}

type Config struct {
	Settings          voiceagent.Settings
	KeepAliveInterval time.Duration
	// FirstTurn is the suffix of the first artifact, usually 0.
	FirstTurn    int64
	CommandQueue int
}

type Dependencies struct {
	Dialer      voiceagent.Dialer
	Broadcaster Broadcaster
	ChatLog     services.ChatLogService
	Artifacts   services.ArtifactService
	Logger      *logrus.Logger
	Config      Config
}

// Session owns the single upstream conversation. Everything that touches the
// accumulation or the turn counter runs on the Run goroutine.
type Session struct {
	dialer    voiceagent.Dialer
	out       Broadcaster
	chatLog   services.ChatLogService
	artifacts services.ArtifactService
	log       *logrus.Logger
	cfg       Config

	state       atomic.Int32
	nextTurn    atomic.Int64
	bufferBytes atomic.Int64

	commands chan command
	done     chan struct{}

	// owned by Run
	conn  voiceagent.Conn
	audio *audio.Reassembler
	turn  int64
}

type commandKind int

const (
	cmdUserText commandKind = iota + 1
	cmdAudio
)

type command struct {
	kind  commandKind
	text  string
	audio []byte
}

func New(deps Dependencies) (*Session, error) {
	if deps.Dialer == nil || deps.Broadcaster == nil || deps.ChatLog == nil || deps.Artifacts == nil {
		return nil, errors.New("agent session missing dependency: Dialer/Broadcaster/ChatLog/Artifacts must be set")
	}
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}
	cfg := deps.Config
	if cfg.KeepAliveInterval <= 0 {
		cfg.KeepAliveInterval = DefaultKeepAliveInterval
	}
	if cfg.CommandQueue <= 0 {
		cfg.CommandQueue = 256
	}
	if cfg.FirstTurn < 0 {
		cfg.FirstTurn = 0
	}

	s := &Session{
		dialer:    deps.Dialer,
		out:       deps.Broadcaster,
		chatLog:   deps.ChatLog,
		artifacts: deps.Artifacts,
		log:       deps.Logger,
		cfg:       cfg,
		commands:  make(chan command, cfg.CommandQueue),
		done:      make(chan struct{}),
		audio:     audio.NewReassembler(),
		turn:      cfg.FirstTurn,
	}
	s.nextTurn.Store(cfg.FirstTurn)
	return s, nil
}

func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(st State) {
	prev := State(s.state.Swap(int32(st)))
	if prev != st {
		s.log.WithFields(logrus.Fields{"from": prev.String(), "to": st.String()}).Debug("agent session state")
	}
}

// Status is safe to call from any goroutine.
func (s *Session) Status() models.SessionStatus {
	return models.SessionStatus{
		State:       s.State().String(),
		Backend:     s.dialer.Name(),
		NextTurn:    s.nextTurn.Load(),
		BufferBytes: int(s.bufferBytes.Load()),
	}
}

// SendUserText forwards typed text upstream. Input that arrives before the
// session is configured is rejected with CodeNotReady rather than queued.
func (s *Session) SendUserText(ctx context.Context, text string) error {
	return s.submit(ctx, "Session.SendUserText", command{kind: cmdUserText, text: text})
}

// SendAudio forwards raw client PCM upstream, under the same readiness rule.
func (s *Session) SendAudio(ctx context.Context, pcm []byte) error {
	return s.submit(ctx, "Session.SendAudio", command{kind: cmdAudio, audio: pcm})
}

func (s *Session) submit(ctx context.Context, op string, cmd command) error {
	st := s.State()
	if st.terminal() {
		return utils.E(utils.CodeUnavailable, op, "agent session has ended", nil)
	}
	if !st.acceptsInput() {
		return utils.E(utils.CodeNotReady, op, "agent session is not ready", nil)
	}
	select {
	case s.commands <- cmd:
		return nil
	case <-s.done:
		return utils.E(utils.CodeUnavailable, op, "agent session has ended", nil)
	case <-ctx.Done():
		return utils.E(utils.CodeTimeout, op, "context done", ctx.Err())
	}
}

// Run connects upstream and processes events, forwarded client input and
// keep-alives until the upstream closes (ErrUpstreamClosed), configuration
// fails, or ctx is done.
func (s *Session) Run(ctx context.Context) error {
	const op = "Session.Run"
	defer close(s.done)

	s.setState(StateConnecting)
	s.log.WithField("backend", s.dialer.Name()).Info("initializing agent")

	conn, err := s.dialer.Dial(ctx)
	if err != nil {
		s.setState(StateErrored)
		return utils.E(utils.CodeUnavailable, op, "failed to connect upstream", err)
	}
	s.conn = conn
	defer conn.Close()

	var (
		ticker    *time.Ticker
		keepAlive <-chan time.Time
	)
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	events := conn.Events()
	for {
		select {
		case <-ctx.Done():
			s.setState(StateClosed)
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				ev = voiceagent.Event{Kind: voiceagent.EventClose}
			}
			if err := s.handleEvent(ctx, ev); err != nil {
				if errors.Is(err, ErrUpstreamClosed) || s.State() == StateErrored {
					return err
				}
				s.log.WithError(err).WithFields(logrus.Fields{
					"event": ev.Kind.String(),
					"code":  utils.CodeOf(err),
				}).Error("agent event failed")
			}
			if ticker == nil && s.State() == StateReady {
				ticker = time.NewTicker(s.cfg.KeepAliveInterval)
				keepAlive = ticker.C
			}

		case cmd := <-s.commands:
			s.forward(ctx, cmd)

		case <-keepAlive:
			s.log.Trace("sending keep-alive")
			if err := conn.KeepAlive(ctx); err != nil {
				s.log.WithError(err).Warn("keep-alive failed")
			}
		}
	}
}

func (s *Session) handleEvent(ctx context.Context, ev voiceagent.Event) error {
	switch ev.Kind {
	case voiceagent.EventOpen:
		s.log.Info("upstream connection opened")
	case voiceagent.EventWelcome:
		return s.onWelcome(ctx)
	case voiceagent.EventSettingsApplied:
		s.log.Debug("upstream acknowledged settings")
	case voiceagent.EventConversationText:
		return s.onConversationText(ctx, ev)
	case voiceagent.EventUserStartedSpeaking:
		s.onUserStartedSpeaking()
	case voiceagent.EventAudio:
		s.audio.Append(ev.Audio)
		s.bufferBytes.Store(int64(s.audio.Len()))
		s.log.WithField("bytes", len(ev.Audio)).Trace("agent audio chunk")
	case voiceagent.EventAgentAudioDone:
		return s.onTurnComplete(ctx)
	case voiceagent.EventError:
		s.log.WithError(ev.Err).WithField("raw", string(ev.Raw)).Error("error from agent service")
	case voiceagent.EventClose:
		s.setState(StateClosed)
		s.log.WithError(ev.Err).Warn("upstream connection closed")
		if ev.Err != nil {
			return fmt.Errorf("%w: %v", ErrUpstreamClosed, ev.Err)
		}
		return ErrUpstreamClosed
	default:
		entry := s.log.WithFields(logrus.Fields{"type": ev.Type, "raw": string(ev.Raw)})
		if ev.Err != nil {
			entry = entry.WithError(ev.Err)
		}
		entry.Warn("unhandled event from agent service")
	}
	return nil
}

func (s *Session) onWelcome(ctx context.Context) error {
	const op = "Session.onWelcome"

	if st := s.State(); st != StateConnecting {
		s.log.WithField("state", st.String()).Warn("duplicate welcome ignored")
		return nil
	}

	s.setState(StateConfiguring)
	if err := s.conn.Configure(ctx, s.cfg.Settings); err != nil {
		s.setState(StateErrored)
		return utils.E(utils.CodeUnavailable, op, "failed to submit settings", err)
	}
	s.setState(StateReady)
	s.log.Info("agent configured and ready")
	return nil
}

func (s *Session) onConversationText(ctx context.Context, ev voiceagent.Event) error {
	text := ev.Utterance()
	if text == "" {
		s.log.WithField("raw", string(ev.Raw)).Warn("conversation text without text")
		return nil
	}
	s.log.WithFields(logrus.Fields{"role": ev.Role, "text": text}).Info("agent conversation text")

	entry := models.ChatLogEntry{
		Type:      "ConversationText",
		Role:      ev.Role,
		Content:   text,
		Timestamp: time.Now().UTC(),
	}
	if err := s.chatLog.Append(ctx, entry); err != nil {
		s.log.WithError(err).Error("chat log append failed")
	}

	s.broadcast(ctx, models.TextMessage(text))
	return nil
}

func (s *Session) onUserStartedSpeaking() {
	if s.audio.Empty() {
		return
	}
	s.log.WithField("dropped_bytes", s.audio.Len()).Info("user started speaking, interrupting agent audio")
	s.resetAudio()
}

func (s *Session) onTurnComplete(ctx context.Context) error {
	if s.audio.Empty() {
		s.log.Debug("agent audio done with nothing buffered")
		return nil
	}

	turn := s.turn
	pcm := s.audio.Bytes()
	log := s.log.WithFields(logrus.Fields{"turn": turn, "bytes": len(pcm)})
	log.Info("agent finished speaking")

	// a failed turn still clears the accumulation so it cannot bleed into the next one
	defer s.resetAudio()

	container, err := audio.EncodeWAV(pcm)
	if err != nil {
		return err
	}
	stored, err := s.artifacts.Persist(ctx, turn, container)
	if err != nil {
		return err
	}

	s.broadcast(ctx, models.AudioMessage(base64.StdEncoding.EncodeToString(stored)))
	s.turn++
	s.nextTurn.Store(s.turn)
	log.Debug("agent audio broadcast")
	return nil
}

func (s *Session) resetAudio() {
	s.audio.Reset()
	s.bufferBytes.Store(0)
}

func (s *Session) broadcast(ctx context.Context, msg models.OutboundMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		s.log.WithError(err).Error("failed to encode outbound message")
		return
	}
	if err := s.out.Broadcast(ctx, payload); err != nil {
		s.log.WithError(err).Warn("broadcast failed")
	}
}

func (s *Session) forward(ctx context.Context, cmd command) {
	var err error
	switch cmd.kind {
	case cmdUserText:
		s.log.WithField("text", cmd.text).Info("sending user text to agent")
		err = s.conn.SendUserText(ctx, cmd.text)
	case cmdAudio:
		s.log.WithField("bytes", len(cmd.audio)).Trace("forwarding client audio")
		err = s.conn.SendAudio(ctx, cmd.audio)
	}
	if err != nil {
		s.log.WithError(err).Warn("forward to agent failed")
	}
}
