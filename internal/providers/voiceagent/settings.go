package voiceagent

// Settings is the one-time configuration submitted after Welcome.
type Settings struct {
	Type  string        `json:"type"`
	Audio AudioSettings `json:"audio"`
	Agent AgentSettings `json:"agent"`
}

type AudioSettings struct {
	Input  AudioFormat `json:"input"`
	Output AudioFormat `json:"output"`
}

type AudioFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
	Container  string `json:"container,omitempty"`
}

type AgentSettings struct {
	Language string         `json:"language,omitempty"`
	Listen   ListenSettings `json:"listen"`
	Think    ThinkSettings  `json:"think"`
	Speak    SpeakSettings  `json:"speak"`
	Greeting string         `json:"greeting,omitempty"`
}

type ProviderSettings struct {
	Type  string `json:"type"`
	Model string `json:"model"`
}

type ListenSettings struct {
	Provider ProviderSettings `json:"provider"`
}

type ThinkSettings struct {
	Provider ProviderSettings `json:"provider"`
	Prompt   string           `json:"prompt,omitempty"`
}

type SpeakSettings struct {
	Provider ProviderSettings `json:"provider"`
}

// Options are the tunable parts of Settings; the audio formats are fixed.
type Options struct {
	Language      string
	ListenModel   string
	ThinkProvider string
	ThinkModel    string
	Prompt        string
	SpeakModel    string
	Greeting      string
}

const (
	Encoding   = "linear16"
	SampleRate = 16000

	DefaultPrompt   = "You are a friendly AI assistant."
	DefaultGreeting = "Hello! How can I help you today?"
)

func NewSettings(o Options) Settings {
	if o.Language == "" {
		o.Language = "en"
	}
	if o.ListenModel == "" {
		o.ListenModel = "nova-3"
	}
	if o.ThinkProvider == "" {
		o.ThinkProvider = "open_ai"
	}
	if o.ThinkModel == "" {
		o.ThinkModel = "gpt-4o-mini"
	}
	if o.SpeakModel == "" {
		o.SpeakModel = "aura-2-thalia-en"
	}
	if o.Prompt == "" {
		o.Prompt = DefaultPrompt
	}
	if o.Greeting == "" {
		o.Greeting = DefaultGreeting
	}

	return Settings{
		Type: "Settings",
		Audio: AudioSettings{
			Input:  AudioFormat{Encoding: Encoding, SampleRate: SampleRate},
			Output: AudioFormat{Encoding: Encoding, SampleRate: SampleRate, Container: "wav"},
		},
		Agent: AgentSettings{
			Language: o.Language,
			Listen:   ListenSettings{Provider: ProviderSettings{Type: "deepgram", Model: o.ListenModel}},
			Think: ThinkSettings{
				Provider: ProviderSettings{Type: o.ThinkProvider, Model: o.ThinkModel},
				Prompt:   o.Prompt,
			},
			Speak:    SpeakSettings{Provider: ProviderSettings{Type: "deepgram", Model: o.SpeakModel}},
			Greeting: o.Greeting,
		},
	}
}
